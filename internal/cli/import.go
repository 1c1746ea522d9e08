package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/source/neo4jsrc"
	"github.com/matzehuels/nvlviz/pkg/source/tabular"
)

// importTarget holds the flags shared by the import subcommands.
type importTarget struct {
	output string // JSON file to write
	save   string // store name to save under
	radius string
}

func (t *importTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.output, "output", "o", "", "write the graph to this JSON file (- for stdout)")
	cmd.Flags().StringVar(&t.save, "save", "", "save the graph in the store under this name")
	cmd.Flags().StringVar(&t.radius, "radius", "", "scale node sizes into MIN,MAX pixels (default 3,60)")
}

func (t *importTarget) validate() error {
	if t.output == "" && t.save == "" {
		return errors.New(errors.ErrCodeInvalidOption, "set --output or --save")
	}
	if t.save != "" {
		if err := errors.ValidateGraphName(t.save); err != nil {
			return err
		}
	}
	if t.output != "" && t.output != "-" {
		return errors.ValidatePath(t.output)
	}
	return nil
}

func (t *importTarget) radiusRange() (*graph.RadiusRange, error) {
	if t.radius == "" {
		return nil, nil
	}
	return parseRadius(t.radius)
}

// write stores g wherever the flags ask for.
func (c *CLI) writeImport(ctx context.Context, t *importTarget, g *graph.VisualizationGraph) error {
	switch t.output {
	case "":
	case "-":
		if err := graph.Write(g, os.Stdout); err != nil {
			return err
		}
	default:
		if err := graph.WriteFile(g, t.output); err != nil {
			return err
		}
		printFile(t.output)
	}
	if t.save != "" {
		st, err := c.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close(ctx)
		if err := st.Save(ctx, t.save, g); err != nil {
			return err
		}
		printSuccess("Saved %s", t.save)
		printNextStep("Render it", "nvlviz render --stored "+t.save)
	}
	return nil
}

// importCommand creates the import command.
func (c *CLI) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build a graph from Neo4j or CSV tables",
	}
	cmd.AddCommand(c.importNeo4jCommand())
	cmd.AddCommand(c.importCSVCommand())
	return cmd
}

type neo4jImportOpts struct {
	importTarget
	uri, username, password, database string
	params                            []string
	sizeProperty                      string
	nodeCaption, relCaption           string
	noCache                           bool
}

func (c *CLI) importNeo4jCommand() *cobra.Command {
	var opts neo4jImportOpts

	cmd := &cobra.Command{
		Use:   "neo4j <cypher>",
		Short: "Import the nodes, relationships and paths returned by a Cypher query",
		Example: `  nvlviz import neo4j 'MATCH p=(:Person)-[:KNOWS]->() RETURN p LIMIT $n' --param n=50 --save people
  NEO4J_PASSWORD=secret nvlviz import neo4j 'MATCH (n) RETURN n' --uri neo4j://localhost:7687 -o graph.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImportNeo4j(cmd, args[0], &opts)
		},
	}
	opts.register(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.uri, "uri", "", "Neo4j URI (default from config)")
	f.StringVar(&opts.username, "username", "", "Neo4j user (default from config)")
	f.StringVar(&opts.password, "password", "", "Neo4j password (default $NEO4J_PASSWORD or config)")
	f.StringVar(&opts.database, "database", "", "Neo4j database (default from config)")
	f.StringSliceVar(&opts.params, "param", nil, "query parameter as key=value")
	f.StringVar(&opts.sizeProperty, "size-property", "", "node property used as node size")
	f.StringVar(&opts.nodeCaption, "node-caption", "", "node property used as caption (default: labels)")
	f.StringVar(&opts.relCaption, "relationship-caption", "", "relationship property used as caption (default: type)")
	f.BoolVar(&opts.noCache, "no-cache", false, "always run the query")
	return cmd
}

func (c *CLI) runImportNeo4j(cmd *cobra.Command, cypher string, opts *neo4jImportOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	if err := opts.validate(); err != nil {
		return err
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}

	conn := neo4jConfig(cfg.Neo4j, opts)
	if err := conn.Validate(); err != nil {
		return err
	}
	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}
	radius, err := opts.radiusRange()
	if err != nil {
		return err
	}
	cc, keyer, err := cfg.openCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	im := &neo4jsrc.Importer{Config: conn, Cache: cc, Keyer: keyer, Logger: logger}
	spinner := newSpinnerWithContext(ctx, "Querying "+conn.URI+"...")
	spinner.Start()
	prog := newProgress(logger)
	g, err := im.Import(ctx, cypher, params, neo4jsrc.Options{
		SizeProperty:        opts.sizeProperty,
		NodeCaption:         opts.nodeCaption,
		RelationshipCaption: opts.relCaption,
		Radius:              radius,
	})
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Imported %d nodes and %d relationships", len(g.Nodes), len(g.Relationships)))
	return c.writeImport(ctx, &opts.importTarget, g)
}

// neo4jConfig overlays connection flags and $NEO4J_PASSWORD on base.
func neo4jConfig(base neo4jsrc.Config, opts *neo4jImportOpts) neo4jsrc.Config {
	conn := base
	if opts.uri != "" {
		conn.URI = opts.uri
	}
	if opts.username != "" {
		conn.Username = opts.username
	}
	if pw := os.Getenv("NEO4J_PASSWORD"); pw != "" {
		conn.Password = pw
	}
	if opts.password != "" {
		conn.Password = opts.password
	}
	if opts.database != "" {
		conn.Database = opts.database
	}
	return conn
}

// parseParams parses key=value pairs. Values that look like integers,
// floats or booleans are passed as such.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeInvalidOption, "invalid parameter %q (want key=value)", p)
		}
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			params[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			params[k] = b
		} else {
			params[k] = v
		}
	}
	return params, nil
}

type csvImportOpts struct {
	importTarget
	nodes     []string
	rels      []string
	keepSizes bool
	rename    []string
}

func (c *CLI) importCSVCommand() *cobra.Command {
	var opts csvImportOpts

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Import node and relationship tables",
		Long: `Import node and relationship CSV tables.

Columns named like node or relationship fields (id, caption, size, color,
from/source, to/target, ...) fill those fields; every other column becomes a
property. Numbers and booleans are parsed.`,
		Example: `  nvlviz import csv --nodes people.csv --relationships knows.csv --save people`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImportCSV(cmd, &opts)
		},
	}
	opts.register(cmd)
	f := cmd.Flags()
	f.StringSliceVar(&opts.nodes, "nodes", nil, "node tables")
	f.StringSliceVar(&opts.rels, "relationships", nil, "relationship tables")
	f.BoolVar(&opts.keepSizes, "keep-sizes", false, "do not scale the size column")
	f.StringSliceVar(&opts.rename, "rename", nil, "rename columns as column=property")
	return cmd
}

func (c *CLI) runImportCSV(cmd *cobra.Command, opts *csvImportOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	if err := opts.validate(); err != nil {
		return err
	}
	if len(opts.nodes) == 0 {
		return errors.New(errors.ErrCodeInvalidOption, "at least one --nodes table is required")
	}
	radius, err := opts.radiusRange()
	if err != nil {
		return err
	}
	var rename map[string]string
	if len(opts.rename) > 0 {
		rename = make(map[string]string, len(opts.rename))
		for _, p := range opts.rename {
			k, v, ok := strings.Cut(p, "=")
			if !ok || k == "" || v == "" {
				return errors.New(errors.ErrCodeInvalidOption, "invalid rename %q (want column=property)", p)
			}
			rename[k] = v
		}
	}

	prog := newProgress(logger)
	g, err := tabular.FromCSVFiles(opts.nodes, opts.rels, tabular.Options{
		Radius:    radius,
		KeepSizes: opts.keepSizes,
		Rename:    rename,
	})
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Imported %d nodes and %d relationships", len(g.Nodes), len(g.Relationships)))
	return c.writeImport(ctx, &opts.importTarget, g)
}
