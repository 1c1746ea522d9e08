package neo4jsrc

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/matzehuels/nvlviz/pkg/cache"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/observability"
)

// SourceName identifies Neo4j imports in cache keys and hooks.
const SourceName = "neo4j"

// Config locates a Neo4j database.
type Config struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Validate checks the URI scheme.
func (c Config) Validate() error {
	return errors.ValidateNeo4jURI(c.URI)
}

// Query connects to the database, runs cypher and maps the result.
// Connectivity failures are retried with backoff.
func Query(ctx context.Context, cfg Config, cypher string, params map[string]any, opts Options) (*graph.VisualizationGraph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "create neo4j driver")
	}
	defer driver.Close(ctx)

	var (
		res         *neo4j.EagerResult
		unreachable bool
	)
	err = cache.RetryWithBackoff(ctx, func() error {
		qopts := []neo4j.ExecuteQueryConfigurationOption{}
		if cfg.Database != "" {
			qopts = append(qopts, neo4j.ExecuteQueryWithDatabase(cfg.Database))
		}
		var qerr error
		res, qerr = neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, qopts...)
		unreachable = qerr != nil && neo4j.IsConnectivityError(qerr)
		if unreachable {
			return cache.Retryable(qerr)
		}
		return qerr
	})
	if err != nil {
		if unreachable {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to %s", cfg.URI)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "run query")
	}

	nodes, rels := Collect(res.Records)
	return FromGraph(nodes, rels, opts)
}

// Collect gathers the distinct nodes and relationships found anywhere in
// records, including inside paths, lists and maps, in order of first
// appearance.
func Collect(records []*neo4j.Record) ([]dbtype.Node, []dbtype.Relationship) {
	c := collector{
		seenNodes: map[string]bool{},
		seenRels:  map[string]bool{},
	}
	for _, rec := range records {
		for _, v := range rec.Values {
			c.add(v)
		}
	}
	return c.nodes, c.rels
}

type collector struct {
	nodes     []dbtype.Node
	rels      []dbtype.Relationship
	seenNodes map[string]bool
	seenRels  map[string]bool
}

func (c *collector) add(v any) {
	switch x := v.(type) {
	case dbtype.Node:
		if !c.seenNodes[x.ElementId] {
			c.seenNodes[x.ElementId] = true
			c.nodes = append(c.nodes, x)
		}
	case dbtype.Relationship:
		if !c.seenRels[x.ElementId] {
			c.seenRels[x.ElementId] = true
			c.rels = append(c.rels, x)
		}
	case dbtype.Path:
		for _, n := range x.Nodes {
			c.add(n)
		}
		for _, r := range x.Relationships {
			c.add(r)
		}
	case []any:
		for _, e := range x {
			c.add(e)
		}
	case map[string]any:
		for _, e := range x {
			c.add(e)
		}
	}
}

// QueryFunc runs a query; Query is the production implementation.
type QueryFunc func(ctx context.Context, cfg Config, cypher string, params map[string]any, opts Options) (*graph.VisualizationGraph, error)

// Importer runs queries with a result cache in front.
type Importer struct {
	Config Config
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// Query defaults to the package Query function.
	Query QueryFunc
}

// Import returns the graph for cypher, from cache when a fresh result for the
// same query, parameters, database and options exists.
func (im *Importer) Import(ctx context.Context, cypher string, params map[string]any, opts Options) (g *graph.VisualizationGraph, err error) {
	logger := im.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := im.Cache
	if c == nil {
		c = cache.NewNullCache()
	}
	keyer := im.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	query := im.Query
	if query == nil {
		query = Query
	}

	start := time.Now()
	observability.Import().OnImportStart(ctx, SourceName)
	defer func() {
		nodes, rels := 0, 0
		if g != nil {
			nodes, rels = len(g.Nodes), len(g.Relationships)
		}
		observability.Import().OnImportComplete(ctx, SourceName, nodes, rels, time.Since(start), err)
	}()

	key := keyer.ImportKey(SourceName, cypher, cache.ImportKeyOpts{
		Database:            im.Config.Database,
		Params:              params,
		SizeProperty:        opts.SizeProperty,
		NodeCaption:         opts.NodeCaption,
		RelationshipCaption: opts.RelationshipCaption,
	})
	if data, ok, cerr := c.Get(ctx, key); cerr == nil && ok {
		var cached graph.VisualizationGraph
		if json.Unmarshal(data, &cached) == nil {
			observability.Cache().OnCacheHit(ctx, key)
			logger.Debug("import served from cache", "source", SourceName)
			return &cached, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, key)

	g, err = query(ctx, im.Config, cypher, params, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("imported graph", "source", SourceName, "nodes", len(g.Nodes), "relationships", len(g.Relationships))

	if data, merr := graph.Marshal(g); merr == nil {
		if serr := c.Set(ctx, key, data, cache.TTLImport); serr != nil {
			logger.Warn("could not cache import", "error", serr)
		} else {
			observability.Cache().OnCacheSet(ctx, key, len(data))
		}
	}
	return g, nil
}
