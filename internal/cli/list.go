package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nvlviz/pkg/buildinfo"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/store"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)
			infos, err := st.List(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			if len(infos) == 0 {
				printInfo("No stored graphs")
				printNextStep("Import one", "nvlviz import csv --nodes nodes.csv --save demo")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGraphList(infos, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// renderGraphList renders infos as a table.
func renderGraphList(infos []store.Info, now time.Time) string {
	m := GraphListModel{now: func() time.Time { return now }}
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = m.row(info)
	}
	return graphTable(rows).
		Headers("Graph", "Nodes", "Relationships", "Updated").
		Render()
}

// showCommand creates the show command.
func (c *CLI) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "show [name]",
		Short:             "Summarize a stored graph (pick one interactively without a name)",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeGraphNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				infos, err := st.List(ctx)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					printInfo("No stored graphs")
					return nil
				}
				final, err := tea.NewProgram(NewGraphListModel(infos), tea.WithContext(ctx)).Run()
				if err != nil {
					return err
				}
				sel := final.(GraphListModel).Selected
				if sel == nil {
					return nil
				}
				name = sel.Name
			}

			g, err := st.Load(ctx, name)
			if err != nil {
				return err
			}
			printGraphSummary(name, g)
			printNextStep("Render it", "nvlviz render --stored "+name)
			return nil
		},
	}
}

// printGraphSummary prints counts, the caption and color distribution and
// the property keys of g.
func printGraphSummary(name string, g *graph.VisualizationGraph) {
	fmt.Println(StyleTitle.Render(name))
	printKeyValue("Nodes", fmt.Sprint(len(g.Nodes)))
	printKeyValue("Relationships", fmt.Sprint(len(g.Relationships)))
	printKeyValue("Positioned", fmt.Sprint(g.HasPositions()))

	colors := map[string]int{}
	var nodeKeys, relKeys []string
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		colors[n.Color]++
		for k := range n.Properties {
			if !seen["n:"+k] {
				seen["n:"+k] = true
				nodeKeys = append(nodeKeys, k)
			}
		}
	}
	for _, r := range g.Relationships {
		for k := range r.Properties {
			if !seen["r:"+k] {
				seen["r:"+k] = true
				relKeys = append(relKeys, k)
			}
		}
	}
	sort.Strings(nodeKeys)
	sort.Strings(relKeys)
	if len(nodeKeys) > 0 {
		printKeyValue("Node props", strings.Join(nodeKeys, ", "))
	}
	if len(relKeys) > 0 {
		printKeyValue("Rel props", strings.Join(relKeys, ", "))
	}

	palette := make([]string, 0, len(colors))
	for c := range colors {
		palette = append(palette, c)
	}
	sort.Slice(palette, func(i, j int) bool {
		if colors[palette[i]] != colors[palette[j]] {
			return colors[palette[i]] > colors[palette[j]]
		}
		return palette[i] < palette[j]
	})
	for _, c := range palette {
		label := c
		if c == "" {
			label = "default"
		}
		printDetail("%s", swatch(c, fmt.Sprintf("%s × %d", label, colors[c])))
	}
}

// deleteCommand creates the delete command.
func (c *CLI) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <name>",
		Short:             "Delete a stored graph",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGraphNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)
			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}

// manifestCommand creates the manifest command.
func (c *CLI) manifestCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the widget manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(buildinfo.WidgetManifest(), "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := errors.ValidatePath(output); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the manifest to this file")
	return cmd
}
