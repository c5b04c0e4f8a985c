package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

var graphCmd = &cobra.Command{
	Use:   "graph [package]",
	Short: "Show the dependency graph",
	Long: `Render the dependency graph from @root down: groups, their
requirements, the packages fulfilling them and the automatic
requirements those packages induce. With an argument, only the subtree
of the matching package is shown.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: requireAdvanced,
	RunE:              runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	return hullApp.withState(func(st *state) error {
		graph, pending, err := hullApp.loadScratch(st.current)
		if err != nil {
			return err
		}
		if pending {
			ui.MutedMsg("(including unmerged changes)")
		}

		if len(args) == 1 {
			pattern, err := ident.ParsePattern(args[0])
			if err != nil {
				return err
			}
			for _, id := range graph.Packages() {
				if pattern.MatchName(id) {
					nid, _ := graph.PackageNode(id.FullName())
					printNode(graph, nid, 0, make(map[depgraph.NodeID]bool))
					return nil
				}
			}
			return fmt.Errorf("no package in the graph matches %s", pattern)
		}

		root, _ := graph.GroupNode(ident.RootGroup)
		printNode(graph, root, 0, make(map[depgraph.NodeID]bool))
		return nil
	})
}

// printNode renders a node and its subtree. Shared fulfillers are
// printed once; later references are marked instead of recursed into.
func printNode(g *depgraph.Graph, nid depgraph.NodeID, depth int, visited map[depgraph.NodeID]bool) {
	node := g.Node(nid)
	if node == nil {
		return
	}

	indent := strings.Repeat("  ", depth)
	if node.IsGroup() {
		ui.Println("%s%s", indent, ui.GroupName.Sprint(node.Group))
	} else {
		ui.Println("%s%s", indent, ui.PackageName.Sprint(node.Pkg.String()))
	}

	if visited[nid] {
		return
	}
	visited[nid] = true

	if node.IsGroup() {
		for _, name := range g.Groups() {
			gid, _ := g.GroupNode(name)
			if child := g.Node(gid); child != nil && child.Parent == nid {
				printNode(g, gid, depth+1, visited)
			}
		}
	}

	for _, rid := range node.Requirements {
		req := g.Requirement(rid)
		if req == nil {
			continue
		}

		indent := strings.Repeat("  ", depth+1)
		kind := ""
		if req.Kind == depgraph.KindAutomatic {
			kind = " (auto)"
		}
		if !req.Solved() {
			ui.Println("%s%s%s %s %s", indent, req.Target, kind, ui.SymbolArrow, ui.Yellow("unsolved"))
			continue
		}

		fulfiller := g.Node(req.Fulfiller)
		if visited[req.Fulfiller] {
			ui.Println("%s%s%s %s %s", indent, req.Target, kind, ui.SymbolArrow, fulfiller.Pkg)
			continue
		}
		ui.Println("%s%s%s %s", indent, req.Target, kind, ui.SymbolArrow)
		printNode(g, req.Fulfiller, depth+2, visited)
	}
}
