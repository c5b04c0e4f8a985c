package ui

import (
	"fmt"
	"os"
	"text/tabwriter"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
	"hull/pkg/installed"
)

// PrintPlan renders the steps of a plan for confirmation.
func PrintPlan(plan depgraph.Plan) {
	if plan.Empty() {
		MutedMsg("Nothing to do")
		return
	}

	HeaderMsg("Planned steps")
	for _, step := range plan.Steps {
		var tag string
		switch step.Op {
		case depgraph.OpInstall:
			tag = Green("install")
		case depgraph.OpRemove:
			tag = Red("remove")
		case depgraph.OpUpgrade:
			tag = Cyan("upgrade")
		case depgraph.OpDowngrade:
			tag = Yellow("downgrade")
		}

		switch step.Op {
		case depgraph.OpInstall:
			fmt.Printf("  %s %-10s %s\n", SymbolBullet, tag, step.To)
		case depgraph.OpRemove:
			fmt.Printf("  %s %-10s %s\n", SymbolBullet, tag, step.From)
		default:
			fmt.Printf("  %s %-10s %s %s #%s\n", SymbolBullet, tag, step.From, SymbolArrow, step.To.Version)
		}
	}
	fmt.Println()
}

// PrintSearchResults renders cache query results.
func PrintSearchResults(ids []ident.ID) {
	if len(ids) == 0 {
		MutedMsg("No packages found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, Bold("REPOSITORY")+"\t"+Bold("PACKAGE")+"\t"+Bold("VERSION"))
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			Repository.Sprint(id.Repository),
			PackageName.Sprint(id.Category+"/"+id.Name),
			PackageVersion.Sprint(id.Version))
	}
	w.Flush()
}

// PrintInstalled renders the installed-manifest view.
func PrintInstalled(manifests []installed.Manifest) {
	if len(manifests) == 0 {
		MutedMsg("No packages installed")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, Bold("PACKAGE")+"\t"+Bold("VERSION")+"\t"+Bold("FILES")+"\t"+Bold("INSTALLED"))
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			PackageName.Sprint(m.ID.Repository+"::"+m.ID.Category+"/"+m.ID.Name),
			PackageVersion.Sprint(m.ID.Version),
			len(m.Files),
			m.InstalledAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
