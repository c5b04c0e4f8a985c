package depgraph

import (
	"reflect"
	"testing"

	"hull/pkg/ident"
)

func planStrings(p Plan) []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.String()
	}
	return out
}

func TestDiffStability(t *testing.T) {
	g := buildSolvedPair(t)
	if plan := Diff(g, g); !plan.Empty() {
		t.Errorf("diff(G, G) = %v, want empty", planStrings(plan))
	}
	if plan := Diff(g, g.Clone()); !plan.Empty() {
		t.Errorf("diff(G, clone(G)) = %v, want empty", planStrings(plan))
	}
}

func TestDiffSimpleInstall(t *testing.T) {
	current := New()
	scratch := buildSolvedPair(t)

	plan := Diff(current, scratch)
	want := []string{
		"Install stable::sys-lib/glibc#6.0.1",
		"Install stable::shell/dash#0.5.9",
	}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

func TestDiffUninstall(t *testing.T) {
	current := buildSolvedPair(t)
	scratch := New()

	plan := Diff(current, scratch)
	want := []string{
		"Remove stable::shell/dash#0.5.9",
		"Remove stable::sys-lib/glibc#6.0.1",
	}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

// TestDiffUpgradeChain covers the upgrade whose new version needs a new
// major of a dependency: the new dependency is installed first, the
// dependent upgrades onto it, and only then is the stranded old
// dependency removed.
func TestDiffUpgradeChain(t *testing.T) {
	current := buildSolvedPair(t)

	provider := &fakeProvider{}
	provider.add("stable::sys-lib/glibc#6.0.1")
	provider.add("stable::sys-lib/glibc#7.1.4")
	provider.add("stable::shell/dash#1.0.1", "sys-lib/glibc#>=7.1.0")

	scratch := current.Clone()
	if err := scratch.ResetGroup(ident.RootGroup); err != nil {
		t.Fatal(err)
	}
	if err := NewSolver(provider, nil).Solve(scratch); err != nil {
		t.Fatal(err)
	}

	plan := Diff(current, scratch)
	want := []string{
		"Install stable::sys-lib/glibc#7.1.4",
		"Upgrade stable::shell/dash#0.5.9 -> #1.0.1",
		"Remove stable::sys-lib/glibc#6.0.1",
	}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

// TestDiffInPlaceUpgrade covers a dependency patch bump under an
// unchanged dependent: the carried requirement makes it a single
// Upgrade step.
func TestDiffInPlaceUpgrade(t *testing.T) {
	current := buildSolvedPair(t)

	provider := &fakeProvider{}
	provider.add("stable::sys-lib/glibc#6.0.2")
	provider.add("stable::shell/dash#0.5.9", "sys-lib/glibc#>=6 <7")

	scratch := current.Clone()
	if err := scratch.ResetGroup(ident.RootGroup); err != nil {
		t.Fatal(err)
	}
	if err := NewSolver(provider, nil).Solve(scratch); err != nil {
		t.Fatal(err)
	}

	plan := Diff(current, scratch)
	want := []string{"Upgrade stable::sys-lib/glibc#6.0.1 -> #6.0.2"}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

func TestDiffDowngrade(t *testing.T) {
	current := New()
	rid, err := current.AddRequirement(ident.RootGroup, ident.MustParsePattern("gcc"), KindStatic)
	if err != nil {
		t.Fatal(err)
	}
	nid, err := current.AddPackage(ident.MustParseID("stable::sys-devel/gcc#8.1.1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := current.SetFulfiller(rid, nid); err != nil {
		t.Fatal(err)
	}

	scratch := New()
	rid, err = scratch.AddRequirement(ident.RootGroup, ident.MustParsePattern("gcc"), KindStatic)
	if err != nil {
		t.Fatal(err)
	}
	nid, err = scratch.AddPackage(ident.MustParseID("stable::sys-devel/gcc#7.3.0"))
	if err != nil {
		t.Fatal(err)
	}
	if err := scratch.SetFulfiller(rid, nid); err != nil {
		t.Fatal(err)
	}

	plan := Diff(current, scratch)
	want := []string{"Downgrade stable::sys-devel/gcc#8.1.1 -> #7.3.0"}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

func TestDiffAlphabeticalTieBreak(t *testing.T) {
	provider := &fakeProvider{}
	provider.add("stable::app/zsh#5.5.0")
	provider.add("stable::app/bash#4.4.0")
	provider.add("stable::app/dash#0.5.9")

	scratch := New()
	for _, name := range []string{"zsh", "dash", "bash"} {
		if _, err := scratch.AddRequirement(ident.RootGroup, ident.MustParsePattern(name), KindStatic); err != nil {
			t.Fatal(err)
		}
	}
	if err := NewSolver(provider, nil).Solve(scratch); err != nil {
		t.Fatal(err)
	}

	plan := Diff(New(), scratch)
	want := []string{
		"Install stable::app/bash#4.4.0",
		"Install stable::app/dash#0.5.9",
		"Install stable::app/zsh#5.5.0",
	}
	if got := planStrings(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("plan = %v, want %v", got, want)
	}
}

func TestPlanInverse(t *testing.T) {
	plan := Plan{Steps: []Step{
		InstallStep(ident.MustParseID("stable::sys-lib/glibc#7.1.4")),
		ReplaceStep(ident.MustParseID("stable::shell/dash#0.5.9"), ident.MustParseID("stable::shell/dash#1.0.1")),
		RemoveStep(ident.MustParseID("stable::sys-lib/glibc#6.0.1")),
	}}

	inv := plan.Inverse()
	want := []string{
		"Install stable::sys-lib/glibc#6.0.1",
		"Downgrade stable::shell/dash#1.0.1 -> #0.5.9",
		"Remove stable::sys-lib/glibc#7.1.4",
	}
	if got := planStrings(inv); !reflect.DeepEqual(got, want) {
		t.Errorf("inverse = %v, want %v", got, want)
	}
}
