package depgraph

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"hull/pkg/ident"
)

func TestNewGraphHasRoot(t *testing.T) {
	g := New()

	rootID, ok := g.GroupNode(ident.RootGroup)
	if !ok {
		t.Fatal("new graph has no @root group")
	}
	root := g.Node(rootID)
	if root.Parent != NoNode {
		t.Error("@root must have no parent")
	}
}

func TestCreateAndDeleteGroup(t *testing.T) {
	g := New()

	if err := g.CreateGroup("@proj", ident.RootGroup); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := g.CreateGroup("@proj", ident.RootGroup); !errors.Is(err, ErrGroupExists) {
		t.Errorf("duplicate group: got %v, want ErrGroupExists", err)
	}
	if err := g.CreateGroup("@sub", "@proj"); err != nil {
		t.Fatalf("CreateGroup nested: %v", err)
	}
	if err := g.CreateGroup("bad", ident.RootGroup); err == nil {
		t.Error("group name without @ accepted")
	}

	// Non-empty groups refuse deletion without force.
	if _, err := g.AddRequirement("@proj", ident.MustParsePattern("dash"), KindStatic); err != nil {
		t.Fatalf("AddRequirement: %v", err)
	}
	if err := g.DeleteGroup("@proj", false); !errors.Is(err, ErrGroupNotEmpty) {
		t.Errorf("delete non-empty: got %v, want ErrGroupNotEmpty", err)
	}
	if err := g.DeleteGroup("@proj", true); err != nil {
		t.Fatalf("DeleteGroup force: %v", err)
	}
	if _, ok := g.GroupNode("@proj"); ok {
		t.Error("@proj still present after forced delete")
	}
	if _, ok := g.GroupNode("@sub"); ok {
		t.Error("@sub should be removed with its parent")
	}
	if err := g.DeleteGroup(ident.RootGroup, true); err == nil {
		t.Error("deleting @root must fail")
	}
}

func TestAddRequirementRejectsDuplicates(t *testing.T) {
	g := New()
	pat := ident.MustParsePattern("sys-devel/gcc#>=8")

	if _, err := g.AddRequirement(ident.RootGroup, pat, KindStatic); err != nil {
		t.Fatalf("AddRequirement: %v", err)
	}
	if _, err := g.AddRequirement(ident.RootGroup, pat, KindStatic); !errors.Is(err, ErrDuplicateRequirement) {
		t.Errorf("duplicate requirement: got %v, want ErrDuplicateRequirement", err)
	}

	// A different predicate on the same target is a distinct requirement.
	if _, err := g.AddRequirement(ident.RootGroup, ident.MustParsePattern("sys-devel/gcc#>=9"), KindStatic); err != nil {
		t.Errorf("distinct predicate rejected: %v", err)
	}
}

func TestFulfillerCascade(t *testing.T) {
	g := New()

	dash := ident.MustParseID("stable::shell/dash#0.5.9")
	glibc := ident.MustParseID("stable::sys-lib/glibc#6.0.1")

	reqDash, err := g.AddRequirement(ident.RootGroup, ident.MustParsePattern("dash"), KindStatic)
	if err != nil {
		t.Fatal(err)
	}
	dashNode, err := g.AddPackage(dash)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFulfiller(reqDash, dashNode); err != nil {
		t.Fatal(err)
	}

	reqGlibc, err := g.addRequirementTo(dashNode, ident.MustParsePattern("glibc#>=6 <7"), KindAutomatic)
	if err != nil {
		t.Fatal(err)
	}
	glibcNode, err := g.AddPackage(glibc)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFulfiller(reqGlibc, glibcNode); err != nil {
		t.Fatal(err)
	}

	// Removing the static requirement cascades through dash to glibc.
	if err := g.RemoveRequirement(ident.RootGroup, ident.MustParsePattern("dash")); err != nil {
		t.Fatalf("RemoveRequirement: %v", err)
	}
	if got := g.Packages(); len(got) != 0 {
		t.Errorf("expected empty graph after cascade, got %v", got)
	}
}

func TestSetFulfillerRejectsMismatch(t *testing.T) {
	g := New()

	rid, err := g.AddRequirement(ident.RootGroup, ident.MustParsePattern("glibc#>=7"), KindStatic)
	if err != nil {
		t.Fatal(err)
	}
	nid, err := g.AddPackage(ident.MustParseID("stable::sys-lib/glibc#6.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFulfiller(rid, nid); err == nil {
		t.Error("fulfiller violating the predicate accepted")
	}
}

func TestRemoveRequirementNamesDependents(t *testing.T) {
	g := buildSolvedPair(t)

	err := g.RemoveRequirement(ident.RootGroup, ident.MustParsePattern("glibc"))
	var depErr *DependentsError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependentsError, got %v", err)
	}
	if len(depErr.Dependents) != 1 || depErr.Dependents[0] != "stable::shell/dash#0.5.9" {
		t.Errorf("dependents = %v", depErr.Dependents)
	}
}

func TestGraphRoundTrip(t *testing.T) {
	g := buildSolvedPair(t)
	if err := g.CreateGroup("@proj", ident.RootGroup); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "depgraph.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	a, _ := json.Marshal(g)      //nolint:errcheck
	b, _ := json.Marshal(loaded) //nolint:errcheck
	if string(a) != string(b) {
		t.Errorf("round-trip mismatch:\n%s\n%s", a, b)
	}
}

func TestLoadMissingFileYieldsFreshGraph(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := g.GroupNode(ident.RootGroup); !ok {
		t.Error("fresh graph has no root")
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := buildSolvedPair(t)
	clone := g.Clone()

	if err := clone.RemoveRequirement(ident.RootGroup, ident.MustParsePattern("dash")); err != nil {
		t.Fatalf("RemoveRequirement on clone: %v", err)
	}

	if len(clone.Packages()) != 0 {
		t.Error("clone should be empty after removal")
	}
	if got := g.Packages(); len(got) != 2 {
		t.Errorf("original mutated through clone: %v", got)
	}
	if !reflect.DeepEqual(g.Packages(), []ident.ID{
		ident.MustParseID("stable::shell/dash#0.5.9"),
		ident.MustParseID("stable::sys-lib/glibc#6.0.1"),
	}) {
		t.Errorf("original packages = %v", g.Packages())
	}
}

// buildSolvedPair wires @root -> dash -> glibc by hand.
func buildSolvedPair(t *testing.T) *Graph {
	t.Helper()
	g := New()

	rid, err := g.AddRequirement(ident.RootGroup, ident.MustParsePattern("dash"), KindStatic)
	if err != nil {
		t.Fatal(err)
	}
	dashNode, err := g.AddPackage(ident.MustParseID("stable::shell/dash#0.5.9"))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFulfiller(rid, dashNode); err != nil {
		t.Fatal(err)
	}

	depRID, err := g.addRequirementTo(dashNode, ident.MustParsePattern("sys-lib/glibc#>=6 <7"), KindAutomatic)
	if err != nil {
		t.Fatal(err)
	}
	glibcNode, err := g.AddPackage(ident.MustParseID("stable::sys-lib/glibc#6.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFulfiller(depRID, glibcNode); err != nil {
		t.Fatal(err)
	}
	return g
}
