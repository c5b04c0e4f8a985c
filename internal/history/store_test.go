package history

import (
	"errors"
	"path/filepath"
	"testing"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry(t *testing.T, command string) *Entry {
	t.Helper()
	entry, err := NewEntry(command, samplePlan(), depgraph.New())
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return entry
}

func samplePlan() depgraph.Plan {
	return depgraph.Plan{Steps: []depgraph.Step{
		depgraph.InstallStep(ident.MustParseID("stable::sys-lib/glibc#6.0.1")),
		depgraph.InstallStep(ident.MustParseID("stable::shell/dash#0.5.9")),
	}}
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	store := setupTestStore(t)

	var last uint64
	for i := 0; i < 5; i++ {
		entry := sampleEntry(t, "install dash")
		if err := store.Append(entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if entry.ID <= last {
			t.Fatalf("id %d not greater than previous %d", entry.ID, last)
		}
		last = entry.ID
	}
}

func TestListNewestFirst(t *testing.T) {
	store := setupTestStore(t)

	for _, cmd := range []string{"pull", "install gcc", "upgrade"} {
		if err := store.Append(sampleEntry(t, cmd)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Command != "upgrade" || entries[2].Command != "pull" {
		t.Errorf("wrong order: %v, %v, %v", entries[0].Command, entries[1].Command, entries[2].Command)
	}

	limited, err := store.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(limited))
	}
}

func TestGetAndLast(t *testing.T) {
	store := setupTestStore(t)

	if last, err := store.Last(); err != nil || last != nil {
		t.Fatalf("Last() on empty log = %v, %v", last, err)
	}

	entry := sampleEntry(t, "install dash")
	if err := store.Append(entry); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Command != "install dash" || len(got.Plan.Steps) != 2 {
		t.Errorf("Get returned %+v", got)
	}

	if _, err := store.Get(entry.ID + 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	last, err := store.Last()
	if err != nil || last == nil || last.ID != entry.ID {
		t.Errorf("Last() = %v, %v", last, err)
	}
}

func TestAfterAndTruncate(t *testing.T) {
	store := setupTestStore(t)

	var ids []uint64
	for _, cmd := range []string{"pull", "install gcc", "upgrade dash"} {
		entry := sampleEntry(t, cmd)
		if err := store.Append(entry); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, entry.ID)
	}

	// After walks newest-down, excluding the pivot.
	after, err := store.After(ids[0])
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("After returned %d entries", len(after))
	}
	if after[0].ID != ids[2] || after[1].ID != ids[1] {
		t.Errorf("After order = %d, %d", after[0].ID, after[1].ID)
	}

	if err := store.TruncateAfter(ids[0]); err != nil {
		t.Fatalf("TruncateAfter: %v", err)
	}
	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after truncate, got %d", count)
	}

	// Ids keep increasing after a truncation; nothing is reused.
	entry := sampleEntry(t, "install vim")
	if err := store.Append(entry); err != nil {
		t.Fatal(err)
	}
	if entry.ID <= ids[2] {
		t.Errorf("id %d reused after truncation (last was %d)", entry.ID, ids[2])
	}
}

func TestPlanRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	plan := depgraph.Plan{Steps: []depgraph.Step{
		depgraph.InstallStep(ident.MustParseID("stable::sys-lib/glibc#7.1.4")),
		depgraph.ReplaceStep(
			ident.MustParseID("stable::shell/dash#0.5.9"),
			ident.MustParseID("stable::shell/dash#1.0.1")),
		depgraph.RemoveStep(ident.MustParseID("stable::sys-lib/glibc#6.0.1")),
	}}

	entry, err := NewEntry("upgrade", plan, depgraph.New())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append(entry); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Plan.Steps) != 3 {
		t.Fatalf("plan steps = %d", len(got.Plan.Steps))
	}
	if got.Plan.Steps[1].Op != depgraph.OpUpgrade {
		t.Errorf("step 1 op = %s", got.Plan.Steps[1].Op)
	}
	if got.Plan.Steps[1].To != ident.MustParseID("stable::shell/dash#1.0.1") {
		t.Errorf("step 1 to = %v", got.Plan.Steps[1].To)
	}
}
