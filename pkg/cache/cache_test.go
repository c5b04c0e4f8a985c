package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"hull/pkg/ident"
)

// fakeFetcher serves canned bodies by URL.
type fakeFetcher struct {
	responses map[string][]byte
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.calls = append(f.calls, url)
	body, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("unreachable: %s", url)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func indexDoc(t *testing.T, packages []PackageRecord) []byte {
	t.Helper()
	data, err := json.Marshal(Index{Packages: packages})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func stablePackages() []PackageRecord {
	return []PackageRecord{
		{
			Category: "sys-lib",
			Name:     "glibc",
			Versions: []VersionRecord{
				{Version: "5.9.0", SHA256: "aa", URL: "sys-lib/glibc-5.9.0.tar.gz"},
				{Version: "6.0.1", SHA256: "bb", URL: "sys-lib/glibc-6.0.1.tar.gz", Files: []string{"lib/libc.so.6"}},
			},
		},
		{
			Category: "shell",
			Name:     "dash",
			Versions: []VersionRecord{
				{
					Version:      "0.5.9",
					SHA256:       "cc",
					URL:          "shell/dash-0.5.9.tar.gz",
					Dependencies: []string{"sys-lib/glibc#>=6 <7"},
					Files:        []string{"bin/dash"},
				},
			},
		},
	}
}

func newTestCache(t *testing.T, fetcher *fakeFetcher, repos []Repository) *Cache {
	t.Helper()
	return New(t.TempDir(), repos, fetcher)
}

func TestPullCommitsIndex(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m1/index.json": indexDoc(t, stablePackages()),
	}}
	c := newTestCache(t, fetcher, []Repository{{Name: "stable", Mirrors: []string{"http://m1"}}})

	results, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}

	ids, err := c.Query(ident.MustParsePattern("glibc"), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []ident.ID{
		ident.MustParseID("stable::sys-lib/glibc#6.0.1"),
		ident.MustParseID("stable::sys-lib/glibc#5.9.0"),
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Query = %v, want %v", ids, want)
	}
}

func TestPullMirrorFailover(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m2/index.json": indexDoc(t, stablePackages()),
	}}
	c := newTestCache(t, fetcher, []Repository{
		{Name: "stable", Mirrors: []string{"http://m1", "http://m2"}},
	})

	results, err := c.Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil {
		t.Fatalf("pull should succeed via second mirror: %v", results[0].Err)
	}
	if fetcher.calls[0] != "http://m1/index.json" {
		t.Errorf("mirrors not tried in order: %v", fetcher.calls)
	}
}

func TestPullMirrorExhaustedKeepsOldIndex(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m1/index.json": indexDoc(t, stablePackages()),
	}}
	c := newTestCache(t, fetcher, []Repository{{Name: "stable", Mirrors: []string{"http://m1"}}})

	if _, err := c.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The mirror goes dark; the committed index must survive.
	fetcher.responses = map[string][]byte{}
	results, err := c.Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var exhausted *MirrorExhaustedError
	if !errors.As(results[0].Err, &exhausted) {
		t.Fatalf("expected MirrorExhaustedError, got %v", results[0].Err)
	}

	ids, err := c.Query(ident.MustParsePattern("dash"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("old index lost after failed pull: %v", ids)
	}
}

func TestPullRejectsMalformedIndex(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m1/index.json": []byte("{not json"),
	}}
	c := newTestCache(t, fetcher, []Repository{{Name: "stable", Mirrors: []string{"http://m1"}}})

	results, err := c.Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err == nil || !errors.Is(results[0].Err, ErrMalformedIndex) {
		// The malformed document is the last error behind mirror exhaustion.
		var exhausted *MirrorExhaustedError
		if !errors.As(results[0].Err, &exhausted) || !errors.Is(exhausted.Last, ErrMalformedIndex) {
			t.Errorf("expected malformed-index failure, got %v", results[0].Err)
		}
	}
}

func TestQueryRepositoryOrder(t *testing.T) {
	doc := indexDoc(t, []PackageRecord{{
		Category: "sys-devel",
		Name:     "gcc",
		Versions: []VersionRecord{{Version: "8.1.1", SHA256: "aa", URL: "gcc.tar.gz"}},
	}})
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://stable/index.json": doc,
		"http://beta/index.json":   doc,
	}}
	c := newTestCache(t, fetcher, []Repository{
		{Name: "stable", Mirrors: []string{"http://stable"}},
		{Name: "beta", Mirrors: []string{"http://beta"}},
	})
	if _, err := c.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Equal versions: the earlier repository wins the tie.
	ids, err := c.Query(ident.MustParsePattern("gcc"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0].Repository != "stable" || ids[1].Repository != "beta" {
		t.Errorf("Query = %v", ids)
	}

	// An explicit order reverses the preference.
	ids, err = c.Query(ident.MustParsePattern("gcc"), []string{"beta", "stable"})
	if err != nil {
		t.Fatal(err)
	}
	if ids[0].Repository != "beta" {
		t.Errorf("Query with order = %v", ids)
	}

	// A repository-qualified pattern pins the repository.
	ids, err = c.Query(ident.MustParsePattern("beta::sys-devel/gcc"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0].Repository != "beta" {
		t.Errorf("pinned Query = %v", ids)
	}
}

func TestLookup(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m1/index.json": indexDoc(t, stablePackages()),
	}}
	c := newTestCache(t, fetcher, []Repository{{Name: "stable", Mirrors: []string{"http://m1", "http://m2"}}})
	if _, err := c.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	meta, err := c.Lookup(ident.MustParseID("stable::shell/dash#0.5.9"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(meta.Dependencies) != 1 || meta.Dependencies[0].Name != "glibc" {
		t.Errorf("dependencies = %v", meta.Dependencies)
	}
	if !reflect.DeepEqual(meta.Files, []string{"bin/dash"}) {
		t.Errorf("files = %v", meta.Files)
	}
	want := []string{
		"http://m1/shell/dash-0.5.9.tar.gz",
		"http://m2/shell/dash-0.5.9.tar.gz",
	}
	if !reflect.DeepEqual(meta.URLs, want) {
		t.Errorf("urls = %v", meta.URLs)
	}

	if _, err := c.Lookup(ident.MustParseID("stable::shell/dash#9.9.9")); !errors.Is(err, ErrNoSuchVersion) {
		t.Errorf("missing version: %v", err)
	}
	if _, err := c.Lookup(ident.MustParseID("stable::shell/fish#1.0.0")); !errors.Is(err, ErrNoSuchPackage) {
		t.Errorf("missing package: %v", err)
	}
}

func TestIndexReplaceIsAtomic(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"http://m1/index.json": indexDoc(t, stablePackages()),
	}}
	dir := t.TempDir()
	c := New(dir, []Repository{{Name: "stable", Mirrors: []string{"http://m1"}}}, fetcher)

	if _, err := c.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "stable"))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() != "index.json" {
			t.Errorf("leftover temp file %s", entry.Name())
		}
	}
}
