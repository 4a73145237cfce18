package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// storeFlags point one test's invocations at the same on-disk stores.
func storeFlags(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--env", "local",
		"--driver", "bleve",
		"--index-path", filepath.Join(dir, "index"),
		"--catalog", filepath.Join(dir, "catalog.db"),
		"--dictionary=",
	}
}

func mustExecute(t *testing.T, flags []string, args ...string) string {
	t.Helper()
	out, err := execute(t, append(args, flags...)...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestSeedThenSearch(t *testing.T) {
	flags := storeFlags(t)

	out := mustExecute(t, flags, "seed")
	if !strings.Contains(out, "created product") || !strings.Contains(out, "1 done") {
		t.Fatalf("seed output: %s", out)
	}

	out = mustExecute(t, flags, "search", "iphone", "black", "256gb")
	if !strings.Contains(out, "Color=Cosmic Black, Storage=256GB") {
		t.Errorf("search output: %s", out)
	}

	out = mustExecute(t, flags, "search", "iphone black 1tb")
	if strings.TrimSpace(out) != "no results" {
		t.Errorf("correlated search should be empty: %s", out)
	}

	out = mustExecute(t, flags, "legacy", "iphone black 1tb")
	if !strings.Contains(out, "iPhone 17 Pro Max") {
		t.Errorf("legacy search should return the phantom match: %s", out)
	}
}

func TestSearch_JSON(t *testing.T) {
	flags := storeFlags(t)
	mustExecute(t, flags, "seed")

	out := mustExecute(t, flags, "search", "iphone", "blue", "--format", "json")
	var lines []skuLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(lines) != 1 || lines[0].Attrs["Storage"] != "1TB" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestSearch_UnknownFormat(t *testing.T) {
	flags := storeFlags(t)
	if _, err := execute(t, append([]string{"search", "iphone", "--format", "xml"}, flags...)...); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSearch_RequiresQuery(t *testing.T) {
	if _, err := execute(t, "search"); err == nil {
		t.Error("expected error without query")
	}
}

func TestReindex_Args(t *testing.T) {
	flags := storeFlags(t)
	for _, args := range [][]string{{"reindex"}, {"reindex", "--all", "p1"}} {
		if _, err := execute(t, append(args, flags...)...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestReindexAllAndRelay(t *testing.T) {
	flags := storeFlags(t)

	out := mustExecute(t, flags, "seed", "--no-sync")
	if strings.Contains(out, "indexed") {
		t.Fatalf("--no-sync should not index: %s", out)
	}
	if out := mustExecute(t, flags, "search", "iphone"); strings.TrimSpace(out) != "no results" {
		t.Fatalf("pending product should not be searchable: %s", out)
	}

	out = mustExecute(t, flags, "relay", "--once")
	if !strings.Contains(out, "1 done") || !strings.Contains(out, "0 pending") {
		t.Errorf("relay output: %s", out)
	}

	out = mustExecute(t, flags, "reindex", "--all")
	if !strings.Contains(out, "reindexed: 1 done") {
		t.Errorf("reindex output: %s", out)
	}
	if out := mustExecute(t, flags, "search", "iphone"); !strings.Contains(out, "1. iPhone 17 Pro Max") {
		t.Errorf("search after relay: %s", out)
	}
}

func TestSearch_Refinements(t *testing.T) {
	flags := storeFlags(t)
	mustExecute(t, flags, "seed")

	out := mustExecute(t, flags, "search", "iphone", "--max-price", "1300")
	if !strings.Contains(out, "price=1199.00") || strings.Contains(out, "price=1599.00") {
		t.Errorf("max-price output: %s", out)
	}
	out = mustExecute(t, flags, "search", "iphone", "--in-stock", "--min-price", "1300")
	if !strings.Contains(out, "price=1599.00") {
		t.Errorf("min-price output: %s", out)
	}
	if _, err := execute(t, append([]string{"search", "iphone", "--min-price", "2000", "--max-price", "1000"}, flags...)...); err == nil {
		t.Error("expected error for an inverted price range")
	}
}

func TestCatalogSearch(t *testing.T) {
	flags := storeFlags(t)
	mustExecute(t, flags, "seed", "--no-sync")

	out := mustExecute(t, flags, "catalog", "iphone black 1tb")
	if strings.TrimSpace(out) != "no results" {
		t.Errorf("catalog search must correlate on one variant: %s", out)
	}
	out = mustExecute(t, flags, "catalog", "iphone", "blue", "1tb")
	if !strings.Contains(out, "1. iPhone 17 Pro Max") || !strings.Contains(out, "IP17PM-BLU-1TB") {
		t.Errorf("catalog output: %s", out)
	}
}

func TestReindex_Rebuild(t *testing.T) {
	flags := storeFlags(t)
	mustExecute(t, flags, "seed")

	if _, err := execute(t, append([]string{"reindex", "--rebuild", "p1"}, flags...)...); err == nil {
		t.Error("--rebuild without --all should fail")
	}

	out := mustExecute(t, flags, "reindex", "--all", "--rebuild")
	if !strings.Contains(out, "reindexed: 1 done") {
		t.Errorf("rebuild output: %s", out)
	}
	if out := mustExecute(t, flags, "search", "iphone", "blue"); !strings.Contains(out, "Galactic Blue") {
		t.Errorf("search after rebuild: %s", out)
	}
}

func TestReindex_UnknownProduct(t *testing.T) {
	flags := storeFlags(t)
	if _, err := execute(t, append([]string{"reindex", "missing"}, flags...)...); err == nil {
		t.Error("expected error for unknown product")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "catalogctl version dev (commit ") {
		t.Errorf("version output: %q", out)
	}
}
