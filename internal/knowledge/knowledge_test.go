package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cts-structure/internal/structure"
	"github.com/pdiddy/cts-structure/pkg/types"
)

const iliad = "urn:cts:greekLit:tlg0012.tlg001"

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := types.KnowledgeBaseConfig{
		KnowledgeDir: filepath.Join(tmpDir, "knowledge"),
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func sampleStructure(urn string) *types.TextStructure {
	return &types.TextStructure{
		URN:        urn,
		Provenance: "http://cts.perseids.org/api/cts",
		Levels: []types.Level{
			{Number: 1, Label: "book"},
			{Number: 2, Label: "line"},
		},
		ValidReffs: map[int][]types.ReferenceElement{
			1: {
				{Current: urn + ":1", Previous: urn + ":2"},
				{Current: urn + ":2", Following: urn + ":1"},
			},
			2: {
				{Current: urn + ":1.1", Parent: urn + ":1", Previous: urn + ":1.2"},
				{Current: urn + ":1.2", Parent: urn + ":1", Previous: urn + ":2.1", Following: urn + ":1.1"},
				{Current: urn + ":2.1", Parent: urn + ":2", Following: urn + ":1.2"},
			},
		},
	}
}

func writeStructure(t *testing.T, dir string, ts *types.TextStructure) string {
	t.Helper()
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, structure.FileName(ts.URN))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	if err := store.db.QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// --- schema ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	for _, table := range []string{"text_structures", "citation_levels", "text_elements"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(types.KnowledgeBaseConfig{KnowledgeDir: t.TempDir(), Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("err = %v, want unsupported driver", err)
	}
}

func TestNewStorePgxRequiresDSN(t *testing.T) {
	_, err := NewStore(types.KnowledgeBaseConfig{KnowledgeDir: t.TempDir(), Driver: "pgx"})
	if err == nil || !strings.Contains(err.Error(), "requires a dsn") {
		t.Fatalf("err = %v, want dsn error", err)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`

	sqlite := &Store{driver: driverSQLite}
	if got := sqlite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	pg := &Store{driver: driverPostgres}
	want := `SELECT a FROM t WHERE b = $1 AND c = $2`
	if got := pg.rebind(q); got != want {
		t.Errorf("pgx rebind = %q, want %q", got, want)
	}
}

// --- populate ---

func TestPopulateCreates(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()

	status, err := store.Populate(ctx, sampleStructure(iliad))
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusCreated {
		t.Errorf("status = %s, want created", status)
	}
	if n := countRows(t, store, "citation_levels"); n != 2 {
		t.Errorf("levels = %d, want 2", n)
	}
	if n := countRows(t, store, "text_elements"); n != 5 {
		t.Errorf("elements = %d, want 5", n)
	}
}

func TestPopulateRoundTrip(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	want := sampleStructure(iliad)

	if _, err := store.Populate(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Structure(ctx, iliad)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestPopulateTwiceIsNoOp(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()

	if _, err := store.Populate(ctx, sampleStructure(iliad)); err != nil {
		t.Fatal(err)
	}
	var before string
	if err := store.db.QueryRow(`SELECT populated_at FROM text_structures`).Scan(&before); err != nil {
		t.Fatal(err)
	}

	status, err := store.Populate(ctx, sampleStructure(iliad))
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusSkipped {
		t.Errorf("status = %s, want skipped", status)
	}

	var after string
	if err := store.db.QueryRow(`SELECT populated_at FROM text_structures`).Scan(&after); err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Errorf("populated_at changed on skip: %s -> %s", before, after)
	}
	if n := countRows(t, store, "text_elements"); n != 5 {
		t.Errorf("elements = %d, want 5", n)
	}
}

func TestPopulateUpdatesChangedStructure(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()

	if _, err := store.Populate(ctx, sampleStructure(iliad)); err != nil {
		t.Fatal(err)
	}

	changed := sampleStructure(iliad)
	changed.Levels = changed.Levels[:1]
	delete(changed.ValidReffs, 2)

	status, err := store.Populate(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusUpdated {
		t.Errorf("status = %s, want updated", status)
	}

	got, err := store.Structure(ctx, iliad)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, changed) {
		t.Errorf("updated structure mismatch:\n got  %+v\n want %+v", got, changed)
	}
	if n := countRows(t, store, "text_elements"); n != 2 {
		t.Errorf("elements = %d, want 2", n)
	}
}

func TestPopulateRejectsNil(t *testing.T) {
	store, _ := testSetup(t)

	if _, err := store.Populate(context.Background(), nil); err == nil {
		t.Error("expected error for nil structure")
	}
	if _, err := store.Populate(context.Background(), &types.TextStructure{}); err == nil {
		t.Error("expected error for structure without urn")
	}
	if n := countRows(t, store, "text_structures"); n != 0 {
		t.Errorf("structures = %d, want 0", n)
	}
}

func TestPopulateDir(t *testing.T) {
	store, tmpDir := testSetup(t)
	dataDir := filepath.Join(tmpDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	writeStructure(t, dataDir, sampleStructure(iliad))
	writeStructure(t, dataDir, sampleStructure("urn:cts:greekLit:tlg0012.tlg002"))
	if err := os.WriteFile(filepath.Join(dataDir, "broken.json"), []byte("null"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := store.PopulateDir(context.Background(), dataDir, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 2 || summary.Failed != 1 || summary.Total() != 3 {
		t.Errorf("summary = %+v, want 2 created, 1 failed", summary)
	}
	out := buf.String()
	if !strings.Contains(out, "indexing "+iliad+" (2 levels, 5 elements)") {
		t.Errorf("output missing indexing line:\n%s", out)
	}
	if !strings.Contains(out, "failed: broken.json") {
		t.Errorf("output missing failure line:\n%s", out)
	}

	// Export is written after changes.
	if _, err := os.Stat(store.ExportPath("export.yaml")); err != nil {
		t.Errorf("export.yaml not written: %v", err)
	}

	// Second run skips everything.
	buf.Reset()
	summary, err = store.PopulateDir(context.Background(), dataDir, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 2 || summary.Created != 0 {
		t.Errorf("second run summary = %+v, want 2 skipped", summary)
	}
}

func TestPopulateDirMissing(t *testing.T) {
	store, tmpDir := testSetup(t)
	_, err := store.PopulateDir(context.Background(), filepath.Join(tmpDir, "nope"), &strings.Builder{})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

// --- retrieve ---

func TestStructureNotFound(t *testing.T) {
	store, _ := testSetup(t)
	_, err := store.Structure(context.Background(), iliad)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestElement(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	if _, err := store.Populate(ctx, sampleStructure(iliad)); err != nil {
		t.Fatal(err)
	}

	e, err := store.Element(ctx, iliad+":1.2")
	if err != nil {
		t.Fatal(err)
	}
	if e.StructureURN != iliad || e.Level != 2 || e.Label != "line" || e.Position != 1 {
		t.Errorf("element position = %+v", e)
	}
	if e.Parent != iliad+":1" || e.Previous != iliad+":2.1" || e.Following != iliad+":1.1" {
		t.Errorf("element links = %+v", e.ReferenceElement)
	}

	if _, err := store.Element(ctx, iliad+":9.9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChildren(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	if _, err := store.Populate(ctx, sampleStructure(iliad)); err != nil {
		t.Fatal(err)
	}

	children, err := store.Children(ctx, iliad+":1")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range children {
		got = append(got, c.Current)
	}
	want := []string{iliad + ":1.1", iliad + ":1.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
}

func TestList(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	for _, urn := range []string{"urn:cts:latinLit:phi0448.phi001", iliad} {
		if _, err := store.Populate(ctx, sampleStructure(urn)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].URN != iliad {
		t.Errorf("list not ordered by urn: %v", list)
	}
	if list[0].Levels != 2 || list[0].Elements != 5 {
		t.Errorf("summary counts = %+v", list[0])
	}
}

// --- export ---

func TestExportYAML(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	if _, err := store.Populate(ctx, sampleStructure(iliad)); err != nil {
		t.Fatal(err)
	}

	if err := store.ExportYAML(ctx); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(store.ExportPath("export.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatalf("parsing export.yaml: %v", err)
	}
	if len(entries) != 1 || entries[0]["urn"] != iliad {
		t.Errorf("unexpected export: %v", entries)
	}
	levels, ok := entries[0]["levels"].([]any)
	if !ok || len(levels) != 2 {
		t.Fatalf("levels = %v", entries[0]["levels"])
	}
	if pair, ok := levels[0].([]any); !ok || pair[1] != "book" {
		t.Errorf("level pair = %v", levels[0])
	}
}

func TestExportJSON(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	want := sampleStructure(iliad)
	if _, err := store.Populate(ctx, want); err != nil {
		t.Fatal(err)
	}

	if err := store.ExportJSON(ctx); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(store.ExportPath("export.json"))
	if err != nil {
		t.Fatal(err)
	}

	var got []*types.TextStructure
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Errorf("export mismatch: %+v", got)
	}
}
