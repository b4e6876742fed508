package validator_test

import (
	"testing"

	"github.com/bobboyms/write-validator/pkg/catalog"
	"github.com/bobboyms/write-validator/pkg/precision"
	"github.com/bobboyms/write-validator/pkg/validator"
	"github.com/bobboyms/write-validator/pkg/wal"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	opts := wal.DefaultOptions()
	opts.SyncPolicy = wal.SyncEveryWrite
	c, err := catalog.Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

const fiveMinutesNs = int64(5 * 60 * 1_000_000_000)

// S1 — create new table.
func TestScenarioCreateNewTable(t *testing.T) {
	c := openTestCatalog(t)
	v, err := validator.Initialize(c, "mydb", 0)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	parsed, err := v.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)
	if err != nil {
		t.Fatalf("ParseAndUpdateSchema: %v", err)
	}
	result, err := parsed.ConvertToWriteBatch(fiveMinutesNs)
	if err != nil {
		t.Fatalf("ConvertToWriteBatch: %v", err)
	}

	if result.LineCount != 1 || result.FieldCount != 1 || result.IndexCount != 1 {
		t.Fatalf("got line=%d field=%d index=%d, want 1/1/1", result.LineCount, result.FieldCount, result.IndexCount)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if result.CatalogUpdates == nil {
		t.Fatalf("expected a catalog update for a brand-new table")
	}
	ops := result.CatalogUpdates.Batch.Ops
	if len(ops) != 1 || len(ops[0].FieldDefinitions) != 3 {
		t.Fatalf("expected one CreateTable with 3 fields, got %+v", ops)
	}

	tableIDs := result.ValidData.TableIDs()
	if len(tableIDs) != 1 {
		t.Fatalf("expected rows for exactly one table, got %d", len(tableIDs))
	}
	chunks := result.ValidData.Chunks(tableIDs[0])
	times := chunks.ChunkTimes()
	// 1234 s falls in the 5-minute window [1200 s, 1500 s).
	if len(times) != 1 || times[0] != 1_200_000_000_000 {
		t.Fatalf("expected a single chunk at time 1200000000000, got %v", times)
	}
	rows := chunks.Rows(times[0])
	if len(rows) != 1 || rows[0].Time != 1234*1_000_000_000 {
		t.Fatalf("expected row time %d, got %+v", 1234*1_000_000_000, rows)
	}

	snap := parsed.SchemaSnapshot()
	if snap == nil {
		t.Fatalf("expected a non-nil schema snapshot after parsing")
	}
	td, ok := snap.TableByName("cpu")
	if !ok {
		t.Fatalf("expected the snapshot to contain the newly staged table cpu")
	}
	if _, ok := td.ColumnByName("val1"); !ok {
		t.Fatalf("expected the snapshot's cpu table to contain val1")
	}
}

// S2 — repeat same shape: no schema change, row appended to the same chunk.
func TestScenarioRepeatSameShape(t *testing.T) {
	c := openTestCatalog(t)
	v, _ := validator.Initialize(c, "mydb", 0)
	parsed, _ := v.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)
	parsed.ConvertToWriteBatch(fiveMinutesNs)

	v2, err := validator.Initialize(c, "mydb", 0)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	parsed2, err := v2.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1235`, false, 0, precision.Auto)
	if err != nil {
		t.Fatalf("ParseAndUpdateSchema: %v", err)
	}
	result, err := parsed2.ConvertToWriteBatch(fiveMinutesNs)
	if err != nil {
		t.Fatalf("ConvertToWriteBatch: %v", err)
	}

	if result.LineCount != 1 || result.FieldCount != 1 || result.IndexCount != 1 {
		t.Fatalf("got line=%d field=%d index=%d, want 1/1/1", result.LineCount, result.FieldCount, result.IndexCount)
	}
	if result.CatalogUpdates != nil {
		t.Fatalf("expected no catalog update for a repeat of the same shape, got %+v", result.CatalogUpdates)
	}
}

// S3 — add new field: one AddFields with exactly val2.
func TestScenarioAddNewField(t *testing.T) {
	c := openTestCatalog(t)
	v1, _ := validator.Initialize(c, "mydb", 0)
	p1, _ := v1.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)
	p1.ConvertToWriteBatch(fiveMinutesNs)

	v2, _ := validator.Initialize(c, "mydb", 0)
	p2, _ := v2.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1235`, false, 0, precision.Auto)
	p2.ConvertToWriteBatch(fiveMinutesNs)

	v3, err := validator.Initialize(c, "mydb", 0)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	p3, err := v3.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar",val2=false 1236`, false, 0, precision.Auto)
	if err != nil {
		t.Fatalf("ParseAndUpdateSchema: %v", err)
	}
	result, err := p3.ConvertToWriteBatch(fiveMinutesNs)
	if err != nil {
		t.Fatalf("ConvertToWriteBatch: %v", err)
	}

	if result.FieldCount != 2 || result.IndexCount != 1 {
		t.Fatalf("got field=%d index=%d, want 2/1", result.FieldCount, result.IndexCount)
	}
	if result.CatalogUpdates == nil {
		t.Fatalf("expected an AddFields catalog update")
	}
	ops := result.CatalogUpdates.Batch.Ops
	if len(ops) != 1 || len(ops[0].FieldDefinitions) != 1 || ops[0].FieldDefinitions[0].Name != "val2" {
		t.Fatalf("expected exactly one new field val2, got %+v", ops)
	}
}

// S4 — type conflict, strict: batch fails, catalog unchanged.
func TestScenarioTypeConflictStrict(t *testing.T) {
	c := openTestCatalog(t)
	v1, _ := validator.Initialize(c, "mydb", 0)
	p1, _ := v1.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)
	p1.ConvertToWriteBatch(fiveMinutesNs)

	v2, err := validator.Initialize(c, "mydb", 0)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	_, err = v2.ParseAndUpdateSchema(`cpu,tag1=foo val1=5 1237`, false, 0, precision.Auto)
	if err == nil {
		t.Fatalf("expected a type-mismatch failure")
	}
	if got := err.Error(); !contains(got, "val1") || !contains(got, "String") || !contains(got, "Integer") {
		t.Fatalf("expected error naming val1/String/Integer, got %q", got)
	}
}

// S5 — type conflict, partial: one error, one row, no schema change.
func TestScenarioTypeConflictPartial(t *testing.T) {
	c := openTestCatalog(t)
	v1, _ := validator.Initialize(c, "mydb", 0)
	p1, _ := v1.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)
	p1.ConvertToWriteBatch(fiveMinutesNs)

	v2, _ := validator.Initialize(c, "mydb", 0)
	input := "cpu,tag1=foo val1=5 1237\ncpu,tag1=foo val1=\"baz\" 1238"
	parsed, err := v2.ParseAndUpdateSchema(input, true, 0, precision.Auto)
	if err != nil {
		t.Fatalf("ParseAndUpdateSchema: %v", err)
	}
	result, err := parsed.ConvertToWriteBatch(fiveMinutesNs)
	if err != nil {
		t.Fatalf("ConvertToWriteBatch: %v", err)
	}

	if result.LineCount != 2 {
		t.Fatalf("got line_count=%d, want 2", result.LineCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(result.Errors))
	}
	if result.CatalogUpdates != nil {
		t.Fatalf("expected no catalog update: the valid line introduced nothing new")
	}
	tableIDs := result.ValidData.TableIDs()
	total := 0
	for _, id := range tableIDs {
		chunks := result.ValidData.Chunks(id)
		for _, ct := range chunks.ChunkTimes() {
			total += len(chunks.Rows(ct))
		}
	}
	if total != 1 {
		t.Fatalf("got %d rows in write batch, want 1", total)
	}
}

// S6 — ingest-time fallback when the line omits a timestamp.
func TestScenarioIngestTimeFallback(t *testing.T) {
	c := openTestCatalog(t)
	v, err := validator.Initialize(c, "mydb", 42_000_000_000)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	parsed, err := v.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar"`, false, 42_000_000_000, precision.Nanosecond)
	if err != nil {
		t.Fatalf("ParseAndUpdateSchema: %v", err)
	}
	rows := parsed.Rows()
	if len(rows) != 1 || rows[0].Row.Time != 42_000_000_000 {
		t.Fatalf("expected fallback time 42_000_000_000, got %+v", rows)
	}
}

func TestConvertToWriteBatchRejectsDoubleCall(t *testing.T) {
	c := openTestCatalog(t)
	v, _ := validator.Initialize(c, "mydb", 0)
	parsed, _ := v.ParseAndUpdateSchema(`cpu,tag1=foo val1="bar" 1234`, false, 0, precision.Auto)

	if _, err := parsed.ConvertToWriteBatch(fiveMinutesNs); err != nil {
		t.Fatalf("first ConvertToWriteBatch: %v", err)
	}
	if _, err := parsed.ConvertToWriteBatch(fiveMinutesNs); err == nil {
		t.Fatalf("expected the second ConvertToWriteBatch call to be rejected")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
