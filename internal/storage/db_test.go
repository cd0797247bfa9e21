package storage

import (
	"path/filepath"
	"testing"

	"prozorro/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFailureRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.RecordFailure("UA-1", "rec-1", "missing required field: items", "/tmp/UA-1.json"); err != nil {
		t.Fatal(err)
	}
	// repeat failure replaces the entry
	if err := db.RecordFailure("UA-1", "rec-1", "missing required field: value", "/tmp/UA-1.json"); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordFailure("UA-2", "", "boom", "/tmp/UA-2.json"); err != nil {
		t.Fatal(err)
	}

	failures, err := db.ListFailures(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 {
		t.Fatalf("len=%d", len(failures))
	}
	byID := map[string]internal.FailureRow{}
	for _, f := range failures {
		byID[f.TenderID] = f
	}
	if byID["UA-1"].Reason != "missing required field: value" {
		t.Fatalf("upsert did not replace reason: %q", byID["UA-1"].Reason)
	}
	if byID["UA-2"].RecordID != "" {
		t.Fatalf("expected empty recordId, got %q", byID["UA-2"].RecordID)
	}

	if err := db.DeleteFailure("UA-1"); err != nil {
		t.Fatal(err)
	}
	failures, err = db.ListFailures(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].TenderID != "UA-2" {
		t.Fatalf("unexpected failures after delete: %+v", failures)
	}
}

func TestRunBookkeeping(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.InsertRun("trace-1", "2022-01-01", "2022-02-01")
	if err != nil {
		t.Fatal(err)
	}
	counts := internal.RunCounts{Processed: 10, Skipped: 2, Failed: 1, Uploaded: 80}
	if err := db.FinishRun(runID, counts); err != nil {
		t.Fatal(err)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	value, err := db.GetMetadata("etl.last_window_to")
	if err != nil {
		t.Fatal(err)
	}
	if value != nil {
		t.Fatalf("expected nil, got %q", *value)
	}

	if err := db.SetMetadata("etl.last_window_to", "2022-02-01"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("etl.last_window_to", "2022-03-01"); err != nil {
		t.Fatal(err)
	}
	value, err = db.GetMetadata("etl.last_window_to")
	if err != nil {
		t.Fatal(err)
	}
	if value == nil || *value != "2022-03-01" {
		t.Fatalf("unexpected value %v", value)
	}
}
