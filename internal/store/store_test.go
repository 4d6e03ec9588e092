package store

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// A file-backed database: with :memory: every pooled connection would
	// get its own empty database.
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestFetchRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartFetchRun("https://example.com/feed.csv")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("run should get an ID")
	}

	run.HTTPStatus = 200
	run.Attempts = 2
	run.ResponseSizeBytes = 1234
	run.Success = true
	if err := s.CompleteFetchRun(run); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}
	if !run.FinishedAt.Valid {
		t.Error("FinishedAt should be set on completion")
	}

	errors, err := s.RecentFetchErrors(10)
	if err != nil {
		t.Fatalf("RecentFetchErrors: %v", err)
	}
	if len(errors) != 0 {
		t.Errorf("successful run listed as error: %+v", errors)
	}
}

func TestRecentFetchErrors(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartFetchRun("https://example.com/feed.csv")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	run.HTTPStatus = 503
	run.Attempts = 5
	run.ErrorMessage = "status 503"
	if err := s.CompleteFetchRun(run); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}

	errors, err := s.RecentFetchErrors(10)
	if err != nil {
		t.Fatalf("RecentFetchErrors: %v", err)
	}
	if len(errors) != 1 {
		t.Fatalf("len(errors) = %d, want 1", len(errors))
	}
	if errors[0].HTTPStatus != 503 || errors[0].Attempts != 5 {
		t.Errorf("error run = %+v", errors[0])
	}
	if errors[0].ErrorMessage != "status 503" {
		t.Errorf("ErrorMessage = %q", errors[0].ErrorMessage)
	}
}

func TestArchivePayload_RoundtripAndDedup(t *testing.T) {
	s := newTestStore(t)

	run, err := s.StartFetchRun("https://example.com/feed.csv")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}

	payload := []byte("station_abbr;reference_timestamp;rre150h0\nAIG;2026-08-30T00:00:00Z;1.0\n")
	id, err := s.ArchivePayload(run.ID, run.URL, payload)
	if err != nil {
		t.Fatalf("ArchivePayload: %v", err)
	}
	if id == 0 {
		t.Fatal("first archive should insert")
	}

	got, err := s.GetPayload(id)
	if err != nil {
		t.Fatalf("GetPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload roundtrip mismatch: %q", got)
	}

	latest, err := s.LatestPayloadID(run.URL)
	if err != nil {
		t.Fatalf("LatestPayloadID: %v", err)
	}
	if latest != id {
		t.Errorf("LatestPayloadID = %d, want %d", latest, id)
	}

	// An identical payload is deduplicated by content hash and reports 0,
	// never the rowid of an earlier insert.
	dup, err := s.ArchivePayload(run.ID, run.URL, payload)
	if err != nil {
		t.Fatalf("second ArchivePayload: %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate archive id = %d, want 0", dup)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM raw_payloads`).Scan(&count); err != nil {
		t.Fatalf("count payloads: %v", err)
	}
	if count != 1 {
		t.Errorf("payload count = %d, want hash-deduplicated 1", count)
	}
}
