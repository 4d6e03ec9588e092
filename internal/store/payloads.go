package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// ArchivePayload stores a compressed copy of a fetched feed payload.
// Returns the payload ID, or 0 if an identical payload was already stored.
func (s *Store) ArchivePayload(runID int64, url string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads (fetch_run_id, fetched_at, url, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, runID, time.Now().UTC(), url, buf.Bytes(), hashHex)
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}
	// On conflict nothing was inserted and LastInsertId would report the
	// connection's previous row, not this statement's.
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if inserted == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// LatestPayloadID returns the most recent payload ID for a feed URL, or 0.
func (s *Store) LatestPayloadID(url string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT id FROM raw_payloads WHERE url = ? ORDER BY fetched_at DESC LIMIT 1
	`, url).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

// CleanupOldPayloads deletes archived payloads older than retentionDays.
func (s *Store) CleanupOldPayloads(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM raw_payloads
		WHERE fetched_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
