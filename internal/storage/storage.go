// Package storage provides the local single-profile session datastore.
// It uses BoltDB as the underlying engine: one bucket of analyzed tremor
// sessions, each carrying the raw biomarker summary it was computed from
// plus the clinical interpretation returned to the caller.
//
// The raw summaries double as the optional training-augmentation source
// for the classifier, so records keep the summary JSON verbatim.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const sessionsBucket = "sessions"

// Store is the session datastore.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the profile database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "profiles.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket)); err != nil {
			return fmt.Errorf("create sessions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SessionRecord is one analyzed session.
type SessionRecord struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	RawSummary      json.RawMessage `json:"raw_summary,omitempty"`
	ClinicalSummary string          `json:"clinical_summary"`
	ConfidenceLevel string          `json:"confidence_level"`
	AdvisoryNote    string          `json:"advisory_note"`
	ReportSource    string          `json:"report_source,omitempty"`
}

// SaveSession stores a session record. The key is creation-time ordered so
// cursor scans return sessions chronologically.
func (s *Store) SaveSession(rec SessionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		key := fmt.Sprintf("%020d_%s", rec.CreatedAt.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})
}

// ListSessions returns up to limit sessions, newest first. A limit of 0
// returns everything.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	var sessions []SessionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(sessionsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // skip malformed records
			}
			sessions = append(sessions, rec)
			if limit > 0 && len(sessions) >= limit {
				return nil
			}
		}
		return nil
	})

	return sessions, err
}

// RawSummaries returns the raw summary payloads of every stored session
// that has one. This is the ml.SessionSource the trainer's augmentation
// path consumes.
func (s *Store) RawSummaries() ([][]byte, error) {
	var raws [][]byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).ForEach(func(_, v []byte) error {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if len(rec.RawSummary) > 0 {
				raws = append(raws, rec.RawSummary)
			}
			return nil
		})
	})

	return raws, err
}
