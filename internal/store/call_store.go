package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Call statuses, in lifecycle order.
const (
	StatusPending    = "pending"     // originated, no media stream yet
	StatusInProgress = "in-progress" // media session active
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when no call record exists for a SID.
var ErrNotFound = errors.New("call record not found")

// CallRecord is the persisted metadata for one originated call.
type CallRecord struct {
	SID        string     `json:"sid"`
	ToNumber   string     `json:"to"`
	FromNumber string     `json:"from"`
	Status     string     `json:"status"`
	StreamSID  string     `json:"streamSid,omitempty"`
	Turns      int        `json:"turns"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

// CallStore persists call records.
type CallStore struct {
	db *DB
}

// NewCallStore creates a call store using the given database.
func NewCallStore(db *DB) *CallStore {
	return &CallStore{db: db}
}

// Insert records a freshly originated call as pending.
func (s *CallStore) Insert(sid, to, from string) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO call_records (sid, to_number, from_number, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sid, to, from, StatusPending, time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}
	return nil
}

// MarkStarted transitions a call to in-progress when its media session binds.
func (s *CallStore) MarkStarted(sid, streamSID string) error {
	_, err := s.db.sql.Exec(
		`UPDATE call_records SET status = ?, stream_sid = ?, started_at = ? WHERE sid = ?`,
		StatusInProgress, streamSID, time.Now().UTC().Format(time.DateTime), sid,
	)
	if err != nil {
		return fmt.Errorf("marking call started: %w", err)
	}
	return nil
}

// MarkEnded finalizes a call record with its turn count.
func (s *CallStore) MarkEnded(sid string, turns int) error {
	_, err := s.db.sql.Exec(
		`UPDATE call_records SET status = ?, turns = ?, ended_at = ? WHERE sid = ?`,
		StatusCompleted, turns, time.Now().UTC().Format(time.DateTime), sid,
	)
	if err != nil {
		return fmt.Errorf("marking call ended: %w", err)
	}
	return nil
}

// MarkFailed records a call that never produced a usable session.
func (s *CallStore) MarkFailed(sid string) error {
	_, err := s.db.sql.Exec(
		`UPDATE call_records SET status = ?, ended_at = ? WHERE sid = ?`,
		StatusFailed, time.Now().UTC().Format(time.DateTime), sid,
	)
	if err != nil {
		return fmt.Errorf("marking call failed: %w", err)
	}
	return nil
}

// Get returns a single call record.
func (s *CallStore) Get(sid string) (CallRecord, error) {
	row := s.db.sql.QueryRow(
		`SELECT sid, to_number, from_number, status, stream_sid, turns, created_at, started_at, ended_at
		 FROM call_records WHERE sid = ?`, sid,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns all call records, newest first.
func (s *CallStore) List() ([]CallRecord, error) {
	rows, err := s.db.sql.Query(
		`SELECT sid, to_number, from_number, status, stream_sid, turns, created_at, started_at, ended_at
		 FROM call_records ORDER BY created_at DESC, sid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var rec CallRecord
	var createdAt string
	var startedAt, endedAt sql.NullString

	err := row.Scan(&rec.SID, &rec.ToNumber, &rec.FromNumber, &rec.Status,
		&rec.StreamSID, &rec.Turns, &createdAt, &startedAt, &endedAt)
	if err != nil {
		return CallRecord{}, err
	}

	rec.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	if startedAt.Valid {
		if t, err := time.Parse(time.DateTime, startedAt.String); err == nil {
			rec.StartedAt = &t
		}
	}
	if endedAt.Valid {
		if t, err := time.Parse(time.DateTime, endedAt.String); err == nil {
			rec.EndedAt = &t
		}
	}
	return rec, nil
}

// Recorder adapts the store to the bridge's lifecycle notifications.
type Recorder struct {
	store *CallStore
}

// NewRecorder wraps a call store for use by media sessions.
func NewRecorder(store *CallStore) *Recorder {
	return &Recorder{store: store}
}

// CallStarted marks the call in-progress.
func (r *Recorder) CallStarted(callSID, streamSID string) {
	if err := r.store.MarkStarted(callSID, streamSID); err != nil {
		r.store.db.log.Warn().Err(err).Str("callSid", callSID).Msg("failed to mark call started")
	}
}

// CallEnded finalizes the record.
func (r *Recorder) CallEnded(callSID string, turns int) {
	if err := r.store.MarkEnded(callSID, turns); err != nil {
		r.store.db.log.Warn().Err(err).Str("callSid", callSID).Msg("failed to mark call ended")
	}
}
