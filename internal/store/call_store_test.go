package store

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialbridge/dialbridge/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func testStore(t *testing.T) *CallStore {
	t.Helper()
	db, err := Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCallStore(db)
}

func TestOpenCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "calls.db")
	db, err := Open(path, testLogger())
	require.NoError(t, err)
	defer db.Close()
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")

	db, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not re-apply migrations.
	db, err = Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestInsertAndGet(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Insert("CA1", "+15551234567", "+15550000000"))

	rec, err := s.Get("CA1")
	require.NoError(t, err)
	assert.Equal(t, "CA1", rec.SID)
	assert.Equal(t, "+15551234567", rec.ToNumber)
	assert.Equal(t, "+15550000000", rec.FromNumber)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Empty(t, rec.StreamSID)
	assert.Zero(t, rec.Turns)
	assert.Nil(t, rec.StartedAt)
	assert.Nil(t, rec.EndedAt)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Get("CA-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCallLifecycle(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Insert("CA1", "+15551", "+15550"))

	require.NoError(t, s.MarkStarted("CA1", "MZ1"))
	rec, err := s.Get("CA1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, "MZ1", rec.StreamSID)
	assert.NotNil(t, rec.StartedAt)

	require.NoError(t, s.MarkEnded("CA1", 7))
	rec, err = s.Get("CA1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 7, rec.Turns)
	assert.NotNil(t, rec.EndedAt)
}

func TestMarkFailed(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Insert("CA1", "+15551", "+15550"))

	require.NoError(t, s.MarkFailed("CA1"))
	rec, err := s.Get("CA1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.NotNil(t, rec.EndedAt)
}

func TestListNewestFirst(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Insert("CA1", "+15551", "+15550"))
	require.NoError(t, s.Insert("CA2", "+15552", "+15550"))

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Same created_at second is possible; the sid tiebreaker keeps newest first.
	assert.Equal(t, "CA2", records[0].SID)
	assert.Equal(t, "CA1", records[1].SID)
}

func TestDuplicateInsertFails(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Insert("CA1", "+15551", "+15550"))
	assert.Error(t, s.Insert("CA1", "+15551", "+15550"))
}

func TestRecorderUpdatesRecords(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Insert("CA1", "+15551", "+15550"))

	rec := NewRecorder(s)
	rec.CallStarted("CA1", "MZ1")
	rec.CallEnded("CA1", 4)

	got, err := s.Get("CA1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "MZ1", got.StreamSID)
	assert.Equal(t, 4, got.Turns)
}

func TestRecorderSurvivesUnknownCall(t *testing.T) {
	s := testStore(t)
	rec := NewRecorder(s)

	// Updates for calls the store never saw must not panic.
	rec.CallStarted("CA-unknown", "MZ1")
	rec.CallEnded("CA-unknown", 0)
}
