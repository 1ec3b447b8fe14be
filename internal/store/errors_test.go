package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgpulse/pkgpulse/internal/models"
)

// Storage failures must propagate to callers unchanged in kind: aggregator
// reads never retry and never degrade.

func TestEventTypeCounts_PropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT event_type").WillReturnError(boom)

	s := FromDB(db)
	_, _, err = s.EventTypeCounts(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestInsertEvent_PropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("database is locked")
	mock.ExpectExec("INSERT INTO events").WillReturnError(boom)

	s := FromDB(db)
	_, err = s.InsertEvent(context.Background(), time.Now().UTC(), "pkg-a", models.EventInstall, models.Metadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// A recording that fails during pair derivation must leave no event row
// behind: RecordEvent wraps the insert and the derivation in one
// transaction and rolls back on any failure.
func TestRecordEvent_RollsBackEventWhenDerivationFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT DISTINCT package_name").WillReturnError(boom)
	mock.ExpectRollback()

	s := FromDB(db)
	_, err = s.RecordEvent(context.Background(), time.Now().UTC(), "pkg-a", models.EventInstall, models.Metadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEvent_CommitsEventAndPairsTogether(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT DISTINCT package_name").
		WillReturnRows(sqlmock.NewRows([]string{"package_name"}).AddRow("pkg-a"))
	mock.ExpectExec("INSERT OR IGNORE INTO package_pairs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := FromDB(db)
	id, err := s.RecordEvent(context.Background(), time.Now().UTC(), "pkg-b", models.EventInstall, models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPopularPairs_PropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("table is corrupted")
	mock.ExpectQuery("SELECT package1, package2").WillReturnError(boom)

	s := FromDB(db)
	_, err = s.PopularPairs(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
