package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresCounter(t *testing.T) (*PostgresCounter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresCounter(repository.New(db)), mock
}

func TestPostgresCounter_GetMissingRowIsZero(t *testing.T) {
	counter, mock := setupPostgresCounter(t)

	mock.ExpectQuery("SELECT count FROM usage_counters").
		WillReturnRows(sqlmock.NewRows([]string{"count"}))

	n, err := counter.Get(context.Background(), testKey(domain.ResourceImage))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_Get(t *testing.T) {
	counter, mock := setupPostgresCounter(t)
	key := domain.UsageKey{
		AccountID: uuid.New(),
		Kind:      domain.ResourcePDF,
		Month:     domain.YearMonth{Year: 2026, Month: time.October},
	}

	mock.ExpectQuery("SELECT count FROM usage_counters").
		WithArgs(key.AccountID.String(), "pdf", int64(2026), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(29)))

	n, err := counter.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(29), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_IncrementIsSingleStatement(t *testing.T) {
	counter, mock := setupPostgresCounter(t)

	// Only the upsert is expected; a preceding SELECT would fail the test.
	mock.ExpectQuery("INSERT INTO usage_counters").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	n, err := counter.Increment(context.Background(), testKey(domain.ResourceImage))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_IncrementError(t *testing.T) {
	counter, mock := setupPostgresCounter(t)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery("INSERT INTO usage_counters").WillReturnError(dbErr)

	_, err := counter.Increment(context.Background(), testKey(domain.ResourceImage))
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
