package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAccountBySlug_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, slug, name, location, website, created_at FROM accounts WHERE slug = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAccountBySlug(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAccountBySlug_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, slug, name, location, website, created_at FROM accounts WHERE slug = \$1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "slug", "name", "location", "website", "created_at"}).
			AddRow("id-1", "acme", "Acme Manufacturing", "Topeka, KS", "https://acme.com", now))

	a, err := s.GetAccountBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Manufacturing", a.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSignals_SingleCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"signals"}, signalColumns).WillReturnResult(2)

	err := s.InsertSignals(context.Background(), []model.Signal{
		{AccountID: "a1", Severity: model.SeverityHigh, Category: model.CategoryExpansion, Summary: "New plant"},
		{AccountID: "a1", Severity: model.SeverityLow, Category: model.CategoryHiring, Summary: "Job postings"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertEntities_EmptyIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No expectations: zero rows must not touch the pool.
	require.NoError(t, s.InsertEntities(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRateWindow_AbsentIsNilNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, window_start, count, window_ms FROM rate_limit_windows`).
		WithArgs("genai:acme", int64(120000)).
		WillReturnError(pgx.ErrNoRows)

	w, err := s.GetRateWindow(context.Background(), "genai:acme", 120000)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkDocumentProcessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE source_documents SET processed = true WHERE id = \$1 AND processed = false`).
		WithArgs("doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkDocumentProcessed(context.Background(), "doc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
