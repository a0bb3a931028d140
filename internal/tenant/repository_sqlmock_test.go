package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// setupMockDB wires a *gorm.DB onto a sqlmock connection, for tests that
// need to assert on the exact SQL error gorm surfaces rather than on an
// in-memory sqlite's actual constraint behavior.
func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return mock, gormDB
}

// A postgres unique-constraint violation on team creation must map
// onto model.ErrDBUniqueViolation, not the generic ErrDBError.
func TestCreateTeam_UniqueViolationMapsToDBUniqueViolation(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	repo := New(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "teams"`).
		WillReturnError(&pqUniqueViolation{})
	mock.ExpectRollback()

	_, err := repo.CreateTeam(context.Background(), "acme", 10000)
	require.Error(t, err)
	require.Equal(t, model.ErrDBUniqueViolation, model.CodeOf(err))
}

// A connection failure on a lookup must map onto the generic db-error kind,
// not a not-found (the record may well exist; the query never ran).
func TestGetTeam_ConnectionFailureMapsToDBError(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	repo := New(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "teams"`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.GetTeam(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.Error(t, err)
	require.Equal(t, model.ErrDBError, model.CodeOf(err))
}

// pqUniqueViolation mimics the message shape lib/pq surfaces for a unique
// constraint violation, which isUniqueViolation matches on substring.
type pqUniqueViolation struct{}

func (e *pqUniqueViolation) Error() string {
	return `pq: duplicate key value violates unique constraint "teams_name_key"`
}
