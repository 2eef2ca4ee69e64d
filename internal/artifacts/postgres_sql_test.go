package artifacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"manga/offchain/internal/database"
	"manga/offchain/internal/errs"
)

var rowColumns = []string{"key", "network", "chain_id", "deployer", "deployed_at", "record"}

// newMockStore runs the store's SQL against sqlmock instead of a server
func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})

	store := NewPostgresStore(&database.DB{DB: sqlx.NewDb(conn, "postgres")}, zap.NewNop())
	store.now = func() time.Time { return time.UnixMilli(1753619893000) }
	return store, mock
}

func expectInsert(mock sqlmock.Sqlmock, key string) *sqlmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO deployments").
		WithArgs(key, "anvil", int64(31337), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg())
}

func TestPostgresSaveWritesHistoryAndLatest(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectInsert(mock, "deployment-1753619893000").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO deployment_latest").
		WithArgs("deployment-1753619893000").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	key, err := store.Save(context.Background(), sampleRecord("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)
	assert.Equal(t, "deployment-1753619893000", key)
}

func TestPostgresSaveRetriesTakenKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectInsert(mock, "deployment-1753619893000").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectInsert(mock, "deployment-1753619893000-1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO deployment_latest").
		WithArgs("deployment-1753619893000-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	key, err := store.Save(context.Background(), sampleRecord("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)
	assert.Equal(t, "deployment-1753619893000-1", key)
}

func TestPostgresSaveOtherErrorsAreNotRetried(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectInsert(mock, "deployment-1753619893000").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO deployment_latest").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), sampleRecord("0x0000000000000000000000000000000000000001"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update latest deployment")
}

func TestPostgresLoad(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	data, err := Encode(sampleRecord("0x0000000000000000000000000000000000000002"))
	require.NoError(t, err)

	mock.ExpectQuery("FROM deployment_latest").WillReturnRows(sqlmock.NewRows(rowColumns))
	_, err = store.Load(ctx, LatestKey)
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, LatestKey, notFound.Key)

	mock.ExpectQuery("FROM deployment_latest").WillReturnRows(sqlmock.NewRows(rowColumns).
		AddRow("deployment-1753619893000", "anvil", int64(31337), "0x0000000000000000000000000000000000000002",
			time.Date(2025, 7, 27, 12, 0, 0, 0, time.UTC), data))
	rec, err := store.Load(ctx, LatestKey)
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000002", rec.Deployer)
	require.Len(t, rec.Contracts, 2)
	assert.Equal(t, "MonthlyDataUploader", rec.Contracts[0].Name)

	mock.ExpectQuery("FROM deployments").
		WithArgs("deployment-1").
		WillReturnRows(sqlmock.NewRows(rowColumns))
	_, err = store.Load(ctx, "deployment-1")
	require.ErrorAs(t, err, &notFound)
}

func TestPostgresList(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT key FROM deployments").WillReturnRows(sqlmock.NewRows([]string{"key"}).
		AddRow("deployment-1753619893000-1").
		AddRow("deployment-1753619893000").
		AddRow("deployment-1753619800000"))

	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"deployment-1753619800000",
		"deployment-1753619893000",
		"deployment-1753619893000-1",
	}, keys)
}
