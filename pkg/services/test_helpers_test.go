package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
)

// newMockDB returns a database client backed by sqlmock. Expectations are
// verified on cleanup.
func newMockDB(t *testing.T) (*database.Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return database.NewClientFromDB(sqlx.NewDb(db, "sqlmock")), mock
}
