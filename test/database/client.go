package database

import (
	"testing"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/test/util"
)

// NewTestClient creates a migrated test database client.
// In CI (when CI_DATABASE_URL is set): connects to external PostgreSQL service container.
// In local dev: spins up a testcontainer with PostgreSQL.
// Cleanup (schema drop and connection close) is handled by SetupTestDatabase.
func NewTestClient(t *testing.T) *database.Client {
	return database.NewClientFromDB(util.SetupTestDatabase(t))
}
