// Package dbtest opens isolated in-memory SQLite databases for repository tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/db"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
)

// New returns a client backed by a private in-memory database with every
// model migrated. The pool is pinned to one connection so transactions and
// plain reads observe the same data.
func New(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	client, err := db.OpenSQLite(dsn)
	require.NoError(t, err)

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.DB().AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = client.Close() })
	return client
}
