// Package postgrestest opens the integration database used by store tests.
//
// Tests are skipped unless STOREFRONT_TEST_DATABASE_URL points at a disposable
// Postgres database. The tables are truncated for every test, so run the
// packages serially: go test -p 1 ./...
package postgrestest

import (
	"database/sql"
	"os"
	"testing"

	"storefront/internal/stores/postgres"

	"github.com/stretchr/testify/require"
)

const EnvDatabaseURL = "STOREFRONT_TEST_DATABASE_URL"

// Open migrates the test database and empties every table.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set, skipping database test", EnvDatabaseURL)
	}

	db, err := postgres.OpenDB("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, postgres.Migrate(db, "up"))
	_, err = db.Exec(`TRUNCATE orders, basket_items, products, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

// SeedUser inserts a user row and returns its id.
func SeedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO users (name, surname, email, password) VALUES ('Test', 'User', $1, 'x') RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

// SeedProduct inserts a product row and returns its id.
func SeedProduct(t *testing.T, db *sql.DB, name string, price string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO products (name, description, price, img_src) VALUES ($1, '', $2, '') RETURNING id`, name, price).Scan(&id)
	require.NoError(t, err)
	return id
}
