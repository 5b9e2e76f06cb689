package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/database"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple test replicas. Each replica gets its own connection pool via
// NewClient, but all pools point to the same schema — enabling cross-replica
// tests that exercise Postgres NOTIFY/LISTEN delivery (pkg/changefeed,
// pkg/fanout).
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

func baseConnString() string {
	if v := os.Getenv("CI_DATABASE_URL"); v != "" {
		return v
	}
	return "host=localhost port=5432 user=chatflow_test password=chatflow_test dbname=chatflow_test sslmode=disable"
}

// generateSchemaName returns a unique, lowercase Postgres-identifier-safe
// schema name scoped to this test run.
func generateSchemaName(t *testing.T) string {
	name := strings.ToLower(strings.ReplaceAll(t.Name(), "/", "_"))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	return fmt.Sprintf("test_%s_%d", name, rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000))
}

func withSearchPath(connStr, schema string) string {
	return connStr + " search_path=" + schema
}

// NewSharedTestDB creates a shared test schema, runs migrations once, and
// registers t.Cleanup to drop the schema. Call NewClient to create
// independent database clients for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()
	ctx := context.Background()

	baseConnStr := baseConnString()
	schemaName := generateSchemaName(t)

	db, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	t.Logf("SharedTestDB: created schema %s", schemaName)
	_ = db.Close()

	connStrWithSchema := withSearchPath(baseConnStr, schemaName)

	// Run migrations once against the shared schema using the production
	// bootstrap path, then close — each replica opens its own pool below.
	migClient, err := database.NewClient(ctx, connStringConfig(connStrWithSchema))
	require.NoError(t, err)
	_ = migClient.Close()

	s := &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}

	// Drop the schema after all replicas have shut down (LIFO order
	// guarantees replica cleanups run before this one).
	t.Cleanup(func() {
		cleanDB, err := stdsql.Open("pgx", baseConnStr)
		if err != nil {
			t.Logf("SharedTestDB: warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = cleanDB.Close() }()
		if _, err := cleanDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName)); err != nil {
			t.Logf("SharedTestDB: warning: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return s
}

// NewClient creates an independent *database.Client backed by a fresh
// connection pool to the shared schema. Each client has its own pool so
// replicas can be shut down independently without races. Closed via
// t.Cleanup.
func (s *SharedTestDB) NewClient(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()

	client, err := database.NewClient(ctx, connStringConfig(s.connStrWithSchema))
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
	})
	return client
}

// connStringConfig wraps a pre-built DSN as a config.DatabaseConfig whose
// ConnString() returns it verbatim, so database.NewClient can be reused
// without duplicating its pool-tuning and migration logic.
func connStringConfig(dsn string) config.DatabaseConfig {
	return config.DatabaseConfig{
		RawConnString:   dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}
