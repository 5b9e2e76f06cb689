// Package database provides the test-only Postgres bootstrap shared by
// integration tests across the module.
package database

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/database"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to an external PostgreSQL
// service container. In local dev: spins up a testcontainer with PostgreSQL.
// Either way, migrations are applied through the same embedded migration
// path the production binary uses, so tests exercise the real schema.
func NewTestClient(t *testing.T) *database.Client {
	client, _ := NewTestClientWithConnString(t)
	return client
}

// NewTestClientWithConnString is NewTestClient plus the raw DSN it connected
// with. Needed by pkg/fanout and pkg/changefeed integration tests: LISTEN/
// NOTIFY is database-level, not schema-level, so a dedicated listener
// connection must dial with the same DSN the pool used rather than going
// through config.DatabaseConfig's field-by-field builder again.
func NewTestClientWithConnString(t *testing.T) (*database.Client, string) {
	ctx := context.Background()

	dbCfg := config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}

	if ciURL := os.Getenv("CI_DATABASE_URL"); ciURL != "" {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		dbCfg = parseTestDSN(t, ciURL, dbCfg)
	} else {
		t.Log("using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("chatflow_test"),
			postgres.WithUsername("chatflow_test"),
			postgres.WithPassword("chatflow_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)

		dbCfg.Host = host
		dbCfg.Port = port.Int()
		dbCfg.User = "chatflow_test"
		dbCfg.Password = "chatflow_test"
		dbCfg.Database = "chatflow_test"
		dbCfg.SSLMode = "disable"
	}

	client, err := database.NewClient(ctx, dbCfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbCfg.ConnString()
}

// parseTestDSN extracts connection fields from a postgres:// URL as set by
// CI's service-container workflow.
func parseTestDSN(t *testing.T, dsn string, base config.DatabaseConfig) config.DatabaseConfig {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	host := u.Hostname()
	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}
	password, _ := u.User.Password()

	base.Host = host
	base.Port = port
	base.User = u.User.Username()
	base.Password = password
	base.Database = strings.TrimPrefix(u.Path, "/")
	base.SSLMode = "disable"
	return base
}
