package testutil

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/todo/internal/db"
	"github.com/nkiryanov/todo/internal/service/auth/tokenmanager"
)

const postgresImage = "postgres:17-alpine"

// Keys tests sign tokens with
var (
	AccessKey  = base64.StdEncoding.EncodeToString([]byte("test-access-key"))
	RefreshKey = base64.StdEncoding.EncodeToString([]byte("test-refresh-key"))
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// Token manager with test keys and default TTLs
func NewTokenManager(t *testing.T) *tokenmanager.TokenManager {
	t.Helper()

	m, err := tokenmanager.New(tokenmanager.Config{AccessKey: AccessKey, RefreshKey: RefreshKey})
	require.NoError(t, err, "token manager should be created without errors")
	return m
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// Start migrated postgres in docker
// Test is skipped when docker is not available, fails on any other error
// Terminate must be called when tests stopped
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("todo-test"),
		postgres.WithUsername("todo"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Error happened when starting container with postgres")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "Error happened when getting connection string from container with postgres")
	t.Logf("Container with pg started, DSN=%v", dsn)

	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting to postgres and migrating schema")

	return PostgresContainer{
		DSN:  dsn,
		Pool: dbpool,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Run testFunc in transaction that is rolled back when it returns
// Works with pool or with outer transaction (then savepoint is used)
func InTx(db beginner, t *testing.T, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := db.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		err := tx.Rollback(context.Background())
		require.NoError(t, err)
	}()

	testFunc(tx)
}
