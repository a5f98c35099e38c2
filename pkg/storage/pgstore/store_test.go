package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/engramhq/engram/pkg/storage/pgstore"
	"github.com/engramhq/engram/pkg/storage/storetest"
)

// newTestStore starts an ephemeral Postgres container and returns a Store
// pointed at it, the way test/util.SetupTestDatabase does for the teacher's
// ent-backed services — adapted here to hand-written SQL with no schema
// per test, since each conformance sub-test already scopes itself under a
// randomly generated tenant_id.
func newTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("engram"),
		tcpostgres.WithUsername("engram"),
		tcpostgres.WithPassword("engram"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := pgstore.Open(ctx, pgstore.Config{
		Host: host, Port: port.Int(), User: "engram", Password: "engram", Database: "engram",
		SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}
	store := newTestStore(t)
	storetest.Run(t, store)
}

func TestHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}
	store := newTestStore(t)
	require.NoError(t, store.Health(context.Background()))
}
