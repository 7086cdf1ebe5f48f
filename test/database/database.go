// Package database starts a disposable PostgreSQL container for
// integration tests, applies the schema, and hands back a client connected
// as a non-superuser role so row-level security is actually in force.
package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/gamenightbot/gamenight/pkg/database"
)

const (
	superUser     = "postgres"
	superPassword = "postgres"
	dbName        = "gamenight_test"

	// appRole is deliberately not the container superuser: RLS policies do
	// not apply to superusers, and the whole point of these tests is that
	// they do apply to us.
	appRole     = "gamenight_app"
	appPassword = "gamenight_app"
)

// Setup starts a PostgreSQL container, migrates it, creates the
// application role, and returns a client connected as that role. Skipped
// under -short. The container is torn down with the test.
func Setup(t *testing.T) *database.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername(superUser),
		tcpostgres.WithPassword(superPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolving container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("resolving container port: %v", err)
	}

	superCfg := database.Config{
		Host:     host,
		Port:     port.Int(),
		User:     superUser,
		Password: superPassword,
		Database: dbName,
		SSLMode:  "disable",

		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}

	if err := database.Migrate(superCfg); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	if err := createAppRole(ctx, superCfg); err != nil {
		t.Fatalf("creating application role: %v", err)
	}
	if err := database.GrantApplicationRole(superCfg, appRole); err != nil {
		t.Fatalf("granting application role: %v", err)
	}

	appCfg := superCfg
	appCfg.User = appRole
	appCfg.Password = appPassword

	client, err := database.NewClient(ctx, appCfg)
	if err != nil {
		t.Fatalf("connecting as application role: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func createAppRole(ctx context.Context, superCfg database.Config) error {
	admin, err := database.NewClient(ctx, superCfg)
	if err != nil {
		return err
	}
	defer admin.Close()

	stmts := []string{
		fmt.Sprintf(`CREATE ROLE %q LOGIN PASSWORD '%s'`, appRole, appPassword),
	}
	for _, s := range stmts {
		if _, err := admin.Pool().Exec(ctx, s); err != nil {
			return fmt.Errorf("executing %q: %w", s, err)
		}
	}
	return nil
}
