// Package pgtest поднимает PostgreSQL в контейнере для интеграционных тестов.
// Если Docker недоступен, тест пропускается.
package pgtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	// Регистрация драйвера pgx для стратегии ожидания wait.ForSQL.
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	image    = "postgres:15-alpine"
	database = "testdb"
	user     = "testuser"
	password = "testpass"
)

// Start запускает контейнер и возвращает строку подключения.
// Контейнер останавливается через t.Cleanup.
func Start(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	port := nat.Port("5432/tcp")

	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase(database),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForSQL(port, "pgx", func(host string, p nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, p.Port(), database)
			}).WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}
