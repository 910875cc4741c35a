// Package storagetest provides a migrated PostgreSQL database for integration
// tests. TEST_DATABASE_URI wins when set; otherwise a throwaway container is
// started through dockertest. Tests are skipped when neither is available.
package storagetest

import (
	"fmt"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"casino_wallet/internal/storage"
)

const containerExpire = 300

var (
	once     sync.Once
	db       *gorm.DB
	setupErr error
	pool     *dockertest.Pool
	resource *dockertest.Resource
)

func DB(t *testing.T) *gorm.DB {
	t.Helper()

	once.Do(setup)
	if setupErr != nil {
		t.Skipf("postgres is not available: %v", setupErr)
	}
	return db
}

// Teardown removes the container started by DB, if any. Call it from TestMain.
func Teardown() {
	if pool != nil && resource != nil {
		_ = pool.Purge(resource)
	}
}

func setup() {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		dsn, setupErr = runContainer()
		if setupErr != nil {
			return
		}
	}

	if setupErr = storage.Migrate(dsn); setupErr != nil {
		return
	}
	db, setupErr = storage.Open(dsn, zap.NewNop())
}

func runContainer() (string, error) {
	var err error
	pool, err = dockertest.NewPool("")
	if err != nil {
		return "", fmt.Errorf("failed to connect to docker: %w", err)
	}
	if err = pool.Client.Ping(); err != nil {
		return "", fmt.Errorf("docker is not reachable: %w", err)
	}

	const (
		user     = "wallet"
		password = "wallet"
		name     = "wallet_test"
	)
	resource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + name,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", fmt.Errorf("failed to start postgres: %w", err)
	}
	_ = resource.Expire(containerExpire)

	dsn := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     resource.GetHostPort("5432/tcp"),
		Path:     name,
		RawQuery: "sslmode=disable",
	}).String()

	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		conn, err := storage.Open(dsn, zap.NewNop())
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		return sqlDB.Ping()
	})
	if err != nil {
		return "", fmt.Errorf("postgres did not become ready: %w", err)
	}
	return dsn, nil
}
