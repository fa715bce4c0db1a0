// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

//go:build integration

// Package integration provides end-to-end integration tests for KeyGate
// against a real PostgreSQL instance.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keygate/keygate/internal/auth"
	authpg "github.com/keygate/keygate/internal/auth/postgres"
	"github.com/keygate/keygate/internal/store"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

// testEnv holds all resources needed for integration tests.
type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	container testcontainers.Container

	Users    *authpg.UserRepository
	Resets   *authpg.PasswordResetRepository
	AuthSvc  *auth.Service
	ResetSvc *auth.PasswordResetService
	Issuer   *auth.TokenIssuer
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("keygate_test"),
		postgres.WithUsername("keygate"),
		postgres.WithPassword("keygate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	pool, err := store.NewPool(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	users := authpg.NewUserRepository(pool)
	resets := authpg.NewPasswordResetRepository(pool)
	hasher := auth.NewArgon2idHasher()

	issuer, err := auth.NewTokenIssuer([]byte("integration-test-secret"), time.Hour)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	authSvc, err := auth.NewService(users, hasher, issuer)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	resetSvc, err := auth.NewPasswordResetService(users, resets, hasher)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &testEnv{
		ctx:       ctx,
		pool:      pool,
		container: container,
		Users:     users,
		Resets:    resets,
		AuthSvc:   authSvc,
		ResetSvc:  resetSvc,
		Issuer:    issuer,
	}, nil
}

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}

// cleanupUsers removes all rows between specs. password_resets cascades
// from users but is cleared explicitly to keep specs independent.
func cleanupUsers(ctx context.Context, pool *pgxpool.Pool) {
	_, _ = pool.Exec(ctx, "DELETE FROM password_resets")
	_, _ = pool.Exec(ctx, "DELETE FROM users")
}
