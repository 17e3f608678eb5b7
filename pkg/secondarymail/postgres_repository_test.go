package secondarymail

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	dbName := "multimail_db"
	dbUser := "multimail"
	dbPassword := "pwd"

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "multimail_db.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx)
	fmt.Println("Connection string:", connString)
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestPostgresEmailRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresEmailRepository(pool, nil)
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		row, err := repo.Insert(ctx, 100, "alt@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(100), row.CentralID)
		assert.Equal(t, "alt@example.com", row.Address)
		assert.Nil(t, row.AuthenticatedAt)

		byID, err := repo.FindByID(ctx, 100, row.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, row.ID, byID.ID)

		byAddress, err := repo.FindByAddress(ctx, 100, "alt@example.com")
		require.NoError(t, err)
		require.NotNil(t, byAddress)

		missing, err := repo.FindByID(ctx, 999, row.ID)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("unique constraint maps to duplicate error", func(t *testing.T) {
		_, err := repo.Insert(ctx, 100, "alt@example.com")
		assert.ErrorIs(t, err, ErrDuplicateAddress)

		_, err = repo.Insert(ctx, 101, "alt@example.com")
		assert.NoError(t, err)
	})

	t.Run("token round trip", func(t *testing.T) {
		row, err := repo.Insert(ctx, 102, "token@example.com")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		hash := "deadbeef"
		require.NoError(t, repo.UpdateToken(ctx, row.ID, hash, now.Add(time.Hour)))

		ok, err := repo.ConfirmWithToken(ctx, 102, row.ID, "cafebabe", now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConfirmWithToken(ctx, 999, row.ID, hash, now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConfirmWithToken(ctx, 102, row.ID, hash, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConfirmWithToken(ctx, 102, row.ID, hash, now)
		require.NoError(t, err)
		assert.True(t, ok)

		// Once confirmed, the token is spent.
		ok, err = repo.ConfirmWithToken(ctx, 102, row.ID, hash, now)
		require.NoError(t, err)
		assert.False(t, ok)

		confirmed, err := repo.FindByID(ctx, 102, row.ID)
		require.NoError(t, err)
		require.NotNil(t, confirmed.AuthenticatedAt)
	})

	t.Run("upsert primary swap", func(t *testing.T) {
		row, err := repo.Insert(ctx, 103, "old-primary@example.com")
		require.NoError(t, err)

		authenticatedAt := time.Now().UTC().Truncate(time.Microsecond)
		id, err := repo.UpsertPrimarySwap(ctx, 103, "old-primary@example.com", &authenticatedAt)
		require.NoError(t, err)
		assert.Equal(t, row.ID, id)

		updated, err := repo.FindByID(ctx, 103, id)
		require.NoError(t, err)
		require.NotNil(t, updated.AuthenticatedAt)
		assert.True(t, updated.AuthenticatedAt.Equal(authenticatedAt))

		fresh, err := repo.UpsertPrimarySwap(ctx, 103, "never-seen@example.com", nil)
		require.NoError(t, err)
		assert.NotEqual(t, row.ID, fresh)
	})

	t.Run("list is newest first", func(t *testing.T) {
		_, err := repo.Insert(ctx, 104, "first@example.com")
		require.NoError(t, err)
		_, err = repo.Insert(ctx, 104, "second@example.com")
		require.NoError(t, err)

		rows, err := repo.FindByCentralID(ctx, 104)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "second@example.com", rows[0].Address)
		assert.Equal(t, "first@example.com", rows[1].Address)
	})

	t.Run("delete", func(t *testing.T) {
		row, err := repo.Insert(ctx, 105, "gone@example.com")
		require.NoError(t, err)

		assert.ErrorIs(t, repo.Delete(ctx, 999, row.ID), ErrNoSuchEmail)
		require.NoError(t, repo.Delete(ctx, 105, row.ID))
		assert.ErrorIs(t, repo.Delete(ctx, 105, row.ID), ErrNoSuchEmail)
	})
}
