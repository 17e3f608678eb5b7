package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// PostgresIdentityRepository implements Resolver and UserStore against the
// identity platform's users table.
type PostgresIdentityRepository struct {
	db *pgxpool.Pool
}

// NewPostgresIdentityRepository creates a new Postgres-backed identity repository.
func NewPostgresIdentityRepository(db *pgxpool.Pool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

// CentralID implements Resolver.CentralID.
func (r *PostgresIdentityRepository) CentralID(ctx context.Context, user User) (int64, error) {
	query := `
		SELECT central_id
		FROM users
		WHERE id = $1
		AND central_id IS NOT NULL
		AND deleted_at IS NULL
	`

	var centralID int64
	err := r.db.QueryRow(ctx, query, user.ID).Scan(&centralID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnattached
		}
		return 0, fmt.Errorf("failed to resolve central id: %w", err)
	}

	return centralID, nil
}

// GetUser implements UserStore.GetUser.
func (r *PostgresIdentityRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	query := `
		SELECT id, username, name, email, email_authenticated_at
		FROM users
		WHERE id = $1
		AND deleted_at IS NULL
	`

	var user User
	var authenticatedAt *time.Time
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&authenticatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	user.EmailAuthenticatedAt = authenticatedAt
	return user, nil
}

// UpdatePrimaryEmail implements UserStore.UpdatePrimaryEmail.
func (r *PostgresIdentityRepository) UpdatePrimaryEmail(ctx context.Context, id uuid.UUID, email string, authenticatedAt *time.Time) error {
	query := `
		UPDATE users
		SET email = $2,
		    email_authenticated_at = $3,
		    last_modified_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
		AND deleted_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, email, authenticatedAt)
	if err != nil {
		slog.Error("Failed to update primary email", "user_id", id, "err", err)
		return fmt.Errorf("failed to update primary email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update primary email: user %s not found", id)
	}

	return nil
}
