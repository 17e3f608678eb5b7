package secondarymail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// EmailRepository is the persistence boundary for secondary email rows.
// Lookups return (nil, nil) when no row matches; mutations that expect to
// change exactly one row report ErrStorage or ErrNoSuchEmail otherwise.
//
// Implementations may serve reads from a replica. Callers must tolerate
// brief replication lag on reads immediately following their own writes.
type EmailRepository interface {
	FindByID(ctx context.Context, centralID, id int64) (*EmailRow, error)
	FindByAddress(ctx context.Context, centralID int64, address string) (*EmailRow, error)
	FindByCentralID(ctx context.Context, centralID int64) ([]EmailRow, error)
	Insert(ctx context.Context, centralID int64, address string) (*EmailRow, error)
	UpdateToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	UpdateAuthenticated(ctx context.Context, id int64, ts *time.Time) (bool, error)
	// ConfirmWithToken atomically sets the confirmation timestamp on the
	// record iff id, owner, token hash and expiry all match and the record
	// is unconfirmed. Every mismatch cause collapses to (false, nil).
	ConfirmWithToken(ctx context.Context, centralID, id int64, tokenHash string, now time.Time) (bool, error)
	// UpsertPrimarySwap files the outgoing primary address away as a
	// secondary record, reusing an existing row for the same address.
	UpsertPrimarySwap(ctx context.Context, centralID int64, address string, authenticatedAt *time.Time) (int64, error)
	Delete(ctx context.Context, centralID, id int64) error
}

const emailColumns = `id, central_id, email, email_authenticated_at, email_token, email_token_expires`

// PostgresEmailRepository implements EmailRepository on a primary/replica
// pgx pool pair. All writes go to the primary pool; reads prefer the
// replica pool when one is configured.
type PostgresEmailRepository struct {
	write *pgxpool.Pool
	read  *pgxpool.Pool
}

// NewPostgresEmailRepository creates a repository on the given pools.
// A nil read pool directs all reads to the primary pool.
func NewPostgresEmailRepository(write, read *pgxpool.Pool) *PostgresEmailRepository {
	if read == nil {
		read = write
	}
	return &PostgresEmailRepository{write: write, read: read}
}

// FindByID implements EmailRepository.FindByID.
func (r *PostgresEmailRepository) FindByID(ctx context.Context, centralID, id int64) (*EmailRow, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM user_secondary_email
		WHERE central_id = $1
		AND id = $2
	`

	return r.selectOne(ctx, query, centralID, id)
}

// FindByAddress implements EmailRepository.FindByAddress.
func (r *PostgresEmailRepository) FindByAddress(ctx context.Context, centralID int64, address string) (*EmailRow, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM user_secondary_email
		WHERE central_id = $1
		AND email = $2
	`

	return r.selectOne(ctx, query, centralID, address)
}

// FindByCentralID implements EmailRepository.FindByCentralID.
func (r *PostgresEmailRepository) FindByCentralID(ctx context.Context, centralID int64) ([]EmailRow, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM user_secondary_email
		WHERE central_id = $1
		ORDER BY id DESC
	`

	pgxRows, err := r.read.Query(ctx, query, centralID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secondary emails: %w", err)
	}
	defer pgxRows.Close()

	var rows []EmailRow
	for pgxRows.Next() {
		var row EmailRow
		if err := pgxRows.Scan(
			&row.ID,
			&row.CentralID,
			&row.Address,
			&row.AuthenticatedAt,
			&row.TokenHash,
			&row.TokenExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan secondary email: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, pgxRows.Err()
}

// Insert implements EmailRepository.Insert. A unique violation on
// (central_id, email) maps to ErrDuplicateAddress, which closes the
// check-then-act race between the duplicate lookup and the insert.
func (r *PostgresEmailRepository) Insert(ctx context.Context, centralID int64, address string) (*EmailRow, error) {
	query := `
		INSERT INTO user_secondary_email (central_id, email)
		VALUES ($1, $2)
		RETURNING ` + emailColumns + `
	`

	var row EmailRow
	err := r.write.QueryRow(ctx, query, centralID, address).Scan(
		&row.ID,
		&row.CentralID,
		&row.Address,
		&row.AuthenticatedAt,
		&row.TokenHash,
		&row.TokenExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAddress
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStorage
		}
		slog.Error("Failed to insert secondary email", "central_id", centralID, "err", err)
		return nil, fmt.Errorf("failed to insert secondary email: %w", err)
	}

	return &row, nil
}

// UpdateToken implements EmailRepository.UpdateToken.
func (r *PostgresEmailRepository) UpdateToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE user_secondary_email
		SET email_token = $2,
		    email_token_expires = $3
		WHERE id = $1
	`

	tag, err := r.write.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store confirmation token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStorage
	}

	return nil
}

// UpdateAuthenticated implements EmailRepository.UpdateAuthenticated.
func (r *PostgresEmailRepository) UpdateAuthenticated(ctx context.Context, id int64, ts *time.Time) (bool, error) {
	query := `
		UPDATE user_secondary_email
		SET email_authenticated_at = $2
		WHERE id = $1
	`

	tag, err := r.write.Exec(ctx, query, id, ts)
	if err != nil {
		return false, fmt.Errorf("failed to update authentication status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ConfirmWithToken implements EmailRepository.ConfirmWithToken.
func (r *PostgresEmailRepository) ConfirmWithToken(ctx context.Context, centralID, id int64, tokenHash string, now time.Time) (bool, error) {
	query := `
		UPDATE user_secondary_email
		SET email_authenticated_at = $4
		WHERE id = $1
		AND central_id = $2
		AND email_authenticated_at IS NULL
		AND email_token = $3
		AND email_token_expires > $4
	`

	tag, err := r.write.Exec(ctx, query, id, centralID, tokenHash, now)
	if err != nil {
		return false, fmt.Errorf("failed to confirm secondary email: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpsertPrimarySwap implements EmailRepository.UpsertPrimarySwap.
func (r *PostgresEmailRepository) UpsertPrimarySwap(ctx context.Context, centralID int64, address string, authenticatedAt *time.Time) (int64, error) {
	query := `
		INSERT INTO user_secondary_email (central_id, email, email_authenticated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (central_id, email)
		DO UPDATE SET email_authenticated_at = EXCLUDED.email_authenticated_at
		RETURNING id
	`

	var id int64
	err := r.write.QueryRow(ctx, query, centralID, address, authenticatedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStorage
		}
		slog.Error("Failed to file away old primary email", "central_id", centralID, "err", err)
		return 0, fmt.Errorf("failed to file away old primary email: %w", err)
	}

	return id, nil
}

// Delete implements EmailRepository.Delete.
func (r *PostgresEmailRepository) Delete(ctx context.Context, centralID, id int64) error {
	query := `
		DELETE FROM user_secondary_email
		WHERE central_id = $1
		AND id = $2
	`

	tag, err := r.write.Exec(ctx, query, centralID, id)
	if err != nil {
		return fmt.Errorf("failed to delete secondary email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSuchEmail
	}

	return nil
}

func (r *PostgresEmailRepository) selectOne(ctx context.Context, query string, args ...any) (*EmailRow, error) {
	var row EmailRow
	err := r.read.QueryRow(ctx, query, args...).Scan(
		&row.ID,
		&row.CentralID,
		&row.Address,
		&row.AuthenticatedAt,
		&row.TokenHash,
		&row.TokenExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select secondary email: %w", err)
	}

	return &row, nil
}
