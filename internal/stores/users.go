package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/authd"
)

const uniqueViolation = "23505"

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Status       int16     `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) record() authd.UserRecord {
	return authd.UserRecord{
		SubjectID:    r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Status:       authd.AccountStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

// UserStore is the Postgres authd.UserProvider.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore wraps an open database handle.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// GetUserByEmail looks a user up by normalized email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (authd.UserRecord, error) {
	const query = `SELECT id, email, password_hash, status, created_at FROM users WHERE email = $1`
	return s.getOne(ctx, query, email)
}

// GetUserByID looks a user up by subject id.
func (s *UserStore) GetUserByID(ctx context.Context, subjectID string) (authd.UserRecord, error) {
	const query = `SELECT id, email, password_hash, status, created_at FROM users WHERE id = $1`
	return s.getOne(ctx, query, subjectID)
}

func (s *UserStore) getOne(ctx context.Context, query, arg string) (authd.UserRecord, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authd.UserRecord{}, authd.ErrUserNotFound
		}
		return authd.UserRecord{}, fmt.Errorf("stores: get user: %w", err)
	}
	return row.record(), nil
}

// CreatePendingUser inserts a new account.
func (s *UserStore) CreatePendingUser(ctx context.Context, user authd.UserRecord) error {
	const query = `
		INSERT INTO users (id, email, password_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		user.SubjectID, user.Email, user.PasswordHash, int16(user.Status), user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authd.ErrProviderDuplicateIdentifier
		}
		return fmt.Errorf("stores: insert user: %w", err)
	}
	return nil
}

// ConfirmUser marks the account active.
func (s *UserStore) ConfirmUser(ctx context.Context, subjectID string) error {
	const query = `UPDATE users SET status = $2 WHERE id = $1`
	return s.execOne(ctx, "confirm user", query, subjectID, int16(authd.AccountActive))
}

// UpdatePasswordHash replaces the stored hash.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, subjectID, hash string) error {
	const query = `UPDATE users SET password_hash = $2 WHERE id = $1`
	return s.execOne(ctx, "update password hash", query, subjectID, hash)
}

// DeleteUser removes the account.
func (s *UserStore) DeleteUser(ctx context.Context, subjectID string) error {
	const query = `DELETE FROM users WHERE id = $1`
	return s.execOne(ctx, "delete user", query, subjectID)
}

// PurgeUnverified deletes pending accounts created before createdBefore.
func (s *UserStore) PurgeUnverified(ctx context.Context, createdBefore time.Time) (int64, error) {
	const query = `DELETE FROM users WHERE status = $1 AND created_at < $2`

	res, err := s.db.ExecContext(ctx, query, int16(authd.AccountPendingVerification), createdBefore)
	if err != nil {
		return 0, fmt.Errorf("stores: purge unverified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stores: purge unverified: %w", err)
	}
	return n, nil
}

// execOne runs a statement that must touch exactly one row.
func (s *UserStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stores: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stores: %s: %w", op, err)
	}
	if n == 0 {
		return authd.ErrUserNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ authd.UserProvider = (*UserStore)(nil)
