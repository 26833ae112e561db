package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Foreign keys named by postgres defaults in migrations/000001_init.up.sql.
const (
	pinsOwnerFK         = "pins_owner_id_fkey"
	confirmationsUserFK = "confirmations_user_id_fkey"
	confirmationsPinFK  = "confirmations_pin_id_fkey"
)

// mapForeignKey turns a violated reference into the domain error it means:
// a missing user is an account deleted while its token is still valid, a
// missing pin was deleted concurrently. Other errors pass through.
func mapForeignKey(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != foreignKeyViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case pinsOwnerFK, confirmationsUserFK:
		return fmt.Errorf("account no longer exists: %w", domain.ErrUnauthenticated)
	case confirmationsPinFK:
		return domain.ErrNotFound
	}
	return err
}

// UserRepo implements ports.UserRepository with pgx.
type UserRepo struct {
	db      *DB
	counter *CounterMaintainer
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *DB, counter *CounterMaintainer) *UserRepo {
	return &UserRepo{db: db, counter: counter}
}

// Create inserts a user. A case-insensitive username clash is domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, is_staff)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`, u.Username, u.PasswordHash, u.IsStaff).Scan(&u.ID, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id::text, username, password_hash, is_staff, created_at
		FROM users WHERE `+where, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername looks a user up case-insensitively.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "lower(username) = lower($1)", username)
}

// GetByID returns a user by UUID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.getOne(ctx, "id = $1", id)
}

// SetStaff grants or revokes staff rights.
func (r *UserRepo) SetStaff(ctx context.Context, id string, staff bool) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE users SET is_staff = $2 WHERE id = $1`, id, staff)
	if err != nil {
		return fmt.Errorf("set staff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a user. The counters of every pin they confirmed are
// decremented before the cascade removes the ledger rows, all in one
// transaction; owned pins survive with owner_id set to NULL.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT pin_id::text FROM confirmations WHERE user_id = $1 ORDER BY pin_id
		`, id)
		if err != nil {
			return fmt.Errorf("list confirmed pins: %w", err)
		}
		pinIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("list confirmed pins: %w", err)
		}
		for _, pinID := range pinIDs {
			if err := r.counter.apply(ctx, tx, pinID, -1); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
