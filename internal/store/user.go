package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/devlink/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, avatar, password_hash, created_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Avatar,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Create inserts a user. It returns ErrConflict when the email is taken.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO users (id, name, email, avatar, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.Avatar,
		user.PasswordHash,
		user.CreatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatar string) error {
	const query = `UPDATE users SET avatar = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, avatar, id)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
