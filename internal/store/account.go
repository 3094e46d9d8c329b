package store

import (
	"context"
	"database/sql"

	"github.com/devlink/apiserver/internal/db"
)

// DeletedAccount reports what a cascading account deletion removed.
type DeletedAccount struct {
	Posts   int64
	Profile bool
	User    bool
}

// AccountRepository removes a user together with everything they own.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// DeleteAccount removes the user's posts, then their profile, then the user
// row, in one transaction. Nothing is removed if any step fails.
func (r *AccountRepository) DeleteAccount(ctx context.Context, userID string) (DeletedAccount, error) {
	var deleted DeletedAccount
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
		if err != nil {
			return translate(err)
		}
		if deleted.Posts, err = result.RowsAffected(); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
		if err != nil {
			return translate(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted.Profile = affected > 0

		result, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return translate(err)
		}
		if affected, err = result.RowsAffected(); err != nil {
			return err
		}
		deleted.User = affected > 0
		return nil
	})
	if err != nil {
		if err == ErrNotFound {
			// Malformed ids match nothing.
			return DeletedAccount{}, nil
		}
		return DeletedAccount{}, err
	}
	return deleted, nil
}
