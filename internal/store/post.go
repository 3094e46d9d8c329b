package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/devlink/apiserver/internal/db"
	"github.com/devlink/apiserver/types"
)

// PostRepository handles persistence for posts. Likes and comments are
// stored as JSONB sub-documents of the post row.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postSelect = `
	SELECT id, user_id, text, name, avatar, likes, comments, created_at
	FROM posts`

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var likesJSON, commentsJSON []byte
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Text,
		&post.Name,
		&post.Avatar,
		&likesJSON,
		&commentsJSON,
		&post.CreatedAt,
	)
	if err != nil {
		return types.Post{}, translate(err)
	}
	if err := decodeJSON(likesJSON, &post.Likes); err != nil {
		return types.Post{}, err
	}
	if err := decodeJSON(commentsJSON, &post.Comments); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// List returns every post, newest first.
func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	rows, err := r.db.QueryContext(ctx, postSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (types.Post, error) {
	return scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE id = $1`, id))
}

// Create inserts a post. It returns ErrMissingReference when the author
// does not exist.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Likes == nil {
		post.Likes = []types.Like{}
	}
	if post.Comments == nil {
		post.Comments = []types.Comment{}
	}

	likesJSON, err := encodeJSON(post.Likes)
	if err != nil {
		return types.Post{}, err
	}
	commentsJSON, err := encodeJSON(post.Comments)
	if err != nil {
		return types.Post{}, err
	}

	const query = `
		INSERT INTO posts (id, user_id, text, name, avatar, likes, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		post.ID,
		post.UserID,
		post.Text,
		post.Name,
		post.Avatar,
		likesJSON,
		commentsJSON,
		post.CreatedAt,
	); err != nil {
		return types.Post{}, translate(err)
	}
	return post, nil
}

// Update locks the post, applies fn and writes likes and comments back in
// one transaction. An error from fn aborts the update and is returned
// unchanged.
func (r *PostRepository) Update(ctx context.Context, id string, fn func(*types.Post) error) (types.Post, error) {
	var updated types.Post
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		post, err := scanPost(tx.QueryRowContext(ctx, postSelect+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := fn(&post); err != nil {
			return err
		}

		likesJSON, err := encodeJSON(post.Likes)
		if err != nil {
			return err
		}
		commentsJSON, err := encodeJSON(post.Comments)
		if err != nil {
			return err
		}

		const query = `UPDATE posts SET likes = $1, comments = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, query, likesJSON, commentsJSON, id); err != nil {
			return translate(err)
		}

		updated = post
		return nil
	})
	if err != nil {
		return types.Post{}, err
	}
	return updated, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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
