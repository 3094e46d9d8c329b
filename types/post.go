package types

import "time"

// Post is a short text entry written by a user.
// Name and Avatar are a snapshot of the author taken at creation time and
// are not kept in sync with later edits.
type Post struct {
	// ID is the unique identifier of the post.
	ID string `json:"id" db:"id"`

	// UserID identifies the author. Only the author may delete the post.
	UserID string `json:"user" db:"user_id"`

	// Text is the body of the post.
	Text string `json:"text" db:"text"`

	Name   string `json:"name" db:"name"`
	Avatar string `json:"avatar" db:"avatar"`

	// Likes holds at most one like per user, newest first.
	Likes []Like `json:"likes" db:"likes"`

	// Comments holds the post's comments, newest first.
	Comments []Comment `json:"comments" db:"comments"`

	// CreatedAt is the timestamp when the post was created.
	CreatedAt time.Time `json:"date" db:"created_at"`
}

// Like records that a user liked a post.
type Like struct {
	UserID string `json:"user"`
}

// Comment is a reply to a post. Name and Avatar are snapshots of the
// commenter taken at creation time.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"date"`
}

// LikedBy reports whether userID has a like recorded on the post.
func (p Post) LikedBy(userID string) bool {
	for _, like := range p.Likes {
		if like.UserID == userID {
			return true
		}
	}
	return false
}
