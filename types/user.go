package types

import "time"

// User represents a registered account.
// It owns at most one Profile and any number of Posts.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is unique across accounts
	// and is used as the login name.
	Email string `json:"email" db:"email"`

	// Avatar is a reference to the user's picture. It is derived from the
	// email at registration and may later point at an uploaded image.
	Avatar string `json:"avatar" db:"avatar"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"date" db:"created_at"`
}

// UserSummary is the subset of a User embedded in other documents.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
