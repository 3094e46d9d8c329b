package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/events"
	"github.com/devlink/apiserver/internal/storage"
	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/types"
)

const (
	userExistsMessage         = "User already exists"
	invalidCredentialsMessage = "Invalid Credentials"
	userGoneMessage           = "User no longer exists"

	// AvatarMaxBytes caps the size of an uploaded avatar image.
	AvatarMaxBytes = 2 << 20
)

var avatarContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string) error
}

// TokenIssuer issues session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AvatarStore holds uploaded avatar images. *storage.Storage satisfies it.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type RegisterInput struct {
	Name     string `json:"name" validate:"notblank" msg:"Name is required"`
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"min=6" msg:"Please enter a password with 6 or more characters"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required" msg:"Password is required"`
}

// UserService encapsulates registration, login and avatar use-cases.
type UserService struct {
	repo    UserRepository
	tokens  TokenIssuer
	avatars AvatarStore
	events  EventPublisher
	logger  *slog.Logger
	cost    int
}

// NewUserService constructs a UserService. avatars and publisher may be nil.
func NewUserService(repo UserRepository, tokens TokenIssuer, avatars AvatarStore, publisher EventPublisher, logger *slog.Logger) *UserService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		repo:    repo,
		tokens:  tokens,
		avatars: avatars,
		events:  publisher,
		logger:  logger.With("service", "users"),
		cost:    bcrypt.DefaultCost,
	}
}

// Register creates an account and returns a token for it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := strings.TrimSpace(in.Email)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return "", apperr.Conflict(userExistsMessage)
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", apperr.Internal(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Avatar:       Gravatar(email),
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", apperr.Conflict(userExistsMessage)
		}
		return "", apperr.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("issue token: %w", err))
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.events.Publish(ctx, events.UserRegistered, user.ID, types.UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar})
	return token, nil
}

// Login checks credentials and returns a fresh token.
func (s *UserService) Login(ctx context.Context, in LoginInput) (string, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.Invalid(invalidCredentialsMessage)
		}
		return "", apperr.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", apperr.Invalid(invalidCredentialsMessage)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("issue token: %w", err))
	}
	return token, nil
}

// Me loads the principal's own account.
func (s *UserService) Me(ctx context.Context, userID string) (types.User, error) {
	return s.principal(ctx, userID)
}

// UploadAvatar stores an avatar image and points the user's avatar at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (types.User, error) {
	if s.avatars == nil {
		return types.User{}, apperr.NotFound("Avatar uploads are disabled")
	}

	var fields []apperr.FieldError
	if !avatarContentTypes[contentType] {
		fields = append(fields, apperr.FieldError{Field: "avatar", Message: "Avatar must be a PNG, JPEG or GIF image"})
	}
	if size <= 0 || size > AvatarMaxBytes {
		fields = append(fields, apperr.FieldError{Field: "avatar", Message: "Avatar must be at most 2 MiB"})
	}
	if len(fields) > 0 {
		return types.User{}, apperr.Validation(fields...)
	}

	user, err := s.principal(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if err := s.avatars.Put(ctx, AvatarKey(userID), r, size, contentType); err != nil {
		return types.User{}, apperr.Internal(fmt.Errorf("store avatar: %w", err))
	}

	user.Avatar = AvatarURL(userID)
	if err := s.repo.UpdateAvatar(ctx, userID, user.Avatar); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized(userGoneMessage)
		}
		return types.User{}, apperr.Internal(err)
	}
	return user, nil
}

// Avatar opens the stored avatar image of userID.
func (s *UserService) Avatar(ctx context.Context, userID string) (io.ReadCloser, error) {
	if s.avatars == nil {
		return nil, apperr.NotFound("Avatar not found")
	}
	rc, err := s.avatars.Get(ctx, AvatarKey(userID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperr.NotFound("Avatar not found")
		}
		return nil, apperr.Internal(err)
	}
	return rc, nil
}

// principal loads the user behind an authenticated id. A valid token may
// outlive its account, which is reported as Unauthorized.
func (s *UserService) principal(ctx context.Context, userID string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized(userGoneMessage)
		}
		return types.User{}, apperr.Internal(err)
	}
	return user, nil
}

// Gravatar returns the protocol-relative Gravatar URL for email.
func Gravatar(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "//www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=mm&r=pg&s=200"
}

// AvatarKey is the object key of an uploaded avatar.
func AvatarKey(userID string) string {
	return "avatars/" + userID
}

// AvatarURL is the public path serving an uploaded avatar.
func AvatarURL(userID string) string {
	return "/users/" + userID + "/avatar"
}
