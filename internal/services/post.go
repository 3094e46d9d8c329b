package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/events"
	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/types"
)

const (
	postNotFoundMessage    = "Post not found"
	commentNotFoundMessage = "Comment does not exist"
	alreadyLikedMessage    = "Post already liked"
	notLikedMessage        = "Post has not yet been liked"
	textRequiredMessage    = "Text is required"
)

// PostRepository defines persistence operations for posts. Update must apply
// fn and store the post's likes and comments atomically.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	Get(ctx context.Context, id string) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, id string, fn func(*types.Post) error) (types.Post, error)
	Delete(ctx context.Context, id string) error
}

// UserLookup loads the author snapshot for new posts and comments.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

type PostInput struct {
	Text string `json:"text" validate:"notblank" msg:"Text is required"`
}

type CommentInput struct {
	Text string `json:"text" validate:"notblank" msg:"Text is required"`
}

// PostService encapsulates post, like and comment use-cases.
type PostService struct {
	repo   PostRepository
	users  UserLookup
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewPostService constructs a PostService. publisher may be nil.
func NewPostService(repo PostRepository, users UserLookup, publisher EventPublisher, logger *slog.Logger) *PostService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		repo:   repo,
		users:  users,
		events: publisher,
		logger: logger.With("service", "posts"),
		now:    time.Now,
	}
}

// Create stores a post written by the principal.
func (s *PostService) Create(ctx context.Context, userID string, in PostInput) (types.Post, error) {
	text := cleanText(in.Text)
	if text == "" {
		return types.Post{}, apperr.Validation(apperr.FieldError{Field: "text", Message: textRequiredMessage})
	}

	author, err := s.author(ctx, userID)
	if err != nil {
		return types.Post{}, err
	}

	post, err := s.repo.Create(ctx, types.Post{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		Text:      text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		Likes:     []types.Like{},
		Comments:  []types.Comment{},
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return types.Post{}, apperr.Unauthorized(userGoneMessage)
		}
		return types.Post{}, apperr.Internal(err)
	}

	s.events.Publish(ctx, events.PostCreated, post.ID, map[string]string{"user": post.UserID})
	return post, nil
}

// List returns all posts, newest first.
func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, postID string) (types.Post, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return types.Post{}, postError(err)
	}
	return post, nil
}

// Delete removes a post. The post must exist and belong to the principal.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return postError(err)
	}
	if err := authorize(userID, post.UserID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, postID); err != nil {
		return postError(err)
	}

	s.logger.Info("post removed", "post_id", postID, "user_id", userID)
	s.events.Publish(ctx, events.PostDeleted, postID, map[string]string{"user": userID})
	return nil
}

// Like records the principal's like. A second like is a Conflict.
func (s *PostService) Like(ctx context.Context, userID, postID string) ([]types.Like, error) {
	post, err := s.repo.Update(ctx, postID, func(p *types.Post) error {
		if p.LikedBy(userID) {
			return apperr.Conflict(alreadyLikedMessage)
		}
		p.Likes = append([]types.Like{{UserID: userID}}, p.Likes...)
		return nil
	})
	if err != nil {
		return nil, postError(err)
	}
	return post.Likes, nil
}

// Unlike removes the principal's like. Unliking without a like is a Conflict.
func (s *PostService) Unlike(ctx context.Context, userID, postID string) ([]types.Like, error) {
	post, err := s.repo.Update(ctx, postID, func(p *types.Post) error {
		if !p.LikedBy(userID) {
			return apperr.Conflict(notLikedMessage)
		}
		likes := make([]types.Like, 0, len(p.Likes))
		for _, like := range p.Likes {
			if like.UserID != userID {
				likes = append(likes, like)
			}
		}
		p.Likes = likes
		return nil
	})
	if err != nil {
		return nil, postError(err)
	}
	return post.Likes, nil
}

// AddComment puts the principal's comment at the front of the post's comments.
func (s *PostService) AddComment(ctx context.Context, userID, postID string, in CommentInput) ([]types.Comment, error) {
	text := cleanText(in.Text)
	if text == "" {
		return nil, apperr.Validation(apperr.FieldError{Field: "text", Message: textRequiredMessage})
	}

	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := types.Comment{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		Text:      text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		CreatedAt: s.now().UTC(),
	}
	post, err := s.repo.Update(ctx, postID, func(p *types.Post) error {
		p.Comments = append([]types.Comment{comment}, p.Comments...)
		return nil
	})
	if err != nil {
		return nil, postError(err)
	}
	return post.Comments, nil
}

// RemoveComment deletes a comment. The post and the comment must exist and
// the comment must belong to the principal.
func (s *PostService) RemoveComment(ctx context.Context, userID, postID, commentID string) ([]types.Comment, error) {
	post, err := s.repo.Update(ctx, postID, func(p *types.Post) error {
		index := -1
		for i, comment := range p.Comments {
			if comment.ID == commentID {
				index = i
				break
			}
		}
		if index < 0 {
			return apperr.NotFound(commentNotFoundMessage)
		}
		if err := authorize(userID, p.Comments[index].UserID); err != nil {
			return err
		}
		comments := make([]types.Comment, 0, len(p.Comments)-1)
		comments = append(comments, p.Comments[:index]...)
		p.Comments = append(comments, p.Comments[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, postError(err)
	}
	return post.Comments, nil
}

func (s *PostService) author(ctx context.Context, userID string) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized(userGoneMessage)
		}
		return types.User{}, apperr.Internal(err)
	}
	return user, nil
}

func postError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(postNotFoundMessage)
	}
	return asAppError(err)
}
