package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devlink/apiserver/internal/services"
)

const postRemovedMessage = "Post removed"

// PostHandler provides HTTP handlers for posts, likes and comments.
type PostHandler struct {
	postService *services.PostService
	logger      *slog.Logger
}

func NewPostHandler(postService *services.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		logger:      logger,
	}
}

// PostRouter registers post routes on the given router. Every route
// requires authentication.
func PostRouter(r chi.Router, postService *services.PostService, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewPostHandler(postService, logger)

	r.Use(authMiddleware)
	r.Post("/", handler.CreatePost)
	r.Get("/", handler.ListPosts)
	r.Get("/{postID}", handler.GetPost)
	r.Delete("/{postID}", handler.DeletePost)
	r.Put("/like/{postID}", handler.LikePost)
	r.Put("/unlike/{postID}", handler.UnlikePost)
	r.Post("/comment/{postID}", handler.AddComment)
	r.Delete("/comment/{postID}/{commentID}", handler.RemoveComment)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	var req services.PostInput
	if err := decodeRequest(r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.Get(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	if err := h.postService.Delete(r.Context(), userID, chi.URLParam(r, "postID")); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: postRemovedMessage})
}

func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	likes, err := h.postService.Like(r.Context(), userID, chi.URLParam(r, "postID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	likes, err := h.postService.Unlike(r.Context(), userID, chi.URLParam(r, "postID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	var req services.CommentInput
	if err := decodeRequest(r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	comments, err := h.postService.AddComment(r.Context(), userID, chi.URLParam(r, "postID"), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *PostHandler) RemoveComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	comments, err := h.postService.RemoveComment(r.Context(), userID, chi.URLParam(r, "postID"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
