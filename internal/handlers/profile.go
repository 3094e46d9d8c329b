package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devlink/apiserver/internal/services"
)

const userDeletedMessage = "User deleted"

// ProfileHandler provides HTTP handlers for profiles and account deletion.
// A missing profile is reported as 400 on these routes.
type ProfileHandler struct {
	profileService *services.ProfileService
	accountService *services.AccountService
	logger         *slog.Logger
}

func NewProfileHandler(profileService *services.ProfileService, accountService *services.AccountService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		accountService: accountService,
		logger:         logger,
	}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(
	r chi.Router,
	profileService *services.ProfileService,
	accountService *services.AccountService,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewProfileHandler(profileService, accountService, logger)

	r.Get("/", handler.ListProfiles)
	r.Get("/user/{userID}", handler.GetProfileByUser)
	r.Get("/github/{username}", handler.GitHubRepos)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", handler.GetMyProfile)
		r.Post("/", handler.UpsertProfile)
		r.Delete("/", handler.DeleteAccount)
		r.Put("/experience", handler.AddExperience)
		r.Delete("/experience/{entryID}", handler.RemoveExperience)
		r.Put("/education", handler.AddEducation)
		r.Delete("/education/{entryID}", handler.RemoveEducation)
	})
}

func (h *ProfileHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeAppErrorStatus(w, r, h.logger, err, http.StatusBadRequest)
}

func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileService.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) GetProfileByUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.ByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	profile, err := h.profileService.Mine(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpsertProfile creates the principal's profile or merges the supplied
// fields into it.
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	var req services.ProfileInput
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	profile, err := h.profileService.Upsert(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteAccount removes the principal's posts, profile and user record.
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	if _, err := h.accountService.Delete(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: userDeletedMessage})
}

func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	var req services.ExperienceInput
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	profile, err := h.profileService.AddExperience(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) RemoveExperience(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	profile, err := h.profileService.RemoveExperience(r.Context(), userID, chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) AddEducation(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	var req services.EducationInput
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	profile, err := h.profileService.AddEducation(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) RemoveEducation(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	profile, err := h.profileService.RemoveEducation(r.Context(), userID, chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GitHubRepos lists a GitHub user's latest public repositories. An unknown
// GitHub user is a 404.
func (h *ProfileHandler) GitHubRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.profileService.GitHubRepos(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}
