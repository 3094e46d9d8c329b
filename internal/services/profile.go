package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/github"
	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/internal/validate"
	"github.com/devlink/apiserver/types"
)

const (
	noProfileMessage       = "There is no profile for this user"
	profileNotFoundMessage = "Profile not found"
	noGitHubMessage        = "No Github profile found"
)

// ProfileRepository defines persistence operations for profiles. UpdateByUser
// must apply fn and store the result atomically.
type ProfileRepository interface {
	List(ctx context.Context) ([]types.Profile, error)
	GetByUser(ctx context.Context, userID string) (types.Profile, error)
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	UpdateByUser(ctx context.Context, userID string, fn func(*types.Profile) error) (types.Profile, error)
}

// RepoFinder looks up public repositories of a GitHub user.
type RepoFinder interface {
	Repos(ctx context.Context, username string) ([]github.Repo, error)
}

// ProfileInput is a partial profile. Nil fields leave the stored value
// untouched. Skills is a comma separated list.
type ProfileInput struct {
	Company        *string `json:"company"`
	Website        *string `json:"website"`
	Location       *string `json:"location"`
	Bio            *string `json:"bio"`
	Status         *string `json:"status" validate:"omitnil,notblank" msg:"Status is required"`
	GitHubUsername *string `json:"githubusername"`
	Skills         *string `json:"skills" validate:"omitnil,notblank" msg:"Skills is required"`
	YouTube        *string `json:"youtube"`
	Twitter        *string `json:"twitter"`
	Facebook       *string `json:"facebook"`
	LinkedIn       *string `json:"linkedin"`
	Instagram      *string `json:"instagram"`
}

type ExperienceInput struct {
	Title       string `json:"title" validate:"notblank" msg:"Title is required"`
	Company     string `json:"company" validate:"notblank" msg:"Company is required"`
	Location    string `json:"location"`
	From        string `json:"from" validate:"notblank,date" msg:"From date is required"`
	To          string `json:"to" validate:"date" msg:"To date is invalid"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

type EducationInput struct {
	School       string `json:"school" validate:"notblank" msg:"School is required"`
	Degree       string `json:"degree" validate:"notblank" msg:"Degree is required"`
	FieldOfStudy string `json:"fieldofstudy" validate:"notblank" msg:"Field of study is required"`
	From         string `json:"from" validate:"notblank,date" msg:"From date is required"`
	To           string `json:"to" validate:"date" msg:"To date is invalid"`
	Current      bool   `json:"current"`
	Description  string `json:"description"`
}

// ProfileService coordinates profile reads and read-modify-write updates.
type ProfileService struct {
	repo   ProfileRepository
	repos  RepoFinder
	logger *slog.Logger
}

// NewProfileService constructs a ProfileService. repos may be nil, which
// disables GitHub lookups.
func NewProfileService(repo ProfileRepository, repos RepoFinder, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		repo:   repo,
		repos:  repos,
		logger: logger.With("service", "profiles"),
	}
}

func (s *ProfileService) List(ctx context.Context) ([]types.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return profiles, nil
}

// Mine returns the principal's own profile.
func (s *ProfileService) Mine(ctx context.Context, userID string) (types.Profile, error) {
	return s.get(ctx, userID, noProfileMessage)
}

// ByUser returns the profile owned by userID.
func (s *ProfileService) ByUser(ctx context.Context, userID string) (types.Profile, error) {
	return s.get(ctx, userID, profileNotFoundMessage)
}

func (s *ProfileService) get(ctx context.Context, userID, notFound string) (types.Profile, error) {
	profile, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, apperr.NotFound(notFound)
		}
		return types.Profile{}, apperr.Internal(err)
	}
	return profile, nil
}

// Upsert merges in into the principal's profile, creating the profile when
// it does not exist yet. Creation requires status and skills.
func (s *ProfileService) Upsert(ctx context.Context, userID string, in ProfileInput) (types.Profile, error) {
	skillsRequired := apperr.FieldError{Field: "skills", Message: "Skills is required"}

	var skills []string
	if in.Skills != nil {
		skills = ParseSkills(*in.Skills)
	}
	// A skills value with no entries is rejected on both paths.
	blankSkills := in.Skills != nil && len(skills) == 0

	merge := func(p *types.Profile) error {
		if blankSkills {
			return apperr.Validation(skillsRequired)
		}
		in.apply(p, skills)
		return nil
	}

	profile, err := s.repo.UpdateByUser(ctx, userID, merge)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Profile{}, asAppError(err)
	}

	var missing []apperr.FieldError
	if in.Status == nil || strings.TrimSpace(*in.Status) == "" {
		missing = append(missing, apperr.FieldError{Field: "status", Message: "Status is required"})
	}
	if len(skills) == 0 {
		missing = append(missing, skillsRequired)
	}
	if len(missing) > 0 {
		return types.Profile{}, apperr.Validation(missing...)
	}

	fresh := types.Profile{
		ID:         uuid.NewString(),
		UserID:     userID,
		Skills:     []string{},
		Experience: []types.Experience{},
		Education:  []types.Education{},
	}
	in.apply(&fresh, skills)

	created, err := s.repo.Create(ctx, fresh)
	switch {
	case err == nil:
		s.logger.Info("profile created", "user_id", userID, "profile_id", created.ID)
		return created, nil
	case errors.Is(err, store.ErrConflict):
		// A concurrent request created the profile first.
		profile, err := s.repo.UpdateByUser(ctx, userID, merge)
		if err != nil {
			return types.Profile{}, asAppError(err)
		}
		return profile, nil
	case errors.Is(err, store.ErrMissingReference):
		return types.Profile{}, apperr.Unauthorized(userGoneMessage)
	default:
		return types.Profile{}, apperr.Internal(err)
	}
}

// AddExperience puts a new entry at the front of the principal's experience.
func (s *ProfileService) AddExperience(ctx context.Context, userID string, in ExperienceInput) (types.Profile, error) {
	from, to, err := parseRange(in.From, in.To)
	if err != nil {
		return types.Profile{}, err
	}
	entry := types.Experience{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Company:     strings.TrimSpace(in.Company),
		Location:    strings.TrimSpace(in.Location),
		From:        from,
		To:          to,
		Current:     in.Current,
		Description: in.Description,
	}
	return s.update(ctx, userID, func(p *types.Profile) error {
		p.Experience = append([]types.Experience{entry}, p.Experience...)
		return nil
	})
}

// RemoveExperience drops the entry with the given id. Unknown ids are ignored.
func (s *ProfileService) RemoveExperience(ctx context.Context, userID, entryID string) (types.Profile, error) {
	return s.update(ctx, userID, func(p *types.Profile) error {
		kept := p.Experience[:0:0]
		for _, entry := range p.Experience {
			if entry.ID != entryID {
				kept = append(kept, entry)
			}
		}
		p.Experience = kept
		return nil
	})
}

// AddEducation puts a new entry at the front of the principal's education.
func (s *ProfileService) AddEducation(ctx context.Context, userID string, in EducationInput) (types.Profile, error) {
	from, to, err := parseRange(in.From, in.To)
	if err != nil {
		return types.Profile{}, err
	}
	entry := types.Education{
		ID:           uuid.NewString(),
		School:       strings.TrimSpace(in.School),
		Degree:       strings.TrimSpace(in.Degree),
		FieldOfStudy: strings.TrimSpace(in.FieldOfStudy),
		From:         from,
		To:           to,
		Current:      in.Current,
		Description:  in.Description,
	}
	return s.update(ctx, userID, func(p *types.Profile) error {
		p.Education = append([]types.Education{entry}, p.Education...)
		return nil
	})
}

// RemoveEducation drops the entry with the given id. Unknown ids are ignored.
func (s *ProfileService) RemoveEducation(ctx context.Context, userID, entryID string) (types.Profile, error) {
	return s.update(ctx, userID, func(p *types.Profile) error {
		kept := p.Education[:0:0]
		for _, entry := range p.Education {
			if entry.ID != entryID {
				kept = append(kept, entry)
			}
		}
		p.Education = kept
		return nil
	})
}

// GitHubRepos returns the public repositories of a GitHub user.
func (s *ProfileService) GitHubRepos(ctx context.Context, username string) ([]github.Repo, error) {
	if s.repos == nil {
		return nil, apperr.NotFound(noGitHubMessage)
	}
	repos, err := s.repos.Repos(ctx, username)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, apperr.NotFound(noGitHubMessage)
		}
		s.logger.Warn("github lookup failed", "username", username, "error", err)
		return nil, apperr.Internal(err)
	}
	return repos, nil
}

func (s *ProfileService) update(ctx context.Context, userID string, fn func(*types.Profile) error) (types.Profile, error) {
	profile, err := s.repo.UpdateByUser(ctx, userID, fn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, apperr.NotFound(noProfileMessage)
		}
		return types.Profile{}, asAppError(err)
	}
	return profile, nil
}

// ParseSkills splits a comma separated list, trimming entries and dropping
// empty ones.
func ParseSkills(raw string) []string {
	skills := make([]string, 0)
	for _, skill := range strings.Split(raw, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	if len(skills) == 0 {
		return nil
	}
	return skills
}

func (in ProfileInput) apply(p *types.Profile, skills []string) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.Company, in.Company)
	set(&p.Website, in.Website)
	set(&p.Location, in.Location)
	set(&p.Status, in.Status)
	set(&p.GitHubUsername, in.GitHubUsername)
	if in.Bio != nil {
		p.Bio = cleanText(*in.Bio)
	}
	if skills != nil {
		p.Skills = skills
	}
	set(&p.Social.YouTube, in.YouTube)
	set(&p.Social.Twitter, in.Twitter)
	set(&p.Social.Facebook, in.Facebook)
	set(&p.Social.LinkedIn, in.LinkedIn)
	set(&p.Social.Instagram, in.Instagram)
}

func parseRange(fromValue, toValue string) (time.Time, *time.Time, error) {
	from, err := validate.ParseDate(fromValue)
	if err != nil {
		return time.Time{}, nil, apperr.Validation(apperr.FieldError{Field: "from", Message: "From date is required"})
	}
	if strings.TrimSpace(toValue) == "" {
		return from, nil, nil
	}
	to, err := validate.ParseDate(toValue)
	if err != nil {
		return time.Time{}, nil, apperr.Validation(apperr.FieldError{Field: "to", Message: "To date is invalid"})
	}
	return from, &to, nil
}
