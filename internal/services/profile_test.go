package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/github"
	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/types"
)

func TestParseSkills(t *testing.T) {
	assert.Equal(t, []string{"node", "react"}, ParseSkills("node, react"))
	assert.Equal(t, []string{"go", "sql"}, ParseSkills(" go ,, sql , "))
	assert.Nil(t, ParseSkills(" , ,"))
	assert.Nil(t, ParseSkills(""))
}

func TestUpsertCreatesThenMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")

	created, err := f.profiles.Upsert(ctx, id, ProfileInput{Status: ptr("dev"), Skills: ptr("node, react"), Twitter: ptr("https://twitter.com/ada")})
	require.NoError(t, err)
	assert.Equal(t, "dev", created.Status)
	assert.Equal(t, []string{"node", "react"}, created.Skills)
	assert.Equal(t, "https://twitter.com/ada", created.Social.Twitter)
	require.NotNil(t, created.User)
	assert.Equal(t, "Ada", created.User.Name)

	merged, err := f.profiles.Upsert(ctx, id, ProfileInput{Bio: ptr("hi"), YouTube: ptr("https://youtube.com/ada")})
	require.NoError(t, err)
	assert.Equal(t, created.ID, merged.ID)
	assert.Equal(t, "dev", merged.Status)
	assert.Equal(t, "hi", merged.Bio)
	assert.Equal(t, []string{"node", "react"}, merged.Skills)
	assert.Equal(t, "https://twitter.com/ada", merged.Social.Twitter)
	assert.Equal(t, "https://youtube.com/ada", merged.Social.YouTube)

	profiles, err := f.profiles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestUpsertCreationRequiresStatusAndSkills(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "Ada", "a@x.com")

	_, err := f.profiles.Upsert(context.Background(), id, ProfileInput{Bio: ptr("hi")})
	requireKind(t, err, apperr.KindValidation, "")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []apperr.FieldError{
		{Field: "status", Message: "Status is required"},
		{Field: "skills", Message: "Skills is required"},
	}, appErr.Fields)

	_, err = f.profiles.Mine(context.Background(), id)
	requireKind(t, err, apperr.KindNotFound, "There is no profile for this user")
}

func TestUpsertRejectsEmptySkills(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "Ada", "a@x.com")

	_, err := f.profiles.Upsert(context.Background(), id, ProfileInput{Status: ptr("dev"), Skills: ptr(" , ")})
	requireKind(t, err, apperr.KindValidation, "")
}

func TestUpsertCreationReportsBlankSkillsAlongsideStatus(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "Ada", "a@x.com")

	_, err := f.profiles.Upsert(context.Background(), id, ProfileInput{Skills: ptr(" , ")})
	requireKind(t, err, apperr.KindValidation, "")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []apperr.FieldError{
		{Field: "status", Message: "Status is required"},
		{Field: "skills", Message: "Skills is required"},
	}, appErr.Fields)
}

func TestUpdateRejectsBlankSkillsWithoutTouchingProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")

	_, err := f.profiles.Upsert(ctx, id, ProfileInput{Status: ptr("dev"), Skills: ptr("go")})
	require.NoError(t, err)

	_, err = f.profiles.Upsert(ctx, id, ProfileInput{Bio: ptr("changed"), Skills: ptr(" , ")})
	requireKind(t, err, apperr.KindValidation, "")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []apperr.FieldError{{Field: "skills", Message: "Skills is required"}}, appErr.Fields)

	mine, err := f.profiles.Mine(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, mine.Skills)
	assert.Empty(t, mine.Bio)
}

func TestUpsertForDeletedUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.profiles.Upsert(context.Background(), "ghost", ProfileInput{Status: ptr("dev"), Skills: ptr("go")})
	requireKind(t, err, apperr.KindUnauthorized, "User no longer exists")
}

func TestBioIsStrippedOfMarkup(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "Ada", "a@x.com")

	profile, err := f.profiles.Upsert(context.Background(), id, ProfileInput{
		Status: ptr("dev"),
		Skills: ptr("go"),
		Bio:    ptr("<script>alert(1)</script>Hello <b>world</b>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", profile.Bio)
}

func TestExperienceAddAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")

	_, err := f.profiles.AddExperience(ctx, id, ExperienceInput{Title: "Dev", Company: "Acme", From: "2020-01-01"})
	requireKind(t, err, apperr.KindNotFound, "There is no profile for this user")

	_, err = f.profiles.Upsert(ctx, id, ProfileInput{Status: ptr("dev"), Skills: ptr("go")})
	require.NoError(t, err)

	_, err = f.profiles.AddExperience(ctx, id, ExperienceInput{Title: "Junior", Company: "Acme", From: "2018-01-01", To: "2019-12-31"})
	require.NoError(t, err)
	profile, err := f.profiles.AddExperience(ctx, id, ExperienceInput{Title: "Senior", Company: "Acme", From: "2020-01-01", Current: true})
	require.NoError(t, err)

	require.Len(t, profile.Experience, 2)
	assert.Equal(t, "Senior", profile.Experience[0].Title)
	assert.Nil(t, profile.Experience[0].To)
	assert.Equal(t, "Junior", profile.Experience[1].Title)
	require.NotNil(t, profile.Experience[1].To)
	assert.Equal(t, time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), *profile.Experience[1].To)

	profile, err = f.profiles.RemoveExperience(ctx, id, "no-such-entry")
	require.NoError(t, err)
	assert.Len(t, profile.Experience, 2)

	profile, err = f.profiles.RemoveExperience(ctx, id, profile.Experience[1].ID)
	require.NoError(t, err)
	require.Len(t, profile.Experience, 1)
	assert.Equal(t, "Senior", profile.Experience[0].Title)
}

func TestEducationAddAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")
	_, err := f.profiles.Upsert(ctx, id, ProfileInput{Status: ptr("dev"), Skills: ptr("go")})
	require.NoError(t, err)

	profile, err := f.profiles.AddEducation(ctx, id, EducationInput{School: "MIT", Degree: "BSc", FieldOfStudy: "CS", From: "2010-09-01"})
	require.NoError(t, err)
	require.Len(t, profile.Education, 1)
	assert.Equal(t, "CS", profile.Education[0].FieldOfStudy)

	_, err = f.profiles.AddEducation(ctx, id, EducationInput{School: "MIT", Degree: "MSc", FieldOfStudy: "CS", From: "2014-09-01", To: "someday"})
	requireKind(t, err, apperr.KindValidation, "")

	profile, err = f.profiles.RemoveEducation(ctx, id, profile.Education[0].ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Education)
}

type stubFinder struct {
	repos []github.Repo
	err   error
}

func (s stubFinder) Repos(context.Context, string) ([]github.Repo, error) {
	return s.repos, s.err
}

func TestGitHubRepos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.profiles.repos = stubFinder{repos: []github.Repo{{Name: "hello"}}}
	repos, err := f.profiles.GitHubRepos(ctx, "octocat")
	require.NoError(t, err)
	assert.Len(t, repos, 1)

	f.profiles.repos = stubFinder{err: github.ErrNotFound}
	_, err = f.profiles.GitHubRepos(ctx, "ghost")
	requireKind(t, err, apperr.KindNotFound, "No Github profile found")

	f.profiles.repos = stubFinder{err: errors.New("timeout")}
	_, err = f.profiles.GitHubRepos(ctx, "octocat")
	requireKind(t, err, apperr.KindInternal, "Server Error")
}

// racingProfiles reports no profile on the first update so the service takes
// the create path, then loses the unique-owner race.
type racingProfiles struct {
	ProfileRepository
	updates int
}

func (r *racingProfiles) UpdateByUser(ctx context.Context, userID string, fn func(*types.Profile) error) (types.Profile, error) {
	r.updates++
	if r.updates == 1 {
		return types.Profile{}, store.ErrNotFound
	}
	return r.ProfileRepository.UpdateByUser(ctx, userID, fn)
}

func TestUpsertRetriesAfterLosingCreateRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")
	_, err := f.profiles.Upsert(ctx, id, ProfileInput{Status: ptr("dev"), Skills: ptr("go")})
	require.NoError(t, err)

	racing := &racingProfiles{ProfileRepository: f.store.Profiles()}
	svc := NewProfileService(racing, nil, testLogger())

	profile, err := svc.Upsert(ctx, id, ProfileInput{Status: ptr("lead"), Skills: ptr("go, sql")})
	require.NoError(t, err)
	assert.Equal(t, 2, racing.updates)
	assert.Equal(t, "lead", profile.Status)
	assert.Equal(t, []string{"go", "sql"}, profile.Skills)
}
