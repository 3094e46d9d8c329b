package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/store/memory"
)

type fakeTokens struct{}

func (fakeTokens) Issue(userID string) (string, error) {
	return "token-" + userID, nil
}

type publishedEvent struct {
	Type    string
	Subject string
}

type recordingPublisher struct {
	events []publishedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, eventType, subject string, _ any) {
	r.events = append(r.events, publishedEvent{Type: eventType, Subject: subject})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *memory.Store
	events   *recordingPublisher
	users    *UserService
	profiles *ProfileService
	posts    *PostService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	events := &recordingPublisher{}
	users := NewUserService(s.Users(), fakeTokens{}, nil, events, testLogger())
	users.cost = 4
	return &fixture{
		store:    s,
		events:   events,
		users:    users,
		profiles: NewProfileService(s.Profiles(), nil, testLogger()),
		posts:    NewPostService(s.Posts(), s.Users(), events, testLogger()),
		accounts: NewAccountService(s.Accounts(), nil, events, testLogger()),
	}
}

// register creates an account and returns its id.
func (f *fixture) register(t *testing.T, name, email string) string {
	t.Helper()
	_, err := f.users.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret1"})
	require.NoError(t, err)
	user, err := f.store.Users().GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return user.ID
}

func requireKind(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}

func ptr(s string) *string {
	return &s
}
