// Package memory keeps users, profiles and posts in process memory.
//
// It honors the same contracts as the Postgres repositories in package
// store: the same sentinel errors, the same ordering and the same
// all-or-nothing updates, serialized by a single mutex.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devlink/apiserver/internal/store"
	"github.com/devlink/apiserver/types"
)

// Store is the shared state behind the repositories.
type Store struct {
	mu       sync.Mutex
	seq      int64
	users    map[string]types.User
	profiles map[string]profileRecord
	posts    map[string]postRecord
}

type profileRecord struct {
	seq     int64
	profile types.Profile
}

type postRecord struct {
	seq  int64
	post types.Post
}

func New() *Store {
	return &Store{
		users:    make(map[string]types.User),
		profiles: make(map[string]profileRecord),
		posts:    make(map[string]postRecord),
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{s: s}
}

func (s *Store) Posts() *PostRepository {
	return &PostRepository{s: s}
}

func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{s: s}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// UserRepository is the in-memory user store.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return types.User{}, store.ErrConflict
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) UpdateAvatar(_ context.Context, id, avatar string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Avatar = avatar
	r.s.users[id] = user
	return nil
}

// ProfileRepository is the in-memory profile store, keyed by owner.
type ProfileRepository struct {
	s *Store
}

func (r *ProfileRepository) List(_ context.Context) ([]types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	records := make([]profileRecord, 0, len(r.s.profiles))
	for _, record := range r.s.profiles {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	profiles := make([]types.Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, r.s.populate(record.profile))
	}
	return profiles, nil
}

func (r *ProfileRepository) GetByUser(_ context.Context, userID string) (types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.profiles[userID]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return r.s.populate(record.profile), nil
}

func (r *ProfileRepository) Create(_ context.Context, profile types.Profile) (types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[profile.UserID]; !ok {
		return types.Profile{}, store.ErrMissingReference
	}
	if _, ok := r.s.profiles[profile.UserID]; ok {
		return types.Profile{}, store.ErrConflict
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	profile = cloneProfile(profile)
	r.s.profiles[profile.UserID] = profileRecord{seq: r.s.next(), profile: profile}
	return r.s.populate(profile), nil
}

// UpdateByUser applies fn to a copy of the profile and stores the copy only
// when fn succeeds. fn runs with the store locked and must not call back
// into it.
func (r *ProfileRepository) UpdateByUser(_ context.Context, userID string, fn func(*types.Profile) error) (types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.profiles[userID]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}

	working := r.s.populate(record.profile)
	if err := fn(&working); err != nil {
		return types.Profile{}, err
	}
	working.ID = record.profile.ID
	working.UserID = userID
	working.CreatedAt = record.profile.CreatedAt

	record.profile = cloneProfile(working)
	record.profile.User = nil
	r.s.profiles[userID] = record
	return r.s.populate(record.profile), nil
}

// populate returns a copy of profile with the owner summary attached.
func (s *Store) populate(profile types.Profile) types.Profile {
	profile = cloneProfile(profile)
	owner := types.UserSummary{ID: profile.UserID}
	if user, ok := s.users[profile.UserID]; ok {
		owner.Name = user.Name
		owner.Avatar = user.Avatar
	}
	profile.User = &owner
	return profile
}

// PostRepository is the in-memory post store.
type PostRepository struct {
	s *Store
}

// List returns every post, newest first.
func (r *PostRepository) List(_ context.Context) ([]types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	records := make([]postRecord, 0, len(r.s.posts))
	for _, record := range r.s.posts {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.seq > b.seq
	})

	posts := make([]types.Post, 0, len(records))
	for _, record := range records {
		posts = append(posts, clonePost(record.post))
	}
	return posts, nil
}

func (r *PostRepository) Get(_ context.Context, id string) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return clonePost(record.post), nil
}

func (r *PostRepository) Create(_ context.Context, post types.Post) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[post.UserID]; !ok {
		return types.Post{}, store.ErrMissingReference
	}
	if _, ok := r.s.posts[post.ID]; ok {
		return types.Post{}, store.ErrConflict
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Likes == nil {
		post.Likes = []types.Like{}
	}
	if post.Comments == nil {
		post.Comments = []types.Comment{}
	}
	post = clonePost(post)
	r.s.posts[post.ID] = postRecord{seq: r.s.next(), post: post}
	return clonePost(post), nil
}

// Update applies fn to a copy of the post and keeps only its likes and
// comments when fn succeeds. fn runs with the store locked.
func (r *PostRepository) Update(_ context.Context, id string, fn func(*types.Post) error) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}

	working := clonePost(record.post)
	if err := fn(&working); err != nil {
		return types.Post{}, err
	}

	record.post.Likes = slices.Clone(working.Likes)
	record.post.Comments = slices.Clone(working.Comments)
	r.s.posts[id] = record
	return clonePost(record.post), nil
}

func (r *PostRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.posts, id)
	return nil
}

// AccountRepository removes a user and everything they own.
type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) DeleteAccount(_ context.Context, userID string) (store.DeletedAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted store.DeletedAccount
	for id, record := range r.s.posts {
		if record.post.UserID == userID {
			delete(r.s.posts, id)
			deleted.Posts++
		}
	}
	if _, ok := r.s.profiles[userID]; ok {
		delete(r.s.profiles, userID)
		deleted.Profile = true
	}
	if _, ok := r.s.users[userID]; ok {
		delete(r.s.users, userID)
		deleted.User = true
	}
	return deleted, nil
}

func cloneProfile(profile types.Profile) types.Profile {
	profile.Skills = slices.Clone(profile.Skills)
	profile.Experience = slices.Clone(profile.Experience)
	profile.Education = slices.Clone(profile.Education)
	if profile.User != nil {
		owner := *profile.User
		profile.User = &owner
	}
	return profile
}

func clonePost(post types.Post) types.Post {
	post.Likes = slices.Clone(post.Likes)
	post.Comments = slices.Clone(post.Comments)
	return post
}
