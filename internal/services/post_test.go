package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/events"
)

func TestCreatePostSnapshotsAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")

	post, err := f.posts.Create(ctx, id, PostInput{Text: "  hello <i>there</i> "})
	require.NoError(t, err)
	assert.Equal(t, "hello there", post.Text)
	assert.Equal(t, "Ada", post.Name)
	assert.Equal(t, Gravatar("a@x.com"), post.Avatar)
	assert.Empty(t, post.Likes)
	assert.Contains(t, f.events.events, publishedEvent{Type: events.PostCreated, Subject: post.ID})

	got, err := f.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	_, err = f.posts.Create(ctx, id, PostInput{Text: "<b></b>"})
	requireKind(t, err, apperr.KindValidation, "")

	_, err = f.posts.Create(ctx, "ghost", PostInput{Text: "hi"})
	requireKind(t, err, apperr.KindUnauthorized, "User no longer exists")
}

func TestDeletePostChecksExistenceThenOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "Ada", "a@x.com")
	other := f.register(t, "Bob", "b@x.com")

	post, err := f.posts.Create(ctx, author, PostInput{Text: "mine"})
	require.NoError(t, err)

	err = f.posts.Delete(ctx, other, "no-such-post")
	requireKind(t, err, apperr.KindNotFound, "Post not found")

	err = f.posts.Delete(ctx, other, post.ID)
	requireKind(t, err, apperr.KindForbidden, "User not authorized")

	require.NoError(t, f.posts.Delete(ctx, author, post.ID))
	_, err = f.posts.Get(ctx, post.ID)
	requireKind(t, err, apperr.KindNotFound, "Post not found")
}

func TestLikeUnlikeStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "Ada", "a@x.com")
	fan := f.register(t, "Bob", "b@x.com")
	post, err := f.posts.Create(ctx, author, PostInput{Text: "like me"})
	require.NoError(t, err)

	_, err = f.posts.Unlike(ctx, fan, post.ID)
	requireKind(t, err, apperr.KindConflict, "Post has not yet been liked")

	likes, err := f.posts.Like(ctx, fan, post.ID)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, fan, likes[0].UserID)

	_, err = f.posts.Like(ctx, fan, post.ID)
	requireKind(t, err, apperr.KindConflict, "Post already liked")

	likes, err = f.posts.Like(ctx, author, post.ID)
	require.NoError(t, err)
	require.Len(t, likes, 2)
	assert.Equal(t, author, likes[0].UserID)

	likes, err = f.posts.Unlike(ctx, fan, post.ID)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, author, likes[0].UserID)

	_, err = f.posts.Like(ctx, fan, "no-such-post")
	requireKind(t, err, apperr.KindNotFound, "Post not found")
}

func TestConcurrentLikesRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "Ada", "a@x.com")
	post, err := f.posts.Create(ctx, author, PostInput{Text: "race"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.posts.Like(ctx, author, post.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	got, err := f.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 1)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "Ada", "a@x.com")
	commenter := f.register(t, "Bob", "b@x.com")
	post, err := f.posts.Create(ctx, author, PostInput{Text: "discuss"})
	require.NoError(t, err)

	_, err = f.posts.AddComment(ctx, commenter, post.ID, CommentInput{Text: "first"})
	require.NoError(t, err)
	comments, err := f.posts.AddComment(ctx, author, post.ID, CommentInput{Text: "second"})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Text)
	assert.Equal(t, "Bob", comments[1].Name)

	_, err = f.posts.RemoveComment(ctx, author, post.ID, "no-such-comment")
	requireKind(t, err, apperr.KindNotFound, "Comment does not exist")

	_, err = f.posts.RemoveComment(ctx, author, post.ID, comments[1].ID)
	requireKind(t, err, apperr.KindForbidden, "User not authorized")

	_, err = f.posts.RemoveComment(ctx, commenter, "no-such-post", comments[1].ID)
	requireKind(t, err, apperr.KindNotFound, "Post not found")

	comments, err = f.posts.RemoveComment(ctx, commenter, post.ID, comments[1].ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "second", comments[0].Text)

	_, err = f.posts.AddComment(ctx, commenter, "no-such-post", CommentInput{Text: "lost"})
	requireKind(t, err, apperr.KindNotFound, "Post not found")
}

func TestListPostsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "Ada", "a@x.com")

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.posts.Create(ctx, id, PostInput{Text: text})
		require.NoError(t, err)
	}

	posts, err := f.posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "three", posts[0].Text)
	assert.Equal(t, "one", posts[2].Text)
}
