package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/moderation"
	"github.com/UkralStul/yatube/internal/notify"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/UkralStul/yatube/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *inmemory.Store
	svc    *Service
	author *domain.User
	user   *domain.User
	group  *domain.Group
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	store := inmemory.New()
	ctx := context.Background()

	author, err := store.CreateUser(ctx, &domain.User{Username: "author"})
	require.NoError(t, err)
	user, err := store.CreateUser(ctx, &domain.User{Username: "no_name"})
	require.NoError(t, err)
	group, err := store.CreateGroup(ctx, &domain.Group{
		Title:       "Тестовая группа",
		Slug:        "test-slug",
		Description: "Тестовое описание группы",
	})
	require.NoError(t, err)

	return &fixture{
		store:  store,
		svc:    New(store, opts...),
		author: author,
		user:   user,
		group:  group,
	}
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "Тестовый текст", GroupID: &f.group.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, f.author.ID, post.AuthorID)
	assert.Equal(t, f.group.ID, *post.GroupID)
	assert.False(t, post.PubDate.IsZero())

	stored, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Тестовый текст", stored.Text)
}

func TestCreatePost_WithoutGroupAndWithImage(t *testing.T) {
	f := newFixture(t)
	img := "posts/small.gif"

	post, err := f.svc.CreatePost(context.Background(), f.author.ID, PostInput{Text: "без группы", Image: &img})
	require.NoError(t, err)
	assert.Nil(t, post.GroupID)
	require.NotNil(t, post.Image)
	assert.Equal(t, img, *post.Image)
}

func TestCreatePost_ValidationFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := "no-such-group"

	cases := []struct {
		name  string
		in    PostInput
		field string
	}{
		{"empty", PostInput{Text: ""}, "text"},
		{"blank", PostInput{Text: "   \n"}, "text"},
		{"forbidden", PostInput{Text: "ёж"}, "text"},
		{"forbidden upper", PostInput{Text: "Смотрите, ЁЖ!"}, "text"},
		{"forbidden inside word", PostInput{Text: "Ёжики"}, "text"},
		{"unknown group", PostInput{Text: "ok", GroupID: &unknown}, "group"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePost(ctx, f.author.ID, tc.in)
			require.ErrorIs(t, err, domain.ErrValidationFailed)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	n, err := f.store.CountPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreatePost_CustomDenylist(t *testing.T) {
	f := newFixture(t, WithModeration(moderation.New("spam")))
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "SPAM here"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "ёж"})
	assert.NoError(t, err)
}

func TestPubDateStrictlyIncreases(t *testing.T) {
	fixed := time.Date(2023, 2, 8, 13, 8, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	first, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "1"})
	require.NoError(t, err)
	second, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "2"})
	require.NoError(t, err)

	assert.True(t, second.PubDate.After(first.PubDate))
	assert.Equal(t, fixed, first.PubDate)
}

func TestEditPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := "posts/a.gif"
	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "Тестовый текст", GroupID: &f.group.ID, Image: &img})
	require.NoError(t, err)

	edited, err := f.svc.EditPost(ctx, post.ID, f.author.ID, PostInput{Text: "Отредактированный текст"})
	require.NoError(t, err)
	assert.Equal(t, "Отредактированный текст", edited.Text)
	assert.Nil(t, edited.GroupID)
	require.NotNil(t, edited.Image, "image is kept when none is uploaded")
	assert.Equal(t, img, *edited.Image)
	assert.Equal(t, post.PubDate, edited.PubDate)
	assert.Equal(t, f.author.ID, edited.AuthorID)
}

func TestEditPost_NonAuthorForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "Тестовый текст", GroupID: &f.group.ID})
	require.NoError(t, err)

	_, err = f.svc.EditPost(ctx, post.ID, f.user.ID, PostInput{Text: "взлом"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Права проверяются раньше, чем текст
	_, err = f.svc.EditPost(ctx, post.ID, f.user.ID, PostInput{Text: "ёж"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Тестовый текст", stored.Text)
	assert.Equal(t, f.group.ID, *stored.GroupID)
}

func TestEditPost_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "Тестовый текст"})
	require.NoError(t, err)

	_, err = f.svc.EditPost(ctx, "missing", f.author.ID, PostInput{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.EditPost(ctx, post.ID, f.author.ID, PostInput{Text: "Про ёжика"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	unknown := "no-such-group"
	_, err = f.svc.EditPost(ctx, post.ID, f.author.ID, PostInput{Text: "ok", GroupID: &unknown})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	stored, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Тестовый текст", stored.Text)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "удалить"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, post.ID, f.user.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeletePost(ctx, post.ID, f.author.ID))
	_, err = f.svc.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddComment(t *testing.T) {
	o := notify.NewCommentObserver()
	f := newFixture(t, WithCommentObserver(o))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "пост"})
	require.NoError(t, err)
	live := o.Subscribe(ctx, post.ID)

	// Запрещенное слово в комментариях разрешено
	c1, err := f.svc.AddComment(ctx, post.ID, f.user.ID, "Тестовый комментарий про ёжика")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, c1.AuthorID)
	_, err = f.svc.AddComment(ctx, post.ID, f.author.ID, "ответ")
	require.NoError(t, err)

	comments, err := f.svc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, c1.ID, comments[0].ID)
	assert.Equal(t, "ответ", comments[1].Text)

	select {
	case c := <-live:
		assert.Equal(t, c1.ID, c.ID)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for live comment")
	}
}

func TestAddComment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, f.author.ID, PostInput{Text: "пост"})
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, post.ID, f.user.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = f.svc.AddComment(ctx, "missing", f.user.ID, "текст")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	comments, err := f.svc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestFollowAndUnfollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Follow(ctx, f.user.ID, f.author.ID))
	require.NoError(t, f.svc.Follow(ctx, f.user.ID, f.author.ID))

	ok, err := f.svc.IsFollowing(ctx, f.user.ID, f.author.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.Unfollow(ctx, f.user.ID, f.author.ID))
	ok, err = f.svc.IsFollowing(ctx, f.user.ID, f.author.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Повторная отписка не ошибка
	require.NoError(t, f.svc.Unfollow(ctx, f.user.ID, f.author.ID))
}

func TestFollow_Self(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []*domain.User{f.user, f.author} {
		err := f.svc.Follow(ctx, u.ID, u.ID)
		assert.ErrorIs(t, err, domain.ErrSelfFollow)

		ok, err := f.svc.IsFollowing(ctx, u.ID, u.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
