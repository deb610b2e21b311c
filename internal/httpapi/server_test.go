package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/cache"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/notify"
	"github.com/UkralStul/yatube/internal/service"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/UkralStul/yatube/internal/storage/inmemory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	t        *testing.T
	store    *inmemory.Store
	svc      *service.Service
	issuer   *auth.Issuer
	cache    *cache.Memory
	observer *notify.CommentObserver
	server   *Server
	handler  http.Handler

	author *domain.User
	user   *domain.User
	group  *domain.Group
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	store := inmemory.New()
	observer := notify.NewCommentObserver()
	f := &apiFixture{
		t:        t,
		store:    store,
		svc:      service.New(store, service.WithCommentObserver(observer)),
		issuer:   auth.NewIssuer("test-secret", time.Hour),
		cache:    cache.NewMemory(16, time.Minute),
		observer: observer,
	}
	f.server = New(Deps{
		Service:  f.svc,
		Store:    store,
		Issuer:   f.issuer,
		Cache:    f.cache,
		Observer: observer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.handler = f.server.Routes()

	var err error
	f.author, err = store.CreateUser(ctx, &domain.User{Username: "author"})
	require.NoError(t, err)
	f.user, err = store.CreateUser(ctx, &domain.User{Username: "no_name"})
	require.NoError(t, err)
	f.group, err = store.CreateGroup(ctx, &domain.Group{
		Title:       "Тестовая группа",
		Slug:        "test-slug",
		Description: "Тестовое описание",
	})
	require.NoError(t, err)
	return f
}

// rawBody отправляется как есть, без кодирования в JSON.
type rawBody string

func (f *apiFixture) do(method, path string, body any, as *domain.User) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case rawBody:
		reader = strings.NewReader(string(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if as != nil {
		token, err := f.issuer.Issue(as.Username)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) post(text string) *domain.Post {
	f.t.Helper()
	p, err := f.svc.CreatePost(context.Background(), f.author.ID, service.PostInput{Text: text, GroupID: &f.group.ID})
	require.NoError(f.t, err)
	return p
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *apiFixture) countPosts() int {
	n, err := f.store.CountPosts(context.Background(), storage.PostFilter{})
	require.NoError(f.t, err)
	return n
}

func TestIndex_ServesCachedSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый пост для кэша")

	rec := f.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), p.Text)

	assert.Eventually(t, func() bool {
		return f.do(http.MethodGet, "/", nil, nil).Header().Get("X-Cache") == "HIT"
	}, time.Second, 10*time.Millisecond)

	// Удаленный пост остается в снимке до истечения TTL
	require.NoError(t, f.svc.DeletePost(context.Background(), p.ID, f.author.ID))
	rec = f.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), p.Text)

	f.cache.Purge()
	rec = f.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), p.Text)

	assert.GreaterOrEqual(t, testutil.ToFloat64(f.server.metrics.CacheHits), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(f.server.metrics.CacheMisses), 2.0)
}

func TestIndex_Pagination(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 12; i++ {
		f.post("Тестовый пост")
	}

	tests := []struct {
		query  string
		number int
		items  int
	}{
		{"", 1, 10},
		{"?page=2", 2, 2},
		{"?page=abc", 1, 10},
		{"?page=99", 2, 2},
		{"?page=0", 2, 2},
		{"?page=99999999999999999999", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/"+tt.query, nil, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			page := decodeBody[postPageView](t, rec)
			assert.Equal(t, tt.number, page.Number)
			assert.Len(t, page.Items, tt.items)
			assert.Equal(t, 12, page.TotalCount)
			assert.Equal(t, "author", page.Items[0].Author.Username)
			require.NotNil(t, page.Items[0].Group)
			assert.Equal(t, "test-slug", page.Items[0].Group.Slug)
		})
	}
}

func TestGroupAndProfile(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый пост группы")

	rec := f.do(http.MethodGet, "/group/test-slug/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	group := decodeBody[groupFeedView](t, rec)
	assert.Equal(t, "Тестовая группа", group.Group.Title)
	require.Len(t, group.Page.Items, 1)
	assert.Equal(t, p.ID, group.Page.Items[0].ID)

	rec = f.do(http.MethodGet, "/profile/author/", nil, f.user)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[profileView](t, rec)
	assert.Equal(t, "author", profile.Author.Username)
	assert.False(t, profile.Following)
	assert.Len(t, profile.Page.Items, 1)

	for _, path := range []string{"/group/missing/", "/profile/ghost/", "/posts/missing/", "/unexisting_page/"} {
		rec := f.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestPostDetail(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	p := f.post("Тестовый пост с комментариями")
	_, err := f.svc.AddComment(ctx, p.ID, f.user.ID, "Первый")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, p.ID, f.author.ID, "Второй")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/posts/"+p.ID+"/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[postDetailView](t, rec)
	assert.Equal(t, p.Text, detail.Post.Text)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "Первый", detail.Comments[0].Text)
	assert.Equal(t, "no_name", detail.Comments[0].Author.Username)
	assert.Equal(t, "author", detail.Comments[1].Author.Username)
}

func TestCreatePost(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/create/", postForm{Text: "Анонимный пост"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.countPosts())

	rec = f.do(http.MethodPost, "/create/", map[string]any{"text": "Тестовый текст", "group": f.group.ID}, f.author)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/author/", rec.Header().Get("Location"))
	assert.Equal(t, 1, f.countPosts())

	unknownGroup := uuid.NewString()
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"forbidden word", map[string]any{"text": "Текст про ЁЖ"}, "text"},
		{"empty text", map[string]any{"text": ""}, "text"},
		{"blank text", map[string]any{"text": "   "}, "text"},
		{"malformed group", map[string]any{"text": "Тестовый текст", "group": "not-a-uuid"}, "group"},
		{"unknown group", map[string]any{"text": "Тестовый текст", "group": unknownGroup}, "group"},
		{"no body", nil, "body"},
		{"unknown field", map[string]any{"text": "Тестовый текст", "groop": f.group.ID}, "body"},
		{"trailing data", rawBody(`{"text":"Тестовый текст"} {"text":"ещё"}`), "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/create/", tt.body, f.author)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decodeBody[errorBody](t, rec).Field)
		})
	}
	assert.Equal(t, 1, f.countPosts())

	rec = f.do(http.MethodPost, "/create/", map[string]any{"text": "Пост без группы", "group": ""}, f.author)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, 2, f.countPosts())
}

func TestEditPost_EmptyGroupClearsGroup(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый текст")

	rec := f.do(http.MethodPost, "/posts/"+p.ID+"/edit/", map[string]any{"text": "Без группы", "group": ""}, f.author)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	stored, err := f.store.GetPostByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Без группы", stored.Text)
	assert.Nil(t, stored.GroupID)
}

func TestEditPost(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый текст")
	path := "/posts/" + p.ID + "/edit/"

	rec := f.do(http.MethodPost, path, postForm{Text: "Чужая правка"}, f.user)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/posts/"+p.ID+"/", rec.Header().Get("Location"))
	stored, err := f.store.GetPostByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Тестовый текст", stored.Text)
	assert.Equal(t, f.group.ID, *stored.GroupID)

	rec = f.do(http.MethodPost, path, postForm{Text: "Про ежа и ёжика"}, f.author)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, path, postForm{Text: "Измененный текст"}, f.author)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	stored, err = f.store.GetPostByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Измененный текст", stored.Text)
	assert.Nil(t, stored.GroupID)
	assert.Equal(t, p.PubDate, stored.PubDate)

	rec = f.do(http.MethodPost, "/posts/"+uuid.NewString()+"/edit/", postForm{Text: "Текст"}, f.author)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePost(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый текст")
	path := "/posts/" + p.ID + "/delete/"

	rec := f.do(http.MethodPost, path, nil, f.user)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, f.countPosts())

	rec = f.do(http.MethodPost, path, nil, f.author)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/author/", rec.Header().Get("Location"))
	assert.Zero(t, f.countPosts())
}

func TestAddComment(t *testing.T) {
	f := newAPIFixture(t)
	p := f.post("Тестовый текст")
	path := "/posts/" + p.ID + "/comment/"

	rec := f.do(http.MethodPost, path, commentForm{Text: "Аноним"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, path, commentForm{Text: "Тестовый комментарий про ёжика"}, f.user)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/posts/"+p.ID+"/", rec.Header().Get("Location"))

	comments, err := f.svc.ListComments(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, f.user.ID, comments[0].AuthorID)

	rec = f.do(http.MethodPost, path, commentForm{}, f.user)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, "/posts/"+uuid.NewString()+"/comment/", commentForm{Text: "Текст"}, f.user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowFlow(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	p := f.post("Новый пост автора")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/follow/", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/profile/author/follow/", nil, nil).Code)

	rec := f.do(http.MethodPost, "/profile/author/follow/", nil, f.user)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/author/", rec.Header().Get("Location"))
	f.do(http.MethodPost, "/profile/author/follow/", nil, f.user)
	following, err := f.svc.IsFollowing(ctx, f.user.ID, f.author.ID)
	require.NoError(t, err)
	assert.True(t, following)

	rec = f.do(http.MethodGet, "/follow/", nil, f.user)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[postPageView](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, p.ID, page.Items[0].ID)

	rec = f.do(http.MethodGet, "/profile/author/", nil, f.user)
	assert.True(t, decodeBody[profileView](t, rec).Following)

	rec = f.do(http.MethodGet, "/follow/", nil, f.author)
	assert.Empty(t, decodeBody[postPageView](t, rec).Items)

	// Подписка на себя молча игнорируется
	rec = f.do(http.MethodPost, "/profile/author/follow/", nil, f.author)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	following, err = f.svc.IsFollowing(ctx, f.author.ID, f.author.ID)
	require.NoError(t, err)
	assert.False(t, following)

	rec = f.do(http.MethodPost, "/profile/author/unfollow/", nil, f.user)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	following, err = f.svc.IsFollowing(ctx, f.user.ID, f.author.ID)
	require.NoError(t, err)
	assert.False(t, following)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/profile/ghost/follow/", nil, f.user).Code)
}

func TestAuthenticate(t *testing.T) {
	f := newAPIFixture(t)

	tests := map[string]string{
		"not bearer":  "Basic dXNlcjpwYXNz",
		"garbage":     "Bearer not-a-token",
		"foreign key": "Bearer " + mustIssue(t, auth.NewIssuer("other", time.Hour), "author"),
		"ghost user":  "Bearer " + mustIssue(t, f.issuer, "ghost"),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func mustIssue(t *testing.T, i *auth.Issuer, username string) string {
	t.Helper()
	token, err := i.Issue(username)
	require.NoError(t, err)
	return token
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(http.MethodGet, "/group/test-slug/", nil, nil)
	rec = f.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `yatube_http_requests_total{method="GET",route="/group/{slug}",status="200"} 1`), body)
}
