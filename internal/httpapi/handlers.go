package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/pagination"
	"github.com/UkralStul/yatube/internal/service"
	"github.com/go-chi/chi/v5"
)

type postForm struct {
	Text  string  `json:"text" validate:"required"`
	Group *string `json:"group" validate:"omitempty,uuid"`
	Image *string `json:"image" validate:"omitempty,max=255"`
}

// normalize превращает пустую группу в пост без группы до валидации.
func (f *postForm) normalize() {
	if f.Group != nil && *f.Group == "" {
		f.Group = nil
	}
}

func (f *postForm) input() service.PostInput {
	return service.PostInput{Text: f.Text, GroupID: f.Group, Image: f.Image}
}

type commentForm struct {
	Text string `json:"text" validate:"required"`
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}

func postURL(id string) string {
	return "/posts/" + url.PathEscape(id) + "/"
}

func pageNumber(r *http.Request) int {
	return pagination.ParseNumber(r.URL.Query().Get("page"))
}

func indexCacheKey(page int) string {
	return fmt.Sprintf("index:page:%d", page)
}

// handleIndex отдает главную ленту из снимка, живущего TTL кэша. Новые посты
// появляются только после его истечения.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageNumber(r)
	key := indexCacheKey(page)

	body, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.CacheErrors.Inc()
		s.log.Warn("index cache read failed", "key", key, "error", err)
	}
	if ok {
		s.metrics.CacheHits.Inc()
		writeRaw(w, body, "HIT")
		return
	}
	s.metrics.CacheMisses.Inc()

	feed, err := s.svc.GlobalFeed(ctx, page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	view, err := s.renderPage(ctx, feed)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	body, err = json.Marshal(view)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeRaw(w, body, "MISS")

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(ctx, key, body); err != nil {
			s.metrics.CacheErrors.Inc()
			s.log.Warn("index cache write failed", "key", key, "error", err)
		}
	}()
}

func writeRaw(w http.ResponseWriter, body []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feed, err := s.svc.GroupFeed(ctx, chi.URLParam(r, "slug"), pageNumber(r))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	page, err := s.renderPage(ctx, feed.Page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupFeedView{Group: toGroupView(feed.Group), Page: page})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := ""
	if u, ok := auth.PrincipalFrom(ctx); ok {
		viewerID = u.ID
	}
	feed, err := s.svc.ProfileFeed(ctx, chi.URLParam(r, "username"), pageNumber(r), viewerID)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	page, err := s.renderPage(ctx, feed.Page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{Author: toUserView(feed.Author), Following: feed.Following, Page: page})
}

func (s *Server) handlePostDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := s.svc.GetPost(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	comments, err := s.svc.ListComments(ctx, post.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	posts, err := s.renderPosts(ctx, []*domain.Post{post})
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	commentViews, err := s.renderComments(ctx, comments)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postDetailView{Post: posts[0], Comments: commentViews})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	var form postForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if _, err := s.svc.CreatePost(r.Context(), user.ID, form.input()); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	seeOther(w, r, profileURL(user.Username))
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var form postForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if _, err := s.svc.EditPost(r.Context(), id, principal(r).ID, form.input()); err != nil {
		s.writeError(w, r, err, postURL(id))
		return
	}
	seeOther(w, r, postURL(id))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := principal(r)
	if err := s.svc.DeletePost(r.Context(), id, user.ID); err != nil {
		s.writeError(w, r, err, postURL(id))
		return
	}
	seeOther(w, r, profileURL(user.Username))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var form commentForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if _, err := s.svc.AddComment(r.Context(), id, principal(r).ID, form.Text); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	seeOther(w, r, postURL(id))
}

func (s *Server) handleFollowIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feed, err := s.svc.FollowingFeed(ctx, principal(r).ID, pageNumber(r))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	page, err := s.renderPage(ctx, feed)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, s.svc.Follow)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, s.svc.Unfollow)
}

func (s *Server) changeFollow(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, userID, authorID string) error) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")
	author, err := s.svc.UserByUsername(ctx, username)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if err := change(ctx, principal(r).ID, author.ID); err != nil {
		s.writeError(w, r, err, profileURL(username))
		return
	}
	seeOther(w, r, profileURL(username))
}
