package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/UkralStul/yatube/internal/dataloader"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/pagination"
	"github.com/UkralStul/yatube/internal/service"
)

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type groupView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type postView struct {
	ID      string     `json:"id"`
	Text    string     `json:"text"`
	PubDate time.Time  `json:"pubDate"`
	Author  userView   `json:"author"`
	Group   *groupView `json:"group"`
	Image   *string    `json:"image"`
}

type commentView struct {
	ID      string    `json:"id"`
	PostID  string    `json:"postId"`
	Author  userView  `json:"author"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

type postPageView = pagination.Page[postView]

type groupFeedView struct {
	Group groupView     `json:"group"`
	Page  *postPageView `json:"page"`
}

type profileView struct {
	Author    userView      `json:"author"`
	Following bool          `json:"following"`
	Page      *postPageView `json:"page"`
}

type postDetailView struct {
	Post     postView      `json:"post"`
	Comments []commentView `json:"comments"`
}

func toUserView(u *domain.User) userView {
	return userView{ID: u.ID, Username: u.Username}
}

func toGroupView(g *domain.Group) groupView {
	return groupView{ID: g.ID, Title: g.Title, Slug: g.Slug, Description: g.Description}
}

func (s *Server) loaders(ctx context.Context) *dataloader.Loaders {
	if l := dataloader.For(ctx); l != nil {
		return l
	}
	return dataloader.NewLoaders(s.store)
}

// renderPosts подгружает авторов и группы постов двумя пакетами.
func (s *Server) renderPosts(ctx context.Context, posts []*domain.Post) ([]postView, error) {
	var userIDs, groupIDs []string
	for _, p := range posts {
		userIDs = append(userIDs, p.AuthorID)
		if p.GroupID != nil {
			groupIDs = append(groupIDs, *p.GroupID)
		}
	}

	l := s.loaders(ctx)
	users, err := l.Users(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	groups, err := l.Groups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		v := postView{
			ID:      p.ID,
			Text:    p.Text,
			PubDate: p.PubDate,
			Author:  toUserView(users[p.AuthorID]),
			Image:   p.Image,
		}
		if p.GroupID != nil {
			g := toGroupView(groups[*p.GroupID])
			v.Group = &g
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Server) renderPage(ctx context.Context, page *service.PostPage) (*postPageView, error) {
	views, err := s.renderPosts(ctx, page.Items)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]postView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	return pagination.Map(page, func(p *domain.Post) postView { return byID[p.ID] }), nil
}

func (s *Server) renderComments(ctx context.Context, comments []*domain.Comment) ([]commentView, error) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	users, err := s.loaders(ctx).Users(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load comment authors: %w", err)
	}

	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView{
			ID:      c.ID,
			PostID:  c.PostID,
			Author:  toUserView(users[c.AuthorID]),
			Text:    c.Text,
			Created: c.Created,
		})
	}
	return views, nil
}
