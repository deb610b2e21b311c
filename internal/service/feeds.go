package service

import (
	"context"
	"fmt"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/pagination"
	"github.com/UkralStul/yatube/internal/storage"
)

// PostPage - одна страница ленты.
type PostPage = pagination.Page[*domain.Post]

// GroupFeed - группа вместе со страницей ее постов.
type GroupFeed struct {
	Group *domain.Group
	Page  *PostPage
}

// ProfileFeed - автор, страница его постов и признак подписки зрителя.
type ProfileFeed struct {
	Author    *domain.User
	Following bool
	Page      *PostPage
}

func (s *Service) feed(ctx context.Context, filter storage.PostFilter, number int) (*PostPage, error) {
	total, err := s.store.CountPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count feed: %w", err)
	}
	w := s.pager.Resolve(total, number)
	posts, err := s.store.ListPosts(ctx, filter, w.Limit, w.Offset)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	return pagination.NewPage(posts, w, total), nil
}

// GlobalFeed листает все посты, новые первыми.
func (s *Service) GlobalFeed(ctx context.Context, page int) (*PostPage, error) {
	return s.feed(ctx, storage.PostFilter{}, page)
}

// GroupFeed листает посты группы со слагом slug.
func (s *Service) GroupFeed(ctx context.Context, slug string, page int) (*GroupFeed, error) {
	group, err := s.store.GetGroupBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	p, err := s.feed(ctx, storage.PostFilter{GroupID: group.ID}, page)
	if err != nil {
		return nil, err
	}
	return &GroupFeed{Group: group, Page: p}, nil
}

// ProfileFeed листает посты username. viewerID пуст для анонимов, которые ни
// на кого не подписаны.
func (s *Service) ProfileFeed(ctx context.Context, username string, page int, viewerID string) (*ProfileFeed, error) {
	author, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := s.feed(ctx, storage.PostFilter{AuthorID: author.ID}, page)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != "" {
		if following, err = s.store.FollowExists(ctx, viewerID, author.ID); err != nil {
			return nil, fmt.Errorf("profile following: %w", err)
		}
	}
	return &ProfileFeed{Author: author, Following: following, Page: p}, nil
}

// FollowingFeed листает посты авторов, на которых подписан userID.
func (s *Service) FollowingFeed(ctx context.Context, userID string, page int) (*PostPage, error) {
	return s.feed(ctx, storage.PostFilter{FollowerID: userID}, page)
}
