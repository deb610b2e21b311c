package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

// fillWithMockData заполняет хранилище тестовыми пользователями, группой,
// постами, комментариями и подпиской.
func fillWithMockData(ctx context.Context, s storage.Storage, log *slog.Logger) error {
	// 1. Пользователи
	users := make(map[string]*domain.User)
	for _, name := range []string{"leo", "auth", "no_name"} {
		u, err := s.CreateUser(ctx, &domain.User{Username: name})
		if err != nil {
			return fmt.Errorf("failed to create user %s: %w", name, err)
		}
		users[name] = u
	}

	// 2. Группа
	group, err := s.CreateGroup(ctx, &domain.Group{
		Title:       "Лев Толстой – зеркало русской революции",
		Slug:        "tolstoy",
		Description: "Группа, посвящённая Льву Толстому",
	})
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	// 3. Посты с группой и без
	post, err := s.CreatePost(ctx, &domain.Post{
		Text:     "Тестовый пост о Yatube. Здесь мы обсуждаем группы, подписки и ленты.",
		AuthorID: users["leo"].ID,
		GroupID:  &group.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	if _, err := s.CreatePost(ctx, &domain.Post{
		Text:     "Пост без группы",
		AuthorID: users["auth"].ID,
	}); err != nil {
		return fmt.Errorf("failed to create post without group: %w", err)
	}

	// 4. Комментарии
	for _, c := range []struct{ author, text string }{
		{"auth", "Отличный пост! Очень информативно."},
		{"leo", "Спасибо! Рад, что вам понравилось."},
	} {
		if _, err := s.CreateComment(ctx, &domain.Comment{
			PostID:   post.ID,
			AuthorID: users[c.author].ID,
			Text:     c.text,
		}); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
	}

	// 5. Подписка no_name на leo
	if err := s.CreateFollow(ctx, users["no_name"].ID, users["leo"].ID); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}

	log.Info("mock data filled", "post", post.ID, "group", group.Slug)
	return nil
}
