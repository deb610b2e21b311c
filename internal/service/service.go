// Package service реализует посты, комментарии, подписки и ленты поверх
// storage.Storage. Изменяющие операции получают id уже аутентифицированного
// пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/moderation"
	"github.com/UkralStul/yatube/internal/notify"
	"github.com/UkralStul/yatube/internal/pagination"
	"github.com/UkralStul/yatube/internal/storage"
)

// Service - ядро контента и графа подписок.
type Service struct {
	store    storage.Storage
	filter   *moderation.Filter
	pager    pagination.Paginator
	observer *notify.CommentObserver
	now      func() time.Time

	clockMu sync.Mutex
	last    time.Time
}

type Option func(*Service)

// WithModeration подменяет фильтр запрещенных слов.
func WithModeration(f *moderation.Filter) Option {
	return func(s *Service) { s.filter = f }
}

// WithPageSize задает число постов на странице ленты.
func WithPageSize(n int) Option {
	return func(s *Service) { s.pager = pagination.New(n) }
}

// WithCommentObserver публикует в o каждый добавленный комментарий.
func WithCommentObserver(o *notify.CommentObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock подменяет часы, по которым ставятся pub_date и created.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Storage, opts ...Option) *Service {
	s := &Service{
		store:  store,
		filter: moderation.New(),
		pager:  pagination.New(pagination.DefaultPageSize),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize возвращает размер страницы ленты.
func (s *Service) PageSize() int { return s.pager.PerPage }

// timestamp возвращает строго возрастающее время UTC с точностью до
// микросекунд, как хранит PostgreSQL, и порядок создания не теряется.
func (s *Service) timestamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// PostInput - часть поста, которую правит автор.
type PostInput struct {
	Text    string
	GroupID *string
	// При правке nil в Image оставляет текущее вложение.
	Image *string
}

func (s *Service) validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &domain.ValidationError{Field: "text", Message: "must not be empty"}
	}
	if s.filter.ContainsForbiddenWord(text) {
		return &domain.ValidationError{Field: "text", Message: "contains a forbidden word"}
	}
	return nil
}

// checkGroup сообщает о неизвестной группе как об ошибке валидации поля group.
func (s *Service) checkGroup(ctx context.Context, groupID *string) error {
	if groupID == nil {
		return nil
	}
	if _, err := s.store.GetGroupByID(ctx, *groupID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ValidationError{Field: "group", Message: "unknown group"}
		}
		return err
	}
	return nil
}

// === Content Methods ===

// CreatePost публикует пост от имени authorID.
func (s *Service) CreatePost(ctx context.Context, authorID string, in PostInput) (*domain.Post, error) {
	if err := s.validateText(in.Text); err != nil {
		return nil, err
	}
	if err := s.checkGroup(ctx, in.GroupID); err != nil {
		return nil, err
	}

	post, err := s.store.CreatePost(ctx, &domain.Post{
		Text:     in.Text,
		AuthorID: authorID,
		GroupID:  in.GroupID,
		Image:    in.Image,
		PubDate:  s.timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// EditPost меняет текст, группу и картинку поста. Править может только автор,
// остальные получают domain.ErrForbidden, и пост не меняется.
func (s *Service) EditPost(ctx context.Context, postID, editorID string, in PostInput) (*domain.Post, error) {
	// Группу проверяем заранее: внутри мутации обращаться к хранилищу нельзя
	groupErr := s.checkGroup(ctx, in.GroupID)
	if groupErr != nil && !errors.Is(groupErr, domain.ErrValidationFailed) {
		return nil, groupErr
	}

	post, err := s.store.UpdatePost(ctx, postID, func(p *domain.Post) error {
		if p.AuthorID != editorID {
			return fmt.Errorf("edit post %s: %w", postID, domain.ErrForbidden)
		}
		if err := s.validateText(in.Text); err != nil {
			return err
		}
		if groupErr != nil {
			return groupErr
		}
		p.Text = in.Text
		p.GroupID = in.GroupID
		if in.Image != nil {
			p.Image = in.Image
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	return s.store.GetPostByID(ctx, postID)
}

// DeletePost удаляет пост вместе с комментариями. Удалить может только автор.
func (s *Service) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return fmt.Errorf("delete post %s: %w", postID, domain.ErrForbidden)
	}
	return s.store.DeletePost(ctx, postID)
}

// AddComment добавляет комментарий от authorID. Фильтр слов не применяется.
func (s *Service) AddComment(ctx context.Context, postID, authorID, text string) (*domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ValidationError{Field: "text", Message: "must not be empty"}
	}

	comment, err := s.store.CreateComment(ctx, &domain.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Text:     text,
		Created:  s.timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	if s.observer != nil {
		s.observer.Publish(comment)
	}
	return comment, nil
}

// ListComments возвращает комментарии поста, старые первыми.
func (s *Service) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	return s.store.GetCommentsByPostID(ctx, postID)
}

// === User Methods ===

func (s *Service) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

func (s *Service) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// === Follow Methods ===

// Follow подписывает userID на authorID. Повторный вызов ничего не меняет.
func (s *Service) Follow(ctx context.Context, userID, authorID string) error {
	if userID == authorID {
		return domain.ErrSelfFollow
	}
	return s.store.CreateFollow(ctx, userID, authorID)
}

// Unfollow снимает подписку, если она есть.
func (s *Service) Unfollow(ctx context.Context, userID, authorID string) error {
	return s.store.DeleteFollow(ctx, userID, authorID)
}

func (s *Service) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	return s.store.FollowExists(ctx, userID, authorID)
}
