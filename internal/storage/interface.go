package storage

import (
	"context"

	"github.com/UkralStul/yatube/internal/domain"
)

// PostFilter сужает ListPosts и CountPosts. Пустые поля подходят под все,
// заданные объединяются через AND.
type PostFilter struct {
	GroupID  string
	AuthorID string
	// FollowerID выбирает посты авторов, на которых подписан этот пользователь.
	FollowerID string
}

// PostMutation правит загруженный пост на месте. Ошибка отменяет обновление,
// и сохраненный пост не меняется.
type PostMutation func(post *domain.Post) error

// Storage определяет контракт хранилища. Поиск отсутствующей сущности
// возвращает ошибку, совпадающую с domain.ErrNotFound.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error)
	GetGroupByID(ctx context.Context, id string) (*domain.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error)

	// CreatePost проставляет PubDate текущим временем, если она не задана.
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	// UpdatePost вызывает mutate и атомарно сохраняет результат. ID, AuthorID
	// и PubDate сохраняют прежние значения, что бы ни сделал mutate.
	UpdatePost(ctx context.Context, id string, mutate PostMutation) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	// ListPosts возвращает подходящие посты, новые первыми.
	ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]*domain.Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)

	// CreateComment возвращает domain.ErrNotFound, если поста нет.
	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	// GetCommentsByPostID возвращает комментарии поста, старые первыми.
	GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error)

	// CreateFollow добавляет подписку, если ее еще нет. Подписку на себя
	// хранилище отклоняет с domain.ErrSelfFollow.
	CreateFollow(ctx context.Context, userID, authorID string) error
	DeleteFollow(ctx context.Context, userID, authorID string) error
	FollowExists(ctx context.Context, userID, authorID string) (bool, error)

	// Methods for dataloaders
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error)
}
