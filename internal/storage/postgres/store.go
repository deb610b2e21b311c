package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New подключается к dsn и мигрирует схему.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return Open(db)
}

// Open оборачивает готовое соединение и мигрирует схему.
func Open(db *gorm.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate создает таблицы, индексы и ограничения, включая уникальность
// пары подписки и запрет подписки на себя.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate переводит ошибки драйвера в доменные.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
		switch pgerr.Code {
		case pgerrcode.CheckViolation:
			if pgerr.ConstraintName == domain.SelfFollowConstraint {
				return fmt.Errorf("%s: %w", what, domain.ErrSelfFollow)
			}
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: already exists: %w", what, domain.ErrValidationFailed)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%s: referenced row: %w", what, domain.ErrNotFound)
		case pgerrcode.InvalidTextRepresentation:
			// некорректный uuid означает, что такой записи нет
			return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err, "create user")
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user "+id)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err, "user "+username)
	}
	return &user, nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, translate(err, "create group")
	}
	return group, nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translate(err, "group "+id)
	}
	return &group, nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).First(&group, "slug = ?", slug).Error; err != nil {
		return nil, translate(err, "group "+slug)
	}
	return &group, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if post.PubDate.IsZero() {
		post.PubDate = time.Now().UTC()
	}
	// Ассоциации не сохраняем: автор и группа уже существуют
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return nil, translate(err, "create post")
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err, "post "+id)
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, mutate storage.PostMutation) (*domain.Post, error) {
	var post domain.Post
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, "id = ?", id).Error; err != nil {
			return translate(err, "post "+id)
		}
		stored := post
		if err := mutate(&post); err != nil {
			return err
		}
		post.ID, post.AuthorID, post.PubDate = stored.ID, stored.AuthorID, stored.PubDate
		post.Author, post.Group = nil, nil

		err := tx.Model(&post).
			Select("text", "group_id", "image").
			Updates(map[string]any{"text": post.Text, "group_id": post.GroupID, "image": post.Image}).
			Error
		return translate(err, "update post "+id)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&domain.Post{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "delete post "+id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) filtered(ctx context.Context, f storage.PostFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.Post{})
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.FollowerID != "" {
		following := s.db.Model(&domain.Follow{}).Select("author_id").Where("user_id = ?", f.FollowerID)
		q = q.Where("author_id IN (?)", following)
	}
	return q
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, limit, offset int) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := s.filtered(ctx, filter).
		Order("pub_date DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "list posts")
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	var n int64
	if err := s.filtered(ctx, filter).Count(&n).Error; err != nil {
		return 0, translate(err, "count posts")
	}
	return int(n), nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if comment.Created.IsZero() {
		comment.Created = time.Now().UTC()
	}
	// Проверяем существование поста и создаем комментарий в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", comment.PostID).Count(&n).Error; err != nil {
			return translate(err, "post "+comment.PostID)
		}
		if n == 0 {
			return fmt.Errorf("post %s: %w", comment.PostID, domain.ErrNotFound)
		}
		return translate(tx.Omit(clause.Associations).Create(comment).Error, "create comment")
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created ASC").
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, "list comments")
	}
	return comments, nil
}

// === Follow Methods ===

// CreateFollow опирается на уникальный индекс пары и check-ограничение,
// поэтому параллельные дубликаты схлопываются в одну строку.
func (s *Store) CreateFollow(ctx context.Context, userID, authorID string) error {
	follow := &domain.Follow{UserID: userID, AuthorID: authorID}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoNothing: true,
		}).
		Create(follow).Error
	return translate(err, "follow "+authorID)
}

func (s *Store) DeleteFollow(ctx context.Context, userID, authorID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&domain.Follow{}).Error
	return translate(err, "unfollow "+authorID)
}

func (s *Store) FollowExists(ctx context.Context, userID, authorID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "follow exists")
	}
	return n > 0, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "load users")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	result := make(map[string]*domain.Group, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var groups []*domain.Group
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, translate(err, "load groups")
	}
	for _, g := range groups {
		result[g.ID] = g
	}
	return result, nil
}
