package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/google/uuid"
)

type followKey struct {
	userID, authorID string
}

type storedPost struct {
	post domain.Post
	seq  int64 // порядок вставки при равных pub_date
}

// Store реализует интерфейс Storage в памяти. Чтение отдает копии, так что
// вызывающие не держат ссылок на хранимые сущности.
type Store struct {
	mu sync.RWMutex

	users       map[string]*domain.User
	usersByName map[string]string // username -> id

	groups       map[string]*domain.Group
	groupsBySlug map[string]string // slug -> id

	posts   map[string]*storedPost
	postSeq int64

	comments       map[string]*domain.Comment
	commentsByPost map[string][]string // map[postID][]commentID в порядке создания

	follows map[followKey]struct{}
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:          make(map[string]*domain.User),
		usersByName:    make(map[string]string),
		groups:         make(map[string]*domain.Group),
		groupsBySlug:   make(map[string]string),
		posts:          make(map[string]*storedPost),
		comments:       make(map[string]*domain.Comment),
		commentsByPost: make(map[string][]string),
		follows:        make(map[followKey]struct{}),
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return nil, &domain.ValidationError{Field: "username", Message: "must not be empty"}
	}
	if _, ok := s.usersByName[user.Username]; ok {
		return nil, fmt.Errorf("user %q already exists: %w", user.Username, domain.ErrValidationFailed)
	}
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
	s.usersByName[u.Username] = u.ID
	out := u
	return &out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	out := *s.users[id]
	return &out, nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group.Slug == "" {
		return nil, &domain.ValidationError{Field: "slug", Message: "must not be empty"}
	}
	if _, ok := s.groupsBySlug[group.Slug]; ok {
		return nil, fmt.Errorf("group with slug %q already exists: %w", group.Slug, domain.ErrValidationFailed)
	}
	g := *group
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.groups[g.ID] = &g
	s.groupsBySlug[g.Slug] = g.ID
	out := g
	return &out, nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group with id %s: %w", id, domain.ErrNotFound)
	}
	out := *g
	return &out, nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.groupsBySlug[slug]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", slug, domain.ErrNotFound)
	}
	out := *s.groups[id]
	return &out, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[post.AuthorID]; !ok {
		return nil, fmt.Errorf("author %s: %w", post.AuthorID, domain.ErrNotFound)
	}
	if err := s.checkGroupLocked(post.GroupID); err != nil {
		return nil, err
	}

	p := *post
	p.Author, p.Group = nil, nil
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PubDate.IsZero() {
		p.PubDate = time.Now().UTC()
	}
	s.postSeq++
	s.posts[p.ID] = &storedPost{post: p, seq: s.postSeq}
	out := p
	return &out, nil
}

func (s *Store) checkGroupLocked(groupID *string) error {
	if groupID == nil {
		return nil
	}
	if _, ok := s.groups[*groupID]; !ok {
		return fmt.Errorf("group with id %s: %w", *groupID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}
	out := sp.post
	return &out, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, mutate storage.PostMutation) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}

	// Работаем с копией: при ошибке хранимый пост не меняется
	edited := sp.post
	if err := mutate(&edited); err != nil {
		return nil, err
	}
	edited.ID, edited.AuthorID, edited.PubDate = sp.post.ID, sp.post.AuthorID, sp.post.PubDate
	edited.Author, edited.Group = nil, nil
	if err := s.checkGroupLocked(edited.GroupID); err != nil {
		return nil, err
	}

	sp.post = edited
	out := edited
	return &out, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}
	delete(s.posts, id)
	for _, cID := range s.commentsByPost[id] {
		delete(s.comments, cID)
	}
	delete(s.commentsByPost, id)
	return nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, limit, offset int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterPostsLocked(filter)

	if offset >= len(matched) {
		return []*domain.Post{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*domain.Post, 0, end-offset)
	for _, sp := range matched[offset:end] {
		p := sp.post
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterPostsLocked(filter)), nil
}

// filterPostsLocked возвращает подходящие посты, новые первыми.
func (s *Store) filterPostsLocked(f storage.PostFilter) []*storedPost {
	matched := make([]*storedPost, 0, len(s.posts))
	for _, sp := range s.posts {
		p := &sp.post
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if f.GroupID != "" && (p.GroupID == nil || *p.GroupID != f.GroupID) {
			continue
		}
		if f.FollowerID != "" {
			if _, ok := s.follows[followKey{userID: f.FollowerID, authorID: p.AuthorID}]; !ok {
				continue
			}
		}
		matched = append(matched, sp)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.post.PubDate.Equal(b.post.PubDate) {
			return a.post.PubDate.After(b.post.PubDate)
		}
		return a.seq > b.seq
	})
	return matched
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, fmt.Errorf("post with id %s: %w", comment.PostID, domain.ErrNotFound)
	}
	if _, ok := s.users[comment.AuthorID]; !ok {
		return nil, fmt.Errorf("author %s: %w", comment.AuthorID, domain.ErrNotFound)
	}

	c := *comment
	c.Post, c.Author = nil, nil
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	s.comments[c.ID] = &c
	s.commentsByPost[c.PostID] = append(s.commentsByPost[c.PostID], c.ID)

	out := c
	return &out, nil
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.commentsByPost[postID]
	out := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	// Индекс уже в порядке создания, сортировка нужна только при равных метках
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// === Follow Methods ===

func (s *Store) CreateFollow(ctx context.Context, userID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == authorID {
		return fmt.Errorf("follow %s -> %s: %w", userID, authorID, domain.ErrSelfFollow)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if _, ok := s.users[authorID]; !ok {
		return fmt.Errorf("author %s: %w", authorID, domain.ErrNotFound)
	}
	s.follows[followKey{userID: userID, authorID: authorID}] = struct{}{}
	return nil
}

func (s *Store) DeleteFollow(ctx context.Context, userID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.follows, followKey{userID: userID, authorID: authorID})
	return nil
}

func (s *Store) FollowExists(ctx context.Context, userID, authorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[followKey{userID: userID, authorID: authorID}]
	return ok, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			results[id] = &cp
		}
	}
	return results, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.Group, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			cp := *g
			results[id] = &cp
		}
	}
	return results, nil
}
