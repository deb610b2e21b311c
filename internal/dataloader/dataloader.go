package dataloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders группирует загрузку авторов и групп в рамках одного запроса.
type Loaders struct {
	UserByID  *dataloader.Loader
	GroupByID *dataloader.Loader
}

// NewLoaders создает загрузчики запроса поверх store.
func NewLoaders(store storage.Storage) *Loaders {
	users := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		found, err := store.GetUsersByIDs(ctx, ids)
		return results(ids, err, func(id string) (interface{}, bool) {
			u, ok := found[id]
			return u, ok
		})
	}
	groups := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		found, err := store.GetGroupsByIDs(ctx, ids)
		return results(ids, err, func(id string) (interface{}, bool) {
			g, ok := found[id]
			return g, ok
		})
	}

	return &Loaders{
		UserByID:  dataloader.NewBatchedLoader(users, dataloader.WithWait(time.Millisecond*1)),
		GroupByID: dataloader.NewBatchedLoader(groups, dataloader.WithWait(time.Millisecond*1)),
	}
}

// results выстраивает результат пакета по порядку ids. Ошибка пакета валит все ключи.
func results(ids []string, err error, lookup func(string) (interface{}, bool)) []*dataloader.Result {
	out := make([]*dataloader.Result, len(ids))
	for i, id := range ids {
		if err != nil {
			out[i] = &dataloader.Result{Error: err}
			continue
		}
		v, ok := lookup(id)
		if !ok {
			out[i] = &dataloader.Result{Error: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
			continue
		}
		out[i] = &dataloader.Result{Data: v}
	}
	return out
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста. Outside Middleware it returns nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// User загружает одного пользователя через пакет.
func (l *Loaders) User(ctx context.Context, id string) (*domain.User, error) {
	v, err := l.UserByID.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

// Group загружает одну группу через пакет.
func (l *Loaders) Group(ctx context.Context, id string) (*domain.Group, error) {
	v, err := l.GroupByID.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	return v.(*domain.Group), nil
}

// Users загружает нескольких пользователей одним пакетом, по id.
func (l *Loaders) Users(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	values, err := loadMany(ctx, l.UserByID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.User, len(values))
	for id, v := range values {
		out[id] = v.(*domain.User)
	}
	return out, nil
}

// Groups загружает несколько групп одним пакетом, по id.
func (l *Loaders) Groups(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	values, err := loadMany(ctx, l.GroupByID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Group, len(values))
	for id, v := range values {
		out[id] = v.(*domain.Group)
	}
	return out, nil
}

func loadMany(ctx context.Context, loader *dataloader.Loader, ids []string) (map[string]interface{}, error) {
	if len(ids) == 0 {
		return map[string]interface{}{}, nil
	}
	values, errs := loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	out := make(map[string]interface{}, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		out[id] = values[i]
	}
	return out, nil
}
