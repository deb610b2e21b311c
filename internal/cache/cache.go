// Package cache хранит готовые снимки страниц в течение фиксированного TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL - сколько живет снимок главной ленты до пересчета.
const DefaultTTL = 20 * time.Second

// Cache - кэш байтов без гарантий. Записи истекают по TTL, заданному при
// создании; явной инвалидации нет.
type Cache interface {
	// Get возвращает ok=false при промахе. Ошибка означает сбой бэкенда, и
	// вызывающий должен пересчитать значение.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Memory - LRU в памяти процесса со сроком жизни каждой записи.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory хранит не больше size записей, каждую в течение ttl.
func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

// Purge удаляет все записи.
func (m *Memory) Purge() {
	m.lru.Purge()
}

// Redis делит снимки между экземплярами сервиса.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis подключается к addr и проверяет соединение.
func NewRedis(ctx context.Context, addr, password string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, prefix: "yatube:", ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
