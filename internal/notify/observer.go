// Package notify рассылает новые комментарии живым подписчикам.
package notify

import (
	"context"
	"sync"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/google/uuid"
)

// subscriberBuffer - сколько недоставленных комментариев может накопить
// медленный подписчик, прежде чем следующие для него будут отброшены.
const subscriberBuffer = 16

// CommentObserver хранит каналы для подписчиков на комментарии.
type CommentObserver struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs map[string]map[string]chan *domain.Comment
}

// NewCommentObserver - конструктор для нашего наблюдателя.
func NewCommentObserver() *CommentObserver {
	return &CommentObserver{
		subs: make(map[string]map[string]chan *domain.Comment),
	}
}

// Subscribe доставляет комментарии к postID, пока ctx не завершен, после
// чего закрывает канал.
func (o *CommentObserver) Subscribe(ctx context.Context, postID string) <-chan *domain.Comment {
	ch := make(chan *domain.Comment, subscriberBuffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[postID] == nil {
		o.subs[postID] = make(map[string]chan *domain.Comment)
	}
	o.subs[postID][subID] = ch
	o.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if postSubs, ok := o.subs[postID]; ok {
			delete(postSubs, subID)
			if len(postSubs) == 0 {
				delete(o.subs, postID)
			}
		}
		o.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish без блокировки передает c всем подписчикам его поста.
func (o *CommentObserver) Publish(c *domain.Comment) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[c.PostID] {
		select {
		case ch <- c:
		default:
			// Клиент не успевает читать, пропускаем
		}
	}
}

// Subscribers возвращает число подписчиков postID.
func (o *CommentObserver) Subscribers(postID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[postID])
}
