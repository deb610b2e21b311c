package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleCommentStream шлет комментарии, добавленные к посту после
// подключения клиента, по одному JSON-объекту на сообщение.
func (s *Server) handleCommentStream(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.LiveStreams.Inc()
	defer s.metrics.LiveStreams.Dec()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	comments := s.observer.Subscribe(ctx, post.ID)

	// Читаем из сокета только чтобы заметить закрытие клиентом
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-comments:
			if !ok {
				return
			}
			if err := s.sendComment(ctx, conn, c); err != nil {
				s.log.Debug("comment stream closed", "post", post.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendComment(ctx context.Context, conn *websocket.Conn, c *domain.Comment) error {
	views, err := s.renderComments(ctx, []*domain.Comment{c})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(views[0])
}
