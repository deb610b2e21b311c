// Package httpapi открывает сервис по HTTP с JSON.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/cache"
	"github.com/UkralStul/yatube/internal/dataloader"
	"github.com/UkralStul/yatube/internal/notify"
	"github.com/UkralStul/yatube/internal/service"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Deps - зависимости Server. Для nil Cache, Observer, Metrics и Logger
// берутся значения по умолчанию.
type Deps struct {
	Service  *service.Service
	Store    storage.Storage
	Issuer   *auth.Issuer
	Cache    cache.Cache
	Observer *notify.CommentObserver
	Metrics  *Metrics
	Logger   *slog.Logger
}

type Server struct {
	svc      *service.Service
	store    storage.Storage
	issuer   *auth.Issuer
	cache    cache.Cache
	observer *notify.CommentObserver
	metrics  *Metrics
	log      *slog.Logger
	validate *validator.Validate

	// pingInterval не дает простаивающим потокам комментариев закрыться.
	pingInterval time.Duration
}

func New(d Deps) *Server {
	s := &Server{
		svc:          d.Service,
		store:        d.Store,
		issuer:       d.Issuer,
		cache:        d.Cache,
		observer:     d.Observer,
		metrics:      d.Metrics,
		log:          d.Logger,
		validate:     newValidator(),
		pingInterval: 10 * time.Second,
	}
	if s.cache == nil {
		s.cache = cache.NewMemory(128, cache.DefaultTTL)
	}
	if s.observer == nil {
		s.observer = notify.NewCommentObserver()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Routes собирает роутер.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(func(next http.Handler) http.Handler { return dataloader.Middleware(s.store, next) })

		r.Get("/", s.handleIndex)
		r.Get("/group/{slug}/", s.handleGroup)
		r.Get("/profile/{username}/", s.handleProfile)
		r.Get("/posts/{id}/", s.handlePostDetail)
		r.Get("/posts/{id}/comments/ws", s.handleCommentStream)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Post("/create/", s.handleCreatePost)
			r.Post("/posts/{id}/edit/", s.handleEditPost)
			r.Post("/posts/{id}/delete/", s.handleDeletePost)
			r.Post("/posts/{id}/comment/", s.handleAddComment)
			r.Get("/follow/", s.handleFollowIndex)
			r.Post("/profile/{username}/follow/", s.handleFollow)
			r.Post("/profile/{username}/unfollow/", s.handleUnfollow)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}
