package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/domain"
)

// authenticate находит пользователя по bearer-токену. Запрос без токена
// проходит анонимно, а плохой токен или неизвестный пользователь отклоняются.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "malformed authorization header"})
			return
		}

		claims, err := s.issuer.Validate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		user, err := s.store.GetUserByUsername(r.Context(), claims.Username)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unknown user"})
				return
			}
			s.serverError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), user)))
	})
}

// requireUser отклоняет анонимные запросы.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal возвращает текущего пользователя. Вызывать только за requireUser.
func principal(r *http.Request) *domain.User {
	u, _ := auth.PrincipalFrom(r.Context())
	return u
}
