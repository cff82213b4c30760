package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/store"
)

// UserFinder resolves the account a session belongs to.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*store.User, error)
}

// RequireSession guards pages that need a signed-in user. Without a cookie the
// client is sent to /login. A cookie that fails verification, or that names an
// account which no longer exists, is cleared first.
func RequireSession(tokens *TokenManager, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			claims, err := tokens.Parse(cookie.Value)
			if err != nil {
				slog.Debug("rejected session token", "path", r.URL.Path, "error", err)
				tokens.EndSession(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			user, err := users.UserByEmail(r.Context(), claims.Email)
			if errors.Is(err, store.ErrNotFound) {
				tokens.EndSession(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			if err != nil {
				apperror.Write(w, r, apperror.NewDatabaseError("failed to load session user", err))
				return
			}

			ctx := NewContextWithClaims(r.Context(), claims)
			ctx = NewContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser returns the user attached by RequireSession. It is an internal
// error to call it on an unguarded route.
func CurrentUser(r *http.Request) (*store.User, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return nil, apperror.NewInternalError("no session user in request context", nil)
	}
	return user, nil
}
