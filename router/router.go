// Package router builds the HTTP handler: global middleware, the public pages,
// the session-guarded pages and file serving.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/auth"
	"github.com/user/socialapp/comments"
	"github.com/user/socialapp/config"
	"github.com/user/socialapp/posts"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/uploads"
	"github.com/user/socialapp/users"
	"github.com/user/socialapp/views"
)

// requestTimeout bounds every request, including store calls made with its context.
const requestTimeout = 30 * time.Second

// New wires services and handlers for s and returns the router.
func New(cfg *config.AppConfig, s store.Store) (http.Handler, error) {
	renderer, err := views.New()
	if err != nil {
		return nil, err
	}
	up, err := uploads.New(cfg.Upload)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	authHandlers := auth.NewHandlers(auth.NewService(s), tokens, renderer)
	postHandler := posts.NewPostHandler(posts.NewPostService(s, up), up, renderer)
	commentHandler := comments.NewCommentHandler(comments.NewCommentService(s))
	userHandlers := users.NewUserHandlers(users.NewUserService(s, up), tokens, up, renderer)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", healthz(s))
	r.Handle(views.StaticPrefix+"*", http.StripPrefix(views.StaticPrefix, http.FileServer(http.FS(views.StaticFiles()))))
	r.Handle(views.UploadsPrefix+"*", http.StripPrefix(views.UploadsPrefix, noDirListing(http.FileServer(http.Dir(up.Dir())))))

	r.Get("/", authHandlers.ShowHome())
	r.Get("/register", authHandlers.ShowRegister())
	r.Post("/register", authHandlers.HandleRegister())
	r.Get("/login", authHandlers.ShowLogin())
	r.Post("/loged", authHandlers.HandleLogin())
	r.Get("/logout", authHandlers.HandleLogout())
	r.Get("/explore", postHandler.HandleExplore())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, s))

		postHandler.RegisterRoutes(r)
		commentHandler.RegisterRoutes(r)
		userHandlers.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperror.Write(w, r, apperror.NewNotFoundError("page not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("method not allowed"))
	})

	return r, nil
}

// recoverer turns a panic into a 500 written through apperror.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				slog.Error("panic while serving request",
					"panic", rvr,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
				)
				apperror.Write(w, r, apperror.NewInternalError("panic while serving request", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func healthz(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := s.Ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}

// noDirListing answers directory paths with 404 instead of an index.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
