package auth

import (
	"log/slog"
	"net/http"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/views"
)

// Handlers serves the public account pages.
type Handlers struct {
	service *Service
	tokens  *TokenManager
	views   *views.Renderer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *Service, tokens *TokenManager, renderer *views.Renderer) *Handlers {
	return &Handlers{service: service, tokens: tokens, views: renderer}
}

// ShowHome renders the landing page.
func (h *Handlers) ShowHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Page(w, r, views.PageIndex, nil)
	}
}

// ShowRegister renders the sign-up form.
func (h *Handlers) ShowRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Page(w, r, views.PageRegister, nil)
	}
}

// ShowLogin renders the sign-in form. It posts to /loged.
func (h *Handlers) ShowLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Page(w, r, views.PageLogin, nil)
	}
}

// HandleRegister creates the account and signs the new user in.
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.service.Register(r.Context(), NewRegisterRequest(r))
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		slog.Info("user registered", "user_id", user.ID, "username", user.Username)

		if err := h.tokens.StartSession(w, user.Email); err != nil {
			apperror.Write(w, r, apperror.NewInternalError("failed to start session", err))
			return
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleLogin checks the credentials and sets the session cookie.
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.service.Login(r.Context(), NewLoginRequest(r))
		if err != nil {
			apperror.Write(w, r, err)
			return
		}

		if err := h.tokens.StartSession(w, user.Email); err != nil {
			apperror.Write(w, r, apperror.NewInternalError("failed to start session", err))
			return
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleLogout clears the session cookie. Tokens are stateless, so an already
// copied token stays valid until it expires.
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.tokens.EndSession(w)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
