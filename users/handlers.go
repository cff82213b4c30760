package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/auth"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
	"github.com/user/socialapp/uploads"
	"github.com/user/socialapp/views"
)

// UserHandlers serves the account pages. All of them need a session.
type UserHandlers struct {
	service *UserService
	tokens  *auth.TokenManager
	uploads *uploads.Store
	views   *views.Renderer
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(service *UserService, tokens *auth.TokenManager, up *uploads.Store, renderer *views.Renderer) *UserHandlers {
	return &UserHandlers{service: service, tokens: tokens, uploads: up, views: renderer}
}

// RegisterRoutes mounts the account routes.
func (h *UserHandlers) RegisterRoutes(router chi.Router) {
	router.Get("/profile", h.HandleGetProfile())
	router.Get("/profile/edit", h.ShowEditProfile())
	router.Post("/profile/update", h.HandleUpdateProfile())
	router.Get("/profilepic/upload", h.ShowUpload())
	router.Post("/upload", h.HandleUpload())
	router.Get("/settings", h.ShowSettings())
	router.Post("/deleteaccount", h.HandleDeleteAccount())
	router.Get("/follow/{username}", h.HandleFollow())
	router.Get("/unfollow/{username}", h.HandleUnfollow())
}

// withUser adapts a handler that needs the session user.
func withUser(fn func(w http.ResponseWriter, r *http.Request, user *store.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		fn(w, r, user)
	}
}

// HandleGetProfile renders the signed-in user with their posts.
func (h *UserHandlers) HandleGetProfile() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		profile, err := h.service.GetProfile(r.Context(), user)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		h.views.Page(w, r, views.PageProfile, views.ProfileData{User: profile.User, Posts: profile.Posts})
	})
}

// ShowEditProfile renders the profile form filled with the current values.
func (h *UserHandlers) ShowEditProfile() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		h.views.Page(w, r, views.PageEditProfile, views.UserData{User: user})
	})
}

// HandleUpdateProfile saves the profile form. When the email changes the session
// is reissued for the new address, since sessions are keyed by email.
func (h *UserHandlers) HandleUpdateProfile() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		updated, err := h.service.UpdateProfile(r.Context(), user, NewUpdateProfileRequest(r))
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		if updated.Email != user.Email {
			if err := h.tokens.StartSession(w, updated.Email); err != nil {
				apperror.Write(w, r, apperror.NewInternalError("failed to reissue session", err))
				return
			}
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	})
}

// ShowUpload renders the profile picture form.
func (h *UserHandlers) ShowUpload() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		h.views.Page(w, r, views.PageProfilePicUpload, views.UserData{User: user})
	})
}

// HandleUpload replaces the profile picture with the "image" file. A submission
// without a file changes nothing.
func (h *UserHandlers) HandleUpload() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+1<<20)
		name, err := h.uploads.SaveFormFile(r, "image")
		if err != nil {
			apperror.Write(w, r, uploads.AppError(err))
			return
		}
		if name != "" {
			if err := h.service.SetProfileImage(r.Context(), user, name); err != nil {
				if rmErr := h.uploads.Remove(name); rmErr != nil {
					slog.Warn("failed to remove unused profile image", "user_id", user.ID, "file", name, "error", rmErr)
				}
				apperror.Write(w, r, err)
				return
			}
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	})
}

// ShowSettings renders the account settings page.
func (h *UserHandlers) ShowSettings() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		h.views.Page(w, r, views.PageSettings, views.UserData{User: user})
	})
}

// HandleDeleteAccount deletes the account and everything it owns, ends the session
// and sends the client home.
func (h *UserHandlers) HandleDeleteAccount() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		if err := h.service.DeleteAccount(r.Context(), user); err != nil {
			apperror.Write(w, r, err)
			return
		}
		h.tokens.EndSession(w)
		http.Redirect(w, r, "/", http.StatusFound)
	})
}

// HandleFollow adds the user named in the path to the current user's following
// list. Following yourself is rejected with 400.
func (h *UserHandlers) HandleFollow() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		if err := h.service.Follow(r.Context(), user, chi.URLParam(r, "username")); err != nil {
			apperror.Write(w, r, err)
			return
		}
		forms.RedirectBack(w, r, "/profile")
	})
}

// HandleUnfollow removes the user named in the path from the following list.
func (h *UserHandlers) HandleUnfollow() http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		if err := h.service.Unfollow(r.Context(), user, chi.URLParam(r, "username")); err != nil {
			apperror.Write(w, r, err)
			return
		}
		forms.RedirectBack(w, r, "/profile")
	})
}
