package posts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/auth"
	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/uploads"
	"github.com/user/socialapp/views"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 1 << 20

// PostHandler serves the post pages.
type PostHandler struct {
	service     *PostService
	uploads     *uploads.Store
	views       *views.Renderer
	maxBodySize int64
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(service *PostService, up *uploads.Store, renderer *views.Renderer) *PostHandler {
	return &PostHandler{
		service:     service,
		uploads:     up,
		views:       renderer,
		maxBodySize: up.MaxBytes() + multipartMemory,
	}
}

// RegisterRoutes mounts the routes that need a session.
func (h *PostHandler) RegisterRoutes(router chi.Router) {
	router.Post("/create2", h.HandleCreate())
	router.Post("/delete/{id}", h.HandleDelete())
	router.Get("/like/{id}", h.HandleLike())
	router.Get("/edit/{id}", h.ShowEdit())
	router.Post("/edit/{id}", h.HandleEdit())
	router.Get("/search", h.HandleSearch())
}

// HandleCreate stores a new post with an optional image from the "image" field.
func (h *PostHandler) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			if err := uploads.FormError(err); errors.Is(err, uploads.ErrTooLarge) {
				apperror.Write(w, r, uploads.AppError(err))
				return
			}
			apperror.Write(w, r, apperror.NewBadRequestError("could not read the submitted form", err))
			return
		}

		req := ContentRequest{Content: forms.Value(r, "content")}
		if err := forms.Validate(req); err != nil {
			apperror.Write(w, r, err)
			return
		}

		image, err := h.uploads.SaveFormFile(r, "image")
		if err != nil {
			apperror.Write(w, r, uploads.AppError(err))
			return
		}

		if _, err := h.service.Create(r.Context(), user, req, image); err != nil {
			if rmErr := h.uploads.Remove(image); rmErr != nil {
				slog.Warn("failed to remove image of rejected post", "file", image, "error", rmErr)
			}
			apperror.Write(w, r, err)
			return
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleDelete removes a post the current user owns.
func (h *PostHandler) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
			apperror.Write(w, r, err)
			return
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleLike toggles the current user's like and returns to the previous page.
func (h *PostHandler) HandleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		if _, err := h.service.ToggleLike(r.Context(), user, chi.URLParam(r, "id")); err != nil {
			apperror.Write(w, r, err)
			return
		}
		forms.RedirectBack(w, r, "/profile")
	}
}

// ShowEdit renders the edit form of an owned post.
func (h *PostHandler) ShowEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		post, err := h.service.Owned(r.Context(), user, chi.URLParam(r, "id"))
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		h.views.Page(w, r, views.PageEditPost, views.EditPostData{Post: post})
	}
}

// HandleEdit overwrites the content of an owned post.
func (h *PostHandler) HandleEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		req := ContentRequest{Content: forms.Value(r, "content")}
		if err := h.service.UpdateContent(r.Context(), user, chi.URLParam(r, "id"), req); err != nil {
			apperror.Write(w, r, err)
			return
		}
		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleExplore lists all posts. It is public.
func (h *PostHandler) HandleExplore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.Explore(r.Context())
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		h.views.Page(w, r, views.PageExplore, views.ExploreData{Posts: posts})
	}
}

// HandleSearch renders users and posts matching the "q" query parameter.
func (h *PostHandler) HandleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.CurrentUser(r)
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		results, err := h.service.Search(r.Context(), forms.Value(r, "q"))
		if err != nil {
			apperror.Write(w, r, err)
			return
		}
		h.views.Page(w, r, views.PageSearch, views.SearchData{
			Viewer: user,
			Query:  results.Query,
			Users:  results.Users,
			Posts:  results.Posts,
		})
	}
}
