package comments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/auth"
	"github.com/user/socialapp/forms"
)

// CommentHandler serves the comment form submissions.
type CommentHandler struct {
	service CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// RegisterRoutes mounts the comment routes. They need a session.
func (h *CommentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/comment/{postID}", h.addComment)
}

func (h *CommentHandler) addComment(w http.ResponseWriter, r *http.Request) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}

	req := NewCommentRequest{Text: forms.Value(r, "comment")}
	if _, err := h.service.AddComment(r.Context(), chi.URLParam(r, "postID"), user, req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	forms.RedirectBack(w, r, "/profile")
}
