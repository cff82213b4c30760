package users

import (
	"net/http"
	"strings"

	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store"
)

// UpdateProfileRequest is the profile edit form. Every field is overwritten.
type UpdateProfileRequest struct {
	Name     string `form:"name" validate:"required,max=100"`
	Username string `form:"username" validate:"required,max=50,excludesall=/?#%"`
	Age      string `form:"age" validate:"required,number"`
	Email    string `form:"email" validate:"required,email,max=254"`
}

// NewUpdateProfileRequest reads the profile form from r.
func NewUpdateProfileRequest(r *http.Request) UpdateProfileRequest {
	return UpdateProfileRequest{
		Name:     forms.Value(r, "name"),
		Username: forms.Value(r, "username"),
		Age:      forms.Value(r, "age"),
		Email:    strings.ToLower(forms.Value(r, "email")),
	}
}

// Profile is a user with their posts resolved, in list order.
type Profile struct {
	User  *store.User
	Posts []store.Post
}
