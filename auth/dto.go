package auth

import (
	"net/http"
	"strings"

	"github.com/user/socialapp/forms"
)

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Name     string `form:"name" validate:"required,max=100"`
	Username string `form:"username" validate:"required,max=50,excludesall=/?#%"`
	Age      string `form:"age" validate:"required,number"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,max=72"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// NewRegisterRequest reads the registration form from r. The password is kept
// verbatim; the other fields are trimmed.
func NewRegisterRequest(r *http.Request) RegisterRequest {
	return RegisterRequest{
		Name:     forms.Value(r, "name"),
		Username: forms.Value(r, "username"),
		Age:      forms.Value(r, "age"),
		Email:    strings.ToLower(forms.Value(r, "email")),
		Password: r.FormValue("password"),
	}
}

// NewLoginRequest reads the login form from r.
func NewLoginRequest(r *http.Request) LoginRequest {
	return LoginRequest{
		Email:    strings.ToLower(forms.Value(r, "email")),
		Password: r.FormValue("password"),
	}
}
