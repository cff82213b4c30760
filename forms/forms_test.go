package forms

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/apperror"
)

type signup struct {
	Name  string `form:"name" validate:"required,max=5"`
	Email string `form:"email" validate:"required,email"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        signup
		wantCause string
	}{
		{"ok", signup{Name: "ann", Email: "ann@x.com"}, ""},
		{"missing", signup{Email: "ann@x.com"}, "field name failed required"},
		{"too long", signup{Name: "annabelle", Email: "ann@x.com"}, "field name failed max"},
		{"bad email", signup{Name: "ann", Email: "nope"}, "field email failed email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantCause == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsValidationError(err))
			appErr, _ := apperror.FromError(err)
			assert.Equal(t, InvalidFormMessage, appErr.PublicMessage())
			assert.NotContains(t, appErr.PublicMessage(), "name")
			assert.Contains(t, appErr.Err.Error(), tt.wantCause)
		})
	}
}

func TestValue(t *testing.T) {
	body := url.Values{"content": {"  hello  "}}.Encode()
	r := httptest.NewRequest(http.MethodPost, "/create2?q=x", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	assert.Equal(t, "hello", Value(r, "content"))
	assert.Equal(t, "x", Value(r, "q"))
	assert.Equal(t, "", Value(r, "missing"))
}

func TestAge(t *testing.T) {
	age, err := Age("42")
	require.NoError(t, err)
	assert.Equal(t, 42, age)

	_, err = Age("-1")
	assert.True(t, apperror.IsValidationError(err))
	_, err = Age("abc")
	assert.True(t, apperror.IsValidationError(err))
	appErr, _ := apperror.FromError(err)
	assert.Equal(t, InvalidFormMessage, appErr.PublicMessage())
}
