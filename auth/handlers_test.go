package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/forms"
	"github.com/user/socialapp/store/memstore"
	"github.com/user/socialapp/views"
)

func newTestHandlers(t *testing.T) (*Handlers, *memstore.Store, *TokenManager) {
	t.Helper()
	renderer, err := views.New()
	require.NoError(t, err)
	s := memstore.New()
	m := newTestTokenManager()
	return NewHandlers(NewService(s), m, renderer), s, m
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registrationForm() url.Values {
	return url.Values{
		"name":     {"Alice"},
		"username": {"alice"},
		"age":      {"30"},
		"email":    {"Alice@X.com"},
		"password": {"s3cret"},
	}
}

func TestHandleRegister(t *testing.T) {
	h, s, m := newTestHandlers(t)
	ctx := context.Background()

	rec := postForm(h.HandleRegister(), "/register", registrationForm())
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	user, err := s.UserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", user.Email, "stored lowercased")
	assert.Equal(t, 30, user.Age)
	assert.True(t, CheckPassword(user.PasswordHash, "s3cret"))
	assert.Equal(t, "default.png", user.ProfileImage)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	claims, err := m.Parse(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", claims.Email)

	t.Run("duplicate", func(t *testing.T) {
		rec := postForm(h.HandleRegister(), "/register", registrationForm())
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestHandleRegisterRejectsIncompleteForms(t *testing.T) {
	for _, field := range []string{"name", "username", "age", "email", "password"} {
		t.Run("missing "+field, func(t *testing.T) {
			h, s, _ := newTestHandlers(t)
			form := registrationForm()
			form.Del(field)

			rec := postForm(h.HandleRegister(), "/register", form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, forms.InvalidFormMessage, rec.Body.String())

			n, err := s.CountUsers(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}

	t.Run("negative age", func(t *testing.T) {
		h, _, _ := newTestHandlers(t)
		form := registrationForm()
		form.Set("age", "-3")
		assert.Equal(t, http.StatusBadRequest, postForm(h.HandleRegister(), "/register", form).Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		h, _, _ := newTestHandlers(t)
		form := registrationForm()
		form.Set("email", "alice")
		assert.Equal(t, http.StatusBadRequest, postForm(h.HandleRegister(), "/register", form).Code)
	})
}

func TestHandleLogin(t *testing.T) {
	h, _, m := newTestHandlers(t)
	require.Equal(t, http.StatusFound, postForm(h.HandleRegister(), "/register", registrationForm()).Code)

	t.Run("correct credentials", func(t *testing.T) {
		rec := postForm(h.HandleLogin(), "/loged", url.Values{"email": {"alice@x.com"}, "password": {"s3cret"}})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/profile", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		claims, err := m.Parse(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "alice@x.com", claims.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postForm(h.HandleLogin(), "/loged", url.Values{"email": {"alice@x.com"}, "password": {"nope"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := postForm(h.HandleLogin(), "/loged", url.Values{"email": {"bob@x.com"}, "password": {"s3cret"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestHandleLogout(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleLogout().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
}

func TestPublicPagesRender(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	for path, handler := range map[string]http.HandlerFunc{
		"/":         h.ShowHome(),
		"/register": h.ShowRegister(),
		"/login":    h.ShowLogin(),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "<form", path)
	}
}
