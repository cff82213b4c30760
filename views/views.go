// Package views renders the HTML pages. Templates and static assets are embedded
// in the binary; every page is parsed together with layout.html.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/store"
)

// Page names.
const (
	PageIndex            = "index"
	PageRegister         = "register"
	PageLogin            = "login"
	PageProfile          = "profile"
	PageEditPost         = "edit"
	PageProfilePicUpload = "profilepicupload"
	PageEditProfile      = "editprofile"
	PageExplore          = "explore"
	PageSearch           = "search"
	PageSettings         = "settings"
)

const (
	// UploadsPrefix is the URL path uploaded files are served under.
	UploadsPrefix = "/uploads/"
	// StaticPrefix is the URL path of the embedded assets.
	StaticPrefix = "/static/"

	defaultAvatar = StaticPrefix + "default-avatar.svg"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ProfileData is the data of the profile page.
type ProfileData struct {
	User  *store.User
	Posts []store.Post
}

// UserData is the data of pages showing only the current user.
type UserData struct {
	User *store.User
}

// EditPostData is the data of the post edit form.
type EditPostData struct {
	Post *store.Post
}

// ExploreData is the data of the explore page.
type ExploreData struct {
	Posts []store.PostView
}

// SearchData is the data of the search results page.
type SearchData struct {
	Viewer *store.User
	Query  string
	Users  []store.User
	Posts  []store.PostView
}

// Renderer executes the parsed page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every embedded page.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"image": ImageURL,
		"date":  formatDate,
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with the given status. The page is executed into a buffer
// first so a template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render page %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Page renders page with status 200, reporting failures through apperror.
func (r *Renderer) Page(w http.ResponseWriter, req *http.Request, page string, data any) {
	if err := r.Render(w, http.StatusOK, page, data); err != nil {
		apperror.Write(w, req, apperror.NewInternalError("failed to render page", err))
	}
}

// StaticFiles returns the embedded assets, rooted so that "app.css" resolves.
func StaticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// ImageURL maps a stored image reference to its URL.
func ImageURL(name string) string {
	if name == "" || name == store.DefaultProfileImage {
		return defaultAvatar
	}
	return UploadsPrefix + name
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}
