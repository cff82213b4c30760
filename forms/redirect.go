package forms

import (
	"net/http"
	"net/url"
	"strings"
)

// RedirectBack sends the client to the page it came from when the Referer is a
// path on this site, and to fallback otherwise.
func RedirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	http.Redirect(w, r, backTarget(r, fallback), http.StatusFound)
}

func backTarget(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return fallback
	}
	target := u.RequestURI()
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}
