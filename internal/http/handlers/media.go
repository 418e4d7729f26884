package handlers

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

// ServeMedia serves stored bytes for a signed URL. It sits outside the auth
// middleware; the HMAC token is the credential.
func (a *App) ServeMedia(w http.ResponseWriter, r *http.Request) {
	ref := storage.Ref(chi.URLParam(r, "*"))
	exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if err != nil {
		a.error(w, http.StatusForbidden, "forbidden", "invalid or expired link")
		return
	}
	if !a.Store.Verify(ref, exp, r.URL.Query().Get("sig")) {
		a.error(w, http.StatusForbidden, "forbidden", "invalid or expired link")
		return
	}
	data, err := a.Store.Read(ref)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "media not found")
		return
	}
	contentType := mime.TypeByExtension(path.Ext(string(ref)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}
