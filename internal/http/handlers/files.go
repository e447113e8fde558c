package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// ServeArtifact streams a finished artifact through the file retrieval
// facade.
func (a *App) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := a.Store.Resolve(name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}
