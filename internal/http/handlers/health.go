package handlers

import "net/http"

// Health reports liveness plus a coarse view of download activity.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	active, queued := a.Queue.Stats()
	a.json(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"active_downloads": active,
		"queued":           queued,
	})
}

// Root identifies the service.
func (a *App) Root(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"message": "Media Downloader API",
		"version": "1.0.0",
	})
}
