package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"mediagrab/internal/extractor"
	"mediagrab/internal/hub"
	"mediagrab/internal/queue"
	"mediagrab/internal/session"
	"mediagrab/internal/storage"
)

// Limits carries the per-request caps the handlers enforce.
type Limits struct {
	MaxPlaylistSize int
	ResultsPerPage  int
}

// App is the handler container; every dependency is injected at startup so
// no handler reaches for process-wide state.
type App struct {
	Log       zerolog.Logger
	Extractor extractor.Extractor
	Sessions  *session.Registry
	Queue     *queue.Queue
	Hub       *hub.Hub
	Store     *storage.ArtifactStore
	Limits    Limits
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
