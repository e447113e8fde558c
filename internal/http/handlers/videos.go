package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediagrab/internal/domain"
)

type videosResponse struct {
	Videos  []domain.MediaItem `json:"videos"`
	Page    int                `json:"page"`
	HasMore bool               `json:"has_more"`
	Total   int                `json:"total"`
}

// Videos returns one page of a session's item list.
func (a *App) Videos(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", a.Limits.ResultsPerPage)

	result, err := a.Sessions.GetPage(sessionID, page, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load session")
		return
	}

	a.json(w, http.StatusOK, videosResponse{
		Videos:  result.Items,
		Page:    page,
		HasMore: result.HasMore,
		Total:   result.Total,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
