package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mediagrab/internal/domain"
	"mediagrab/internal/extractor"
	"mediagrab/internal/session"
)

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	SessionID     string `json:"session_id"`
	IsPlaylist    bool   `json:"is_playlist"`
	TotalVideos   int    `json:"total_videos"`
	PlaylistTitle string `json:"playlist_title,omitempty"`
}

// Analyze probes a URL and records the resulting item list as a new session.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "url cannot be empty")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		a.error(w, http.StatusBadRequest, "bad_request", "url must start with http:// or https://")
		return
	}

	url := domain.NormalizeURL(req.URL)
	platform := domain.DetectPlatform(url)
	a.Log.Info().Str("url", url).Str("platform", string(platform)).Msg("analyzing url")

	probe, err := a.Extractor.Probe(r.Context(), url)
	if err != nil {
		a.Log.Error().Err(err).Str("url", url).Msg("probe failed")
		a.error(w, http.StatusBadRequest, "extraction_failed", err.Error())
		return
	}

	items := make([]domain.MediaItem, 0, len(probe.Items))
	for _, raw := range probe.Items {
		if len(items) >= a.Limits.MaxPlaylistSize {
			break
		}
		items = append(items, mediaItemFrom(raw, platform))
	}

	sessionID := a.Sessions.Create(items, session.Meta{
		SourceURL:     url,
		Platform:      platform,
		IsPlaylist:    probe.IsCollection,
		PlaylistTitle: probe.CollectionTitle,
	})

	a.json(w, http.StatusOK, analyzeResponse{
		SessionID:     sessionID,
		IsPlaylist:    probe.IsCollection,
		TotalVideos:   len(items),
		PlaylistTitle: probe.CollectionTitle,
	})
}

func mediaItemFrom(raw extractor.RawItem, platform domain.Platform) domain.MediaItem {
	id := raw.ID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	return domain.MediaItem{
		ID:        id,
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Duration:  raw.Duration,
		Views:     raw.Views,
		URL:       raw.URL,
		Platform:  platform,
	}
}
