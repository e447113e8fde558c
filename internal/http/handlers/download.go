package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"mediagrab/internal/domain"
)

type downloadRequest struct {
	SessionID string   `json:"session_id"`
	VideoIDs  []string `json:"video_ids"`
	Format    string   `json:"format"`
	Quality   string   `json:"quality,omitempty"`
}

type queuedJob struct {
	JobID    string `json:"job_id"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

type downloadResponse struct {
	Jobs          []queuedJob `json:"jobs"`
	TotalJobs     int         `json:"total_jobs"`
	EstimatedTime int         `json:"estimated_time"`
}

// Download enqueues retrieval jobs for the selected items of a session.
// Unknown video ids are skipped silently; the batch succeeds with whatever
// remains.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	format := domain.Format(req.Format)
	if req.Format == "" {
		format = domain.FormatBest
	}
	if !domain.ValidFormat(format) {
		a.error(w, http.StatusBadRequest, "bad_request", "format must be best or audio")
		return
	}
	if _, err := a.Sessions.Get(req.SessionID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	var jobs []*domain.Job
	for _, videoID := range req.VideoIDs {
		item, err := a.Sessions.Item(req.SessionID, videoID)
		if err != nil {
			a.Log.Warn().Str("session_id", req.SessionID).Str("video_id", videoID).Msg("skipping unknown video id")
			continue
		}
		jobs = append(jobs, &domain.Job{
			ID:        uuid.NewString(),
			SessionID: req.SessionID,
			ItemID:    item.ID,
			ItemURL:   item.URL,
			ItemTitle: item.Title,
			Format:    format,
			Quality:   req.Quality,
		})
	}

	accepted, estimate, err := a.Queue.EnqueueBatch(jobs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptySelection):
			a.error(w, http.StatusBadRequest, "bad_request", "no known video ids in selection")
		case errors.Is(err, domain.ErrQueueFull):
			a.error(w, http.StatusServiceUnavailable, "queue_full", "download queue is full, try again later")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue jobs")
		}
		return
	}

	// Workers may already be running the batch; the response comes from the
	// enqueue-time snapshots, never from the live jobs.
	resp := downloadResponse{
		Jobs:          make([]queuedJob, len(accepted)),
		TotalJobs:     len(accepted),
		EstimatedTime: estimate,
	}
	for i, job := range accepted {
		resp.Jobs[i] = queuedJob{
			JobID:    job.ID,
			VideoID:  job.ItemID,
			Status:   string(job.Status),
			Position: job.Position,
		}
		a.Log.Info().Str("job_id", job.ID).Str("video_id", job.ItemID).Int("position", job.Position).Msg("queued job")
	}
	a.json(w, http.StatusOK, resp)
}
