package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediagrab/internal/domain"
)

type progressResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// Progress reports the current state of one job.
func (a *App) Progress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Queue.Job(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	a.json(w, http.StatusOK, progressResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Error:    job.Error,
		FilePath: job.Artifact,
	})
}
