package domain

import "time"

// JobStatus enumerates the job lifecycle states. Completed and Failed are
// terminal.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobDownloading JobStatus = "downloading"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one execute-once request to retrieve a specific media item.
// Position is 1-based within the enqueue batch; it drives pacing and ETA
// under the sequential policy and is not globally unique across batches.
type Job struct {
	ID        string
	SessionID string
	ItemID    string
	ItemURL   string
	ItemTitle string
	Format    Format
	Quality   string
	Position  int
	Status    JobStatus
	Progress  int
	Error     string
	Artifact  string
	CreatedAt time.Time
}
