package domain

// Event is one progress notification broadcast to the subscribers of a
// session. It is transient: published once, never stored.
type Event struct {
	Type             string `json:"type"`
	JobID            string `json:"job_id"`
	Progress         *int   `json:"progress,omitempty"`
	SecondsRemaining *int   `json:"seconds_remaining,omitempty"`
	FilePath         string `json:"file_path,omitempty"`
	Error            string `json:"error,omitempty"`
}

func ProgressEvent(jobID string, percent int) Event {
	return Event{Type: "progress", JobID: jobID, Progress: &percent}
}

func WaitingEvent(jobID string, secondsRemaining int) Event {
	return Event{Type: "waiting", JobID: jobID, SecondsRemaining: &secondsRemaining}
}

func CompleteEvent(jobID, filePath string) Event {
	return Event{Type: "complete", JobID: jobID, FilePath: filePath}
}

func ErrorEvent(jobID, message string) Event {
	return Event{Type: "error", JobID: jobID, Error: message}
}
