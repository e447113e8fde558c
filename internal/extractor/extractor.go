// Package extractor defines the boundary to the component that knows how to
// analyze a media URL and fetch the actual bytes. The orchestration core only
// ever talks to the Extractor interface; the yt-dlp implementation lives
// alongside it but is swappable (tests use fakes).
package extractor

import "context"

// RawItem is one entry discovered while probing a URL, before it is turned
// into a session-scoped media item.
type RawItem struct {
	ID        string
	Title     string
	Thumbnail string
	Duration  int
	Views     int64
	URL       string
}

// ProbeResult describes what a URL resolves to: a single item or a
// collection (playlist, channel, profile).
type ProbeResult struct {
	IsCollection    bool
	CollectionTitle string
	Items           []RawItem
}

// RetrieveRequest asks for one item to be fetched into Dir. BaseName is the
// extension-free file name the artifact should carry; the extractor appends
// an extension matching what it actually fetched.
type RetrieveRequest struct {
	URL      string
	Format   Format
	Quality  string
	Dir      string
	BaseName string
}

// Format mirrors the requested retrieval format at the boundary.
type Format string

const (
	FormatBest  Format = "best"
	FormatAudio Format = "audio"
)

// ProgressFunc receives incremental transfer progress. total is zero when
// the overall size is unknown.
type ProgressFunc func(done, total int64)

// Extractor is the external collaborator that performs analysis and
// retrieval. Errors are descriptive and surfaced verbatim to callers.
type Extractor interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	Retrieve(ctx context.Context, req RetrieveRequest, onProgress ProgressFunc) (string, error)
}
