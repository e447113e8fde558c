package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Minute

// YtDlp shells out to the yt-dlp binary for analysis and direct-URL
// resolution, then streams the media over plain HTTP so transfer progress
// can be observed byte by byte.
type YtDlp struct {
	binaryPath string
	client     *http.Client
}

// NewYtDlp creates an extractor around the given yt-dlp binary. An empty
// path falls back to "yt-dlp" on PATH.
func NewYtDlp(binaryPath string) *YtDlp {
	if strings.TrimSpace(binaryPath) == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlp{
		binaryPath: binaryPath,
		// Videos can be large; the per-job timeout is enforced by the
		// caller's context.
		client: &http.Client{},
	}
}

type ytdlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	ViewCount  int64   `json:"view_count"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
}

type ytdlpInfo struct {
	ytdlpEntry
	Type    string       `json:"_type"`
	Entries []ytdlpEntry `json:"entries"`
}

// Probe runs a flat-playlist metadata dump and maps it onto the boundary
// types. Entries that carry no usable URL are dropped individually; the
// probe as a whole only fails when yt-dlp does.
func (y *YtDlp) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.binaryPath,
		"-J", "--flat-playlist", "--no-warnings", url)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed: %w, stderr: %s", err, firstLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp probe returned invalid json: %w", err)
	}

	if info.Type == "playlist" || info.Type == "multi_video" {
		result := &ProbeResult{IsCollection: true, CollectionTitle: info.Title}
		for _, entry := range info.Entries {
			item, ok := mapEntry(entry, url)
			if !ok {
				continue
			}
			result.Items = append(result.Items, item)
		}
		return result, nil
	}

	item, ok := mapEntry(info.ytdlpEntry, url)
	if !ok {
		return nil, fmt.Errorf("yt-dlp probe returned no usable entry for %s", url)
	}
	return &ProbeResult{Items: []RawItem{item}}, nil
}

func mapEntry(entry ytdlpEntry, fallbackURL string) (RawItem, bool) {
	itemURL := entry.WebpageURL
	if itemURL == "" {
		itemURL = entry.URL
	}
	if itemURL == "" {
		itemURL = fallbackURL
	}
	if itemURL == "" {
		return RawItem{}, false
	}
	title := entry.Title
	if title == "" {
		title = "Unknown Title"
	}
	return RawItem{
		ID:        entry.ID,
		Title:     title,
		Thumbnail: entry.Thumbnail,
		Duration:  int(entry.Duration),
		Views:     entry.ViewCount,
		URL:       itemURL,
	}, true
}

// Retrieve resolves a direct media URL via yt-dlp and streams it to disk,
// reporting transfer progress as bytes arrive. It returns the path of the
// written artifact.
func (y *YtDlp) Retrieve(ctx context.Context, req RetrieveRequest, onProgress ProgressFunc) (string, error) {
	directURL, err := y.directURL(ctx, req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	resp, err := y.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	path := filepath.Join(req.Dir, req.BaseName+extensionFor(req.Format, resp.Header.Get("Content-Type")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer file.Close()

	reader := &countingReader{
		r:          resp.Body,
		total:      resp.ContentLength,
		onProgress: onProgress,
	}
	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// directURL asks yt-dlp for the first downloadable URL matching the format
// selector. Muxed selectors can return separate video and audio URLs; the
// first line wins.
func (y *YtDlp) directURL(ctx context.Context, req RetrieveRequest) (string, error) {
	cmd := exec.CommandContext(ctx, y.binaryPath,
		"-f", formatSelector(req.Format, req.Quality),
		"--get-url", "--no-warnings", "--no-playlist", req.URL)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, firstLine(stderr.String()))
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("yt-dlp returned no url for %s", req.URL)
	}
	return lines[0], nil
}

func formatSelector(format Format, quality string) string {
	if format == FormatAudio {
		return "bestaudio/best"
	}
	if quality != "" {
		height := strings.TrimSuffix(quality, "p")
		return fmt.Sprintf("best[height<=%s]/best", height)
	}
	return "best"
}

func extensionFor(format Format, contentType string) string {
	switch {
	case strings.Contains(contentType, "audio/mpeg"):
		return ".mp3"
	case strings.Contains(contentType, "audio/mp4"), strings.Contains(contentType, "audio/x-m4a"):
		return ".m4a"
	case strings.Contains(contentType, "audio/webm"):
		return ".webm"
	case strings.Contains(contentType, "video/webm"):
		return ".webm"
	case format == FormatAudio:
		return ".m4a"
	default:
		return ".mp4"
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

type countingReader struct {
	r          io.Reader
	total      int64
	done       int64
	onProgress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.done += int64(n)
		if c.onProgress != nil {
			total := c.total
			if total < 0 {
				total = 0
			}
			c.onProgress(c.done, total)
		}
	}
	return n, err
}
