// Package storage keeps finished artifacts on the local filesystem and
// resolves client-requested names back to paths. Artifact names derive from
// sanitized titles, which can drift slightly from what the client asks for
// after transport encoding, so resolution has a fuzzy fallback.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mediagrab/internal/domain"
)

// fuzzyScanLimit bounds how many directory entries a fallback search will
// look at; resolution is best-effort recovery, never a guarantee.
const fuzzyScanLimit = 4096

const maxTitleLength = 200

// ArtifactStore owns one directory of downloaded artifacts.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore ensures dir exists and roots the store there.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure directory: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// BaseName builds the extension-free artifact name for a job.
func (s *ArtifactStore) BaseName(sessionID, jobID, title string) string {
	return sessionID + "_" + jobID + "_" + SanitizeTitle(title)
}

// Ref converts an artifact path into the reference handed to clients.
func (s *ArtifactStore) Ref(path string) string {
	return "/downloads/" + filepath.Base(path)
}

// Resolve maps a requested artifact name to a path. The exact name is tried
// first; on a miss, a bounded prefix/substring scan over the stored
// artifacts recovers names that diverged during transport encoding. Both
// missing yields domain.ErrNotFound.
func (s *ArtifactStore) Resolve(requested string) (string, error) {
	name, err := cleanName(requested)
	if err != nil {
		return "", err
	}

	exact := filepath.Join(s.dir, name)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	if match := s.fuzzyMatch(name); match != "" {
		return filepath.Join(s.dir, match), nil
	}
	return "", domain.ErrNotFound
}

func (s *ArtifactStore) fuzzyMatch(name string) string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		return ""
	}
	for i, entry := range entries {
		if i >= fuzzyScanLimit {
			break
		}
		if entry.IsDir() {
			continue
		}
		stored := entry.Name()
		storedBase := strings.TrimSuffix(stored, filepath.Ext(stored))
		if strings.HasPrefix(storedBase, base) || strings.HasPrefix(base, storedBase) ||
			strings.Contains(storedBase, base) {
			return stored
		}
	}
	return ""
}

// cleanName rejects anything that could escape the artifact directory.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrNotFound
	}
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." {
		return "", domain.ErrNotFound
	}
	return cleaned, nil
}

var (
	stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	// Letters and numbers in any script survive; Go's \w would keep ASCII
	// only and erase Cyrillic or CJK titles entirely.
	disallowed    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	spacesAndRuns = regexp.MustCompile(`[-\s]+`)
)

// SanitizeTitle turns a media title into a filesystem- and URL-safe slug:
// diacritics are folded to their base letters, everything outside letters,
// numbers and underscores is dropped, and whitespace runs collapse to single
// hyphens.
func SanitizeTitle(title string) string {
	if folded, _, err := transform.String(stripMarks, title); err == nil {
		title = folded
	}
	title = disallowed.ReplaceAllString(title, "")
	title = spacesAndRuns.ReplaceAllString(title, "-")
	title = strings.Trim(title, "-")
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength])
	}
	if title == "" {
		return "untitled"
	}
	return title
}
