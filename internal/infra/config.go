package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DownloadDir        string
	YtDlpPath          string
	Workers            int
	DownloadPolicy     string
	InterJobDelaySecs  int
	QueueCapacity      int
	JobTimeout         time.Duration
	MaxPlaylistSize    int
	ResultsPerPage     int
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	SessionTTL         time.Duration
	EventBuffer        int
	GeoIPDBPath        string
	CORSOrigins        []string
	HTTPReadTimeout    time.Duration
	// Artifact responses and WebSocket sessions are long-lived; zero means
	// no write timeout.
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DownloadDir:        getEnv("DOWNLOAD_DIR", "/tmp/downloads"),
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		Workers:            getEnvInt("MAX_CONCURRENT_DOWNLOADS", 4),
		DownloadPolicy:     getEnv("DOWNLOAD_POLICY", "parallel"),
		InterJobDelaySecs:  getEnvInt("INTER_JOB_DELAY_SECONDS", 5),
		QueueCapacity:      getEnvInt("QUEUE_CAPACITY", 0),
		JobTimeout:         time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 1800)),
		MaxPlaylistSize:    getEnvInt("MAX_PLAYLIST_SIZE", 1000),
		ResultsPerPage:     getEnvInt("RESULTS_PER_PAGE", 20),
		RateLimitPerWindow: getEnvInt("RATE_LIMIT_PER_WINDOW", 30),
		RateLimitWindow:    time.Second * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 3600)),
		SessionTTL:         time.Second * time.Duration(getEnvInt("SESSION_TTL_SECONDS", 0)),
		EventBuffer:        getEnvInt("EVENT_BUFFER", 256),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:        getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DownloadPolicy != "parallel" && cfg.DownloadPolicy != "sequential" {
		return nil, fmt.Errorf("DOWNLOAD_POLICY must be parallel or sequential, got %q", cfg.DownloadPolicy)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_DOWNLOADS must be at least 1")
	}
	if cfg.MaxPlaylistSize < 1 {
		return nil, fmt.Errorf("MAX_PLAYLIST_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
