package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Engine    EngineConfig
	Harvest   HarvestConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Cache     CacheConfig
	Store     StoreConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the default proxy URL for page loads and asset fetches.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RenderConfig controls how the target page is loaded before harvesting.
type RenderConfig struct {
	// DefaultTimeout bounds the whole render step (navigate + scroll + settle).
	DefaultTimeout time.Duration // default: 60s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay is the pause after auto-scrolling so lazy content can load.
	SettleDelay time.Duration // default: 1.5s

	// BlockedResourceTypes lists resource types the browser never loads.
	// Images, stylesheets and fonts must stay loaded so lazy references
	// are materialised in the DOM. default: ["Media"]
	BlockedResourceTypes []string

	// BlockTrackers stops requests to the tracker deny-list during render.
	BlockTrackers bool // default: true
}

// EngineConfig controls the staged-escalation render dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles the dispatcher. When off only plain rod is used.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier
	// (rod, rod-stealth, http).
	EscalationDelays []time.Duration // default: [0s, 8s, 15s]

	// HTTPTimeout is the deadline for the static HTTP engine.
	HTTPTimeout time.Duration // default: 15s

	// MemoryTTL is how long the winning engine is remembered per domain.
	MemoryTTL time.Duration // default: 24h
}

// HarvestConfig controls asset acquisition for a job.
type HarvestConfig struct {
	// OutputRoot is the directory under which every job directory is created.
	OutputRoot string // default: "./downloads"

	// Workers is the number of concurrent resource resolutions per job (1..16).
	Workers int // default: 8

	// FetchTimeout bounds each individual fetch attempt (primary and fallback).
	FetchTimeout time.Duration // default: 30s

	// MaxAssetBytes caps a single downloaded payload.
	MaxAssetBytes int64 // default: 25 MiB

	// ImageMaxDimension is the longest-side ceiling images are downscaled to.
	ImageMaxDimension int // default: 2500

	// JPEGQuality is the quality used when images are re-encoded lossily.
	JPEGQuality int // default: 80

	// Placeholders substitutes generated payloads for unresolved images and stylesheets.
	Placeholders bool // default: false

	// RespectRobots checks robots.txt before rendering the page.
	RespectRobots bool // default: false

	// UserAgent is sent with asset fetches and the robots.txt lookup.
	UserAgent string

	// CatalogueFile overrides the embedded CDN fallback catalogue (YAML).
	CatalogueFile string

	// TrackersFile overrides the embedded tracker deny-list (YAML).
	TrackersFile string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// JobsConfig controls background harvest job scheduling.
type JobsConfig struct {
	// MaxConcurrent is the number of harvests allowed to run at once.
	MaxConcurrent int // default: 2

	// TTL is how long finished job records are kept by the memory store.
	TTL time.Duration // default: 24h
}

// CacheConfig controls the recent-harvest cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached URL -> job mappings.
	MaxEntries int // default: 1000
}

// StoreConfig selects the job record backend.
type StoreConfig struct {
	// Backend is "memory" or "mongo". default: "memory"
	Backend string

	MongoURI        string // default: "mongodb://localhost:27017"
	MongoDatabase   string // default: "mirror"
	MongoCollection string // default: "jobs"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File, when set, receives a JSON copy of every log record.
	File string
}

// DefaultUserAgent is the Chrome user agent used for asset requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("MIRROR_HOST", "0.0.0.0"),
			Port: envIntOr("MIRROR_PORT", 8080),
			Mode: envOr("MIRROR_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("MIRROR_HEADLESS", true),
			MaxPages:     envIntOr("MIRROR_MAX_PAGES", 4),
			DefaultProxy: os.Getenv("MIRROR_PROXY"),
			NoSandbox:    envBoolOr("MIRROR_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("MIRROR_BROWSER_BIN"),
		},
		Render: RenderConfig{
			DefaultTimeout:       envDurationOr("MIRROR_RENDER_TIMEOUT", 60*time.Second),
			NavigationTimeout:    envDurationOr("MIRROR_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:          envDurationOr("MIRROR_SETTLE_DELAY", 1500*time.Millisecond),
			BlockedResourceTypes: envSliceOr("MIRROR_BLOCKED_RESOURCES", []string{"Media"}),
			BlockTrackers:        envBoolOr("MIRROR_BLOCK_TRACKERS", true),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("MIRROR_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("MIRROR_ESCALATION_DELAYS", []time.Duration{0, 8 * time.Second, 15 * time.Second}),
			HTTPTimeout:       envDurationOr("MIRROR_HTTP_TIMEOUT", 15*time.Second),
			MemoryTTL:         envDurationOr("MIRROR_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Harvest: HarvestConfig{
			OutputRoot:        envOr("MIRROR_OUTPUT_ROOT", "./downloads"),
			Workers:           clamp(envIntOr("MIRROR_WORKERS", 8), 1, 16),
			FetchTimeout:      envDurationOr("MIRROR_FETCH_TIMEOUT", 30*time.Second),
			MaxAssetBytes:     int64(envIntOr("MIRROR_MAX_ASSET_BYTES", 25<<20)),
			ImageMaxDimension: envIntOr("MIRROR_IMAGE_MAX_DIMENSION", 2500),
			JPEGQuality:       clamp(envIntOr("MIRROR_JPEG_QUALITY", 80), 1, 100),
			Placeholders:      envBoolOr("MIRROR_PLACEHOLDERS", false),
			RespectRobots:     envBoolOr("MIRROR_RESPECT_ROBOTS", false),
			UserAgent:         envOr("MIRROR_USER_AGENT", DefaultUserAgent),
			CatalogueFile:     os.Getenv("MIRROR_CATALOGUE_FILE"),
			TrackersFile:      os.Getenv("MIRROR_TRACKERS_FILE"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("MIRROR_AUTH_ENABLED", true),
			APIKeys: envSliceOr("MIRROR_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("MIRROR_RATE_RPS", 2.0),
			Burst:             envIntOr("MIRROR_RATE_BURST", 5),
		},
		Jobs: JobsConfig{
			MaxConcurrent: envIntOr("MIRROR_MAX_JOBS", 2),
			TTL:           envDurationOr("MIRROR_JOB_TTL", 24*time.Hour),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("MIRROR_CACHE_MAX_ENTRIES", 1000),
		},
		Store: StoreConfig{
			Backend:         envOr("MIRROR_STORE", "memory"),
			MongoURI:        envOr("MIRROR_MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:   envOr("MIRROR_MONGO_DB", "mirror"),
			MongoCollection: envOr("MIRROR_MONGO_COLLECTION", "jobs"),
		},
		Log: LogConfig{
			Level:  envOr("MIRROR_LOG_LEVEL", "info"),
			Format: envOr("MIRROR_LOG_FORMAT", "json"),
			File:   os.Getenv("MIRROR_LOG_FILE"),
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
