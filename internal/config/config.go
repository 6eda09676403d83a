package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string

	// Secrets (optional; when set, /api and /metrics require X-Internal-Auth)
	InternalSharedSecret string

	// Limits
	MaxUploadBytes       int64
	MaxMultipartMemory   int64
	MaxTextBytes         int64
	MaxPDFBytes          int64
	MaxDocxBytes         int64
	MaxZipEntryBytes     int64
	MaxZipMetadataBytes  int64
	MaxPDFPages          int
	MaxStopwordsPerQuery int

	// Concurrency
	MaxConcurrentRequests int64
	MaxConnections        int

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// Request timeouts
	RequestTimeout time.Duration

	// PDF extraction
	PDFEngine        string
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int

	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the client address
	// for rate limiting. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool

	// Word cloud defaults (used when request options omit values)
	DefaultWidth       int
	DefaultHeight      int
	DefaultMaxWords    int
	DefaultResolution  int
	DefaultImageFormat string
	MinWidth           int
	MaxWidth           int
	MinHeight          int
	MaxHeight          int
	MinResolution      int
	MaxResolution      int
	MaxWordsLimit      int
	TopWordsLimit      int
	BackgroundColor    string
	// MaxOutputPixels caps width*height after resolution scaling.
	MaxOutputPixels int64

	// Stopwords
	UseBaselineStopwords bool
	StopwordsFile        string

	// Logging
	LogLevel  string
	LogFormat string
}

var pdfEngines = map[string]bool{"auto": true, "pdfcpu": true, "ledongthuc": true, "poppler": true}

var imageFormats = map[string]bool{"png": true, "jpeg": true, "jpg": true, "svg": true, "pdf": true}

func Load() Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	return Config{
		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxUploadBytes:       envInt64("MAX_UPLOAD_BYTES", 25<<20),
		MaxMultipartMemory:   envInt64("MAX_MULTIPART_MEMORY", 8<<20),
		MaxTextBytes:         envInt64("MAX_TEXT_BYTES", 10<<20),
		MaxPDFBytes:          envInt64("MAX_PDF_BYTES", 25<<20),
		MaxDocxBytes:         envInt64("MAX_DOCX_BYTES", 25<<20),
		MaxZipEntryBytes:     envInt64("MAX_ZIP_ENTRY_BYTES", 64<<20),
		MaxZipMetadataBytes:  envInt64("MAX_ZIP_METADATA_BYTES", 1<<20),
		MaxPDFPages:          envInt("MAX_PDF_PAGES", 2000),
		MaxStopwordsPerQuery: envInt("MAX_STOPWORDS_PER_QUERY", 500),

		MaxConcurrentRequests: envInt64("MAX_CONCURRENT_REQUESTS", 8),
		MaxConnections:        envInt("MAX_CONNECTIONS", 256),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 15*time.Second),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 90*time.Second),

		PDFEngine:        strings.ToLower(envStr("PDF_ENGINE", "auto")),
		PDFInfoTimeout:   envDur("PDFINFO_TIMEOUT", 5*time.Second),
		PDFToTextTimeout: envDur("PDFTOTEXT_TIMEOUT", 10*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", time.Second),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		TrustProxyHeaders: envBool("TRUST_PROXY_HEADERS", false),

		DefaultWidth:       envInt("DEFAULT_WIDTH", 1200),
		DefaultHeight:      envInt("DEFAULT_HEIGHT", 800),
		DefaultMaxWords:    envInt("DEFAULT_MAX_WORDS", 200),
		DefaultResolution:  envInt("DEFAULT_RESOLUTION", 300),
		DefaultImageFormat: strings.ToLower(envStr("DEFAULT_IMAGE_FORMAT", "png")),
		MinWidth:           envInt("MIN_WIDTH", 400),
		MaxWidth:           envInt("MAX_WIDTH", 2000),
		MinHeight:          envInt("MIN_HEIGHT", 200),
		MaxHeight:          envInt("MAX_HEIGHT", 2000),
		MinResolution:      envInt("MIN_RESOLUTION", 100),
		MaxResolution:      envInt("MAX_RESOLUTION", 500),
		MaxWordsLimit:      envInt("MAX_WORDS_LIMIT", 1000),
		TopWordsLimit:      envInt("TOP_WORDS_LIMIT", 50),
		BackgroundColor:    envStr("BACKGROUND_COLOR", "#ffffff"),
		MaxOutputPixels:    envInt64("MAX_OUTPUT_PIXELS", 36_000_000),

		UseBaselineStopwords: envBool("USE_BASELINE_STOPWORDS", true),
		StopwordsFile:        envStr("STOPWORDS_FILE", ""),

		LogLevel:  strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envStr("LOG_FORMAT", "text")),
	}
}

func (c Config) Validate() error {
	if s := strings.TrimSpace(c.InternalSharedSecret); s != "" && len(s) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters when set")
	}
	if !pdfEngines[c.PDFEngine] {
		return fmt.Errorf("PDF_ENGINE %q is not one of auto, pdfcpu, ledongthuc, poppler", c.PDFEngine)
	}
	if !imageFormats[c.DefaultImageFormat] {
		return fmt.Errorf("DEFAULT_IMAGE_FORMAT %q is not one of png, jpeg, svg, pdf", c.DefaultImageFormat)
	}
	if c.MinWidth > c.MaxWidth {
		return fmt.Errorf("MIN_WIDTH (%d) exceeds MAX_WIDTH (%d)", c.MinWidth, c.MaxWidth)
	}
	if c.MinHeight > c.MaxHeight {
		return fmt.Errorf("MIN_HEIGHT (%d) exceeds MAX_HEIGHT (%d)", c.MinHeight, c.MaxHeight)
	}
	if c.MinResolution > c.MaxResolution {
		return fmt.Errorf("MIN_RESOLUTION (%d) exceeds MAX_RESOLUTION (%d)", c.MinResolution, c.MaxResolution)
	}
	if c.DefaultWidth < c.MinWidth || c.DefaultWidth > c.MaxWidth {
		return fmt.Errorf("DEFAULT_WIDTH %d outside [%d, %d]", c.DefaultWidth, c.MinWidth, c.MaxWidth)
	}
	if c.DefaultHeight < c.MinHeight || c.DefaultHeight > c.MaxHeight {
		return fmt.Errorf("DEFAULT_HEIGHT %d outside [%d, %d]", c.DefaultHeight, c.MinHeight, c.MaxHeight)
	}
	if c.DefaultResolution < c.MinResolution || c.DefaultResolution > c.MaxResolution {
		return fmt.Errorf("DEFAULT_RESOLUTION %d outside [%d, %d]", c.DefaultResolution, c.MinResolution, c.MaxResolution)
	}
	if px := rasterPixels(c.DefaultWidth, c.DefaultHeight, c.DefaultResolution); px > c.MaxOutputPixels {
		return fmt.Errorf("default canvas at DEFAULT_RESOLUTION is %d pixels, above MAX_OUTPUT_PIXELS (%d)", px, c.MaxOutputPixels)
	}
	if c.DefaultMaxWords > c.MaxWordsLimit {
		return fmt.Errorf("DEFAULT_MAX_WORDS (%d) exceeds MAX_WORDS_LIMIT (%d)", c.DefaultMaxWords, c.MaxWordsLimit)
	}
	if c.MaxUploadBytes < c.MaxPDFBytes || c.MaxUploadBytes < c.MaxDocxBytes || c.MaxUploadBytes < c.MaxTextBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least as large as every per-format limit")
	}
	return nil
}

// rasterPixels mirrors the export scale: canvas sizes are given at 100 dpi.
func rasterPixels(width, height, resolution int) int64 {
	scale := float64(resolution) / 100
	return int64(math.Round(float64(width)*scale)) * int64(math.Round(float64(height)*scale))
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
