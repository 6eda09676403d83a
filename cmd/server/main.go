package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/wordcloud-service/internal/config"
	"github.com/toricodesthings/wordcloud-service/internal/export"
	"github.com/toricodesthings/wordcloud-service/internal/extract"
	officeextractor "github.com/toricodesthings/wordcloud-service/internal/extractors/office"
	pdfextractor "github.com/toricodesthings/wordcloud-service/internal/extractors/pdf"
	plaintextextractor "github.com/toricodesthings/wordcloud-service/internal/extractors/plaintext"
	"github.com/toricodesthings/wordcloud-service/internal/logging"
	"github.com/toricodesthings/wordcloud-service/internal/pipeline"
	"github.com/toricodesthings/wordcloud-service/internal/render"
	"github.com/toricodesthings/wordcloud-service/internal/stopwords"
)

var (
	cfg    config.Config
	logger = slog.Default()

	requestSem *semaphore.Weighted
	extractRt  *extract.Router
	processor  *pipeline.Processor

	// Per-IP rate limiters
	limiters = &sync.Map{}

	metrics = newServerMetrics()
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64

	extractions  map[string]int64
	extractBytes int64
	extractTime  time.Duration
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{extractions: map[string]int64{}}
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

// recordExtraction is installed as the extraction router's success hook.
func (m *serverMetrics) recordExtraction(fileType string, size int64, d time.Duration) {
	m.mu.Lock()
	m.extractions[fileType]++
	m.extractBytes += size
	m.extractTime += d
	m.mu.Unlock()
}

func (m *serverMetrics) extractionStats() (byType map[string]int64, bytes int64, avg time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byType = make(map[string]int64, len(m.extractions))
	var n int64
	for k, v := range m.extractions {
		byType[k] = v
		n += v
	}
	if n > 0 {
		avg = m.extractTime / time.Duration(n)
	}
	return byType, m.extractBytes, avg
}

func main() {
	cfg = config.Load()
	logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := setup(cfg, logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Error("listen failed", "addr", srv.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupRateLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wordcloud service listening",
			"addr", srv.Addr,
			"maxConcurrent", cfg.MaxConcurrentRequests,
			"maxConnections", cfg.MaxConnections,
			"pdfEngine", cfg.PDFEngine,
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		logger.Info("wordcloud service stopped")
	}
}

// setup wires the extractors, renderer and pipeline from c.
func setup(c config.Config, log *slog.Logger) error {
	cfg = c
	logger = log
	requestSem = semaphore.NewWeighted(c.MaxConcurrentRequests)
	limiters = &sync.Map{}
	metrics = newServerMetrics()

	baseline := stopwords.Baseline()
	if c.StopwordsFile != "" {
		set, err := stopwords.LoadFile(c.StopwordsFile, baseline)
		if err != nil {
			return err
		}
		baseline = set
		log.Info("stopwords loaded", "file", c.StopwordsFile, "count", set.Len())
	}

	engine, err := pdfextractor.NewEngine(c.PDFEngine, pdfextractor.EngineConfig{
		PDFInfoTimeout:   c.PDFInfoTimeout,
		PDFToTextTimeout: c.PDFToTextTimeout,
		Logger:           log,
	})
	if err != nil {
		return err
	}

	registry := extract.NewRegistry()
	registry.Register(pdfextractor.New(engine, c.MaxPDFBytes, c.MaxPDFPages, log))
	registry.Register(officeextractor.NewDOCX(c.MaxDocxBytes, c.MaxZipEntryBytes, c.MaxZipMetadataBytes))
	registry.Register(plaintextextractor.New(c.MaxTextBytes))

	extractRt = extract.NewRouter(registry, c.MaxUploadBytes)
	extractRt.SetSuccessHook(metrics.recordExtraction)

	renderer, err := render.Default()
	if err != nil {
		return err
	}
	background, err := render.ParseHexColor(c.BackgroundColor)
	if err != nil {
		return fmt.Errorf("BACKGROUND_COLOR: %w", err)
	}

	useBaseline := c.UseBaselineStopwords
	processor = pipeline.New(extractRt, renderer, pipeline.Config{
		Defaults: pipeline.Options{
			Width:                c.DefaultWidth,
			Height:               c.DefaultHeight,
			MaxWords:             c.DefaultMaxWords,
			Resolution:           c.DefaultResolution,
			Format:               export.ImageFormat(c.DefaultImageFormat),
			UseBaselineStopwords: &useBaseline,
		},
		Limits: pipeline.Limits{
			MinWidth:      c.MinWidth,
			MaxWidth:      c.MaxWidth,
			MinHeight:     c.MinHeight,
			MaxHeight:     c.MaxHeight,
			MinResolution: c.MinResolution,
			MaxResolution: c.MaxResolution,
			MaxWords:      c.MaxWordsLimit,
			MaxStopwords:  c.MaxStopwordsPerQuery,
			MaxPixels:     c.MaxOutputPixels,
		},
		TopWords:   c.TopWordsLimit,
		Background: background,
		Baseline:   baseline,
		Logger:     log,
	})
	return nil
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(withLogging, withRecovery)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", handleHealth)
	r.With(withInternalAuth).Get("/metrics", handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(withInternalAuth, withRateLimit)

		r.Get("/stopwords", handleStopwords)

		r.Group(func(r chi.Router) {
			r.Use(withConcurrencyLimit)
			r.Post("/analyze", handleAnalyze)
			r.Post("/wordcloud", handleWordcloud)
			r.Post("/table", handleTable)
		})
	})
	return r
}

func cleanupRateLimiters(ctx context.Context) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := metrics.get()
		logger.Info("stats",
			"active", active,
			"total", total,
			"goroutines", runtime.NumGoroutine(),
			"memMB", m.Alloc/(1<<20),
		)

		limiters.Clear()
	}
}
