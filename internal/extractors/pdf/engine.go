package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Engine opens PDF bytes for page-by-page text extraction.
type Engine interface {
	Name() string
	Open(ctx context.Context, data []byte) (Source, error)
}

// Source is an opened PDF. Pages are numbered from 1.
type Source interface {
	NumPages() int
	PageText(ctx context.Context, page int) (string, error)
	Close() error
}

type EngineConfig struct {
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
	Logger           *slog.Logger
}

// NewEngine returns the engine registered under name: auto, pdfcpu,
// ledongthuc or poppler. auto (the default) decodes with ledongthuc, which
// honours font encodings and ToUnicode maps, and retries unreadable pages
// with pdfcpu.
func NewEngine(name string, cfg EngineConfig) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return NewFallback(NewLedongthuc(), NewPDFCPU()), nil
	case "pdfcpu":
		return NewPDFCPU(), nil
	case "ledongthuc":
		return NewLedongthuc(), nil
	case "poppler":
		return NewPoppler(PopplerConfig{
			PDFInfoTimeout:   cfg.PDFInfoTimeout,
			PDFToTextTimeout: cfg.PDFToTextTimeout,
			Logger:           cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", name)
	}
}
