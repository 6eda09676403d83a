// Package pipeline runs an uploaded document through extraction, counting,
// stopword filtering, layout and export.
package pipeline

import (
	"context"
	"image/color"
	"log/slog"
	"time"

	"github.com/toricodesthings/wordcloud-service/internal/export"
	"github.com/toricodesthings/wordcloud-service/internal/extract"
	"github.com/toricodesthings/wordcloud-service/internal/render"
	"github.com/toricodesthings/wordcloud-service/internal/stopwords"
	"github.com/toricodesthings/wordcloud-service/internal/wordfreq"
)

type Config struct {
	Defaults   Options
	Limits     Limits
	TopWords   int
	Background color.RGBA
	Baseline   stopwords.Set
	Logger     *slog.Logger
}

type Processor struct {
	router   *extract.Router
	renderer *render.Renderer
	cfg      Config
	log      *slog.Logger
}

func New(router *extract.Router, renderer *render.Renderer, cfg Config) *Processor {
	if cfg.TopWords <= 0 {
		cfg.TopWords = 50
	}
	if cfg.Baseline.Len() == 0 {
		cfg.Baseline = stopwords.Baseline()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Processor{router: router, renderer: renderer, cfg: cfg, log: log}
}

func (p *Processor) Limits() Limits { return p.cfg.Limits }

func (p *Processor) Baseline() stopwords.Set { return p.cfg.Baseline }

type FileDetails struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declaredType"`
	DetectedType string `json:"detectedType"`
	Size         int64  `json:"size"`
}

// Analysis is everything known about a document before rendering.
type Analysis struct {
	File         FileDetails       `json:"file"`
	FileType     string            `json:"fileType"`
	Method       string            `json:"method"`
	SkippedPages []int             `json:"skippedPages,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	WordCount    int               `json:"wordCount"`
	CharCount    int               `json:"charCount"`
	UniqueWords  int               `json:"uniqueWords"`
	Table        wordfreq.Table    `json:"table"`
	TopWords     []string          `json:"topWords"`

	Text string `json:"-"`
}

// ApplyDefaults fills unset fields of o from the configured defaults.
func (p *Processor) ApplyDefaults(o Options) Options {
	d := p.cfg.Defaults
	if o.Width == 0 {
		o.Width = d.Width
	}
	if o.Height == 0 {
		o.Height = d.Height
	}
	if o.MaxWords == 0 {
		o.MaxWords = d.MaxWords
	}
	if o.Resolution == 0 {
		o.Resolution = d.Resolution
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	if f, err := export.ParseImageFormat(string(o.Format)); err == nil {
		o.Format = f
	}
	if o.UseBaselineStopwords == nil {
		o.UseBaselineStopwords = d.UseBaselineStopwords
	}
	o.AdditionalStopwords = trimStopwords(o.AdditionalStopwords)
	return o
}

// Analyze extracts text and counts words. An extraction error is returned
// as is and nothing else runs.
func (p *Processor) Analyze(ctx context.Context, doc extract.Document) (Analysis, error) {
	res, err := p.router.Extract(ctx, doc)
	if err != nil {
		return Analysis{}, err
	}

	table := wordfreq.Count(res.Text)
	return Analysis{
		File: FileDetails{
			Name:         doc.FileName,
			DeclaredType: doc.DeclaredType,
			DetectedType: doc.SniffedType,
			Size:         doc.Size(),
		},
		FileType:     res.FileType,
		Method:       res.Method,
		SkippedPages: res.SkippedPages,
		Metadata:     res.Metadata,
		WordCount:    table.Total(),
		CharCount:    res.CharCount,
		UniqueWords:  table.Len(),
		Table:        table,
		TopWords:     table.Top(p.cfg.TopWords),
		Text:         res.Text,
	}, nil
}

// Stopwords builds the effective stopword set for o.
func (p *Processor) Stopwords(o Options) stopwords.Set {
	return stopwords.Build(o.Baseline(), p.cfg.Baseline, o.AdditionalStopwords)
}

// Filter removes the stopwords selected by o from text.
func (p *Processor) Filter(text string, o Options) string {
	return stopwords.Filter(text, p.Stopwords(o))
}

type Rendered struct {
	Artifact export.Artifact
	Layout   render.Layout
	Analysis Analysis
}

// Render runs the whole pipeline and encodes the cloud in o.Format.
func (p *Processor) Render(ctx context.Context, doc extract.Document, o Options) (Rendered, error) {
	o = p.ApplyDefaults(o)
	if err := o.Validate(p.cfg.Limits); err != nil {
		return Rendered{}, err
	}

	analysis, err := p.Analyze(ctx, doc)
	if err != nil {
		return Rendered{}, err
	}
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}

	start := time.Now()
	filtered := p.Filter(analysis.Text, o)

	ropts := render.DefaultOptions()
	ropts.Width = o.Width
	ropts.Height = o.Height
	ropts.MaxWords = o.MaxWords
	ropts.Seed = o.Seed
	if p.cfg.Background.A != 0 {
		ropts.Background = p.cfg.Background
	}
	layout := p.renderer.Layout(filtered, ropts)
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}

	art, err := export.EncodeImage(p.renderer, layout, o.Format, o.Resolution)
	if err != nil {
		return Rendered{}, err
	}

	p.log.Debug("wordcloud rendered",
		"file", doc.FileName,
		"format", o.Format,
		"placed", len(layout.Words),
		"dropped", layout.Dropped,
		"bytes", len(art.Data),
		"duration", time.Since(start),
	)
	return Rendered{Artifact: art, Layout: layout, Analysis: analysis}, nil
}

// Table extracts and counts the document and encodes the full frequency table.
func (p *Processor) Table(ctx context.Context, doc extract.Document, f export.TableFormat) (export.Artifact, error) {
	analysis, err := p.Analyze(ctx, doc)
	if err != nil {
		return export.Artifact{}, err
	}
	return export.EncodeTable(analysis.Table, f)
}
