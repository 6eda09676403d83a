package pdf

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/toricodesthings/wordcloud-service/internal/extract"
)

// Extractor turns a PDF into one string by joining the text of every page
// that yields any. Pages that fail or carry only whitespace are skipped.
type Extractor struct {
	engine   Engine
	maxBytes int64
	maxPages int
	log      *slog.Logger
}

func New(engine Engine, maxBytes int64, maxPages int, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{engine: engine, maxBytes: maxBytes, maxPages: maxPages, log: log}
}

func (e *Extractor) Name() string { return "pdf/" + e.engine.Name() }

func (e *Extractor) Format() extract.Format { return extract.FormatPDF }

func (e *Extractor) MaxFileSize() int64 { return e.maxBytes }

func (e *Extractor) SupportedTypes() []string {
	return []string{extract.MIMEPDF, "application/x-pdf"}
}

func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf"}
}

func (e *Extractor) Extract(ctx context.Context, doc extract.Document) (extract.Result, error) {
	select {
	case <-ctx.Done():
		return extract.Result{Success: false}, ctx.Err()
	default:
	}

	src, err := e.engine.Open(ctx, doc.Data)
	if err != nil {
		return e.fail(&extract.FormatError{Format: extract.FormatPDF, Err: err})
	}
	defer src.Close()

	total := src.NumPages()
	if e.maxPages > 0 && total > e.maxPages {
		return e.fail(extract.TooLarge(strconv.Itoa(total)+" pages", int64(e.maxPages)))
	}

	var (
		texts   []string
		pages   []extract.PageResult
		skipped []int
	)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return e.fail(err)
		}

		text, err := src.PageText(ctx, n)
		if err != nil {
			e.log.Debug("pdf page skipped", "engine", e.engine.Name(), "page", n, "file", doc.FileName, "error", err)
			skipped = append(skipped, n)
			continue
		}
		if strings.TrimSpace(text) == "" {
			skipped = append(skipped, n)
			continue
		}

		words, _ := extract.BuildCounts(text)
		texts = append(texts, text)
		pages = append(pages, extract.PageResult{PageNumber: n, Text: text, Method: e.engine.Name(), WordCount: words})
	}

	if len(skipped) > 0 {
		e.log.Info("pdf pages without text", "file", doc.FileName, "skipped", len(skipped), "pages", total)
	}

	text := strings.Join(texts, " ")
	words, chars := extract.BuildCounts(text)
	return extract.Result{
		Success:      true,
		Text:         text,
		Method:       e.engine.Name(),
		FileType:     e.Format().String(),
		MIMEType:     extract.MIMEPDF,
		Pages:        pages,
		SkippedPages: skipped,
		Metadata: map[string]string{
			"engine":       e.engine.Name(),
			"pages":        strconv.Itoa(total),
			"skippedPages": strconv.Itoa(len(skipped)),
		},
		WordCount: words,
		CharCount: chars,
	}, nil
}

func (e *Extractor) fail(err error) (extract.Result, error) {
	msg := err.Error()
	return extract.Result{Success: false, Method: e.engine.Name(), FileType: e.Format().String(), MIMEType: extract.MIMEPDF, Error: &msg}, err
}
