package main

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/toricodesthings/wordcloud-service/internal/export"
	"github.com/toricodesthings/wordcloud-service/internal/extract"
	"github.com/toricodesthings/wordcloud-service/internal/pipeline"
)

const version = "1.0.0"

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) && active > 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": version,
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := metrics.get()
	byType, bytes, avg := metrics.extractionStats()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests":      active,
		"totalRequests":       total,
		"extractions":         byType,
		"extractedBytes":      bytes,
		"avgExtractionMillis": avg.Milliseconds(),
		"goroutines":          runtime.NumGoroutine(),
		"memAllocMB":          m.Alloc / (1 << 20),
		"memSysMB":            m.Sys / (1 << 20),
	})
}

func handleStopwords(w http.ResponseWriter, r *http.Request) {
	words := processor.Baseline().Words()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(words),
		"stopwords": words,
	})
}

type analyzeResponse struct {
	Success bool `json:"success"`
	pipeline.Analysis
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
	defer cancel()

	doc, err := readDocument(ctx, w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	a, err := processor.Analyze(ctx, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Success: true, Analysis: a})
}

func handleWordcloud(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
	defer cancel()

	doc, err := readDocument(ctx, w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := processor.Render(ctx, doc, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("X-Words-Placed", strconv.Itoa(len(out.Layout.Words)))
	h.Set("X-Words-Dropped", strconv.Itoa(out.Layout.Dropped))
	if len(out.Analysis.SkippedPages) > 0 {
		pages := make([]string, len(out.Analysis.SkippedPages))
		for i, p := range out.Analysis.SkippedPages {
			pages[i] = strconv.Itoa(p)
		}
		h.Set("X-Skipped-Pages", strings.Join(pages, ","))
	}
	writeArtifact(w, out.Artifact)
}

func handleTable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
	defer cancel()

	format, err := export.ParseTableFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	doc, err := readDocument(ctx, w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	art, err := processor.Table(ctx, doc, format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeArtifact(w, art)
}

// ---------- Request parsing ----------

// multipartOverhead covers boundaries and option fields around the file part.
const multipartOverhead = 1 << 20

// readDocument takes the upload from the "file" part, or fetches the
// document named by the "url" field.
func readDocument(ctx context.Context, w http.ResponseWriter, r *http.Request) (extract.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(cfg.MaxMultipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return extract.Document{}, extract.TooLarge("upload", cfg.MaxUploadBytes)
		}
		return extract.Document{}, &pipeline.ValidationError{Field: "body", Reason: "expected multipart/form-data"}
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		rawURL := strings.TrimSpace(r.FormValue("url"))
		if rawURL == "" {
			return extract.Document{}, &pipeline.ValidationError{Field: "file", Reason: "file or url required"}
		}
		doc, err := extract.FetchDocument(ctx, rawURL, r.FormValue("fileName"), cfg.MaxUploadBytes, cfg.RequestTimeout)
		if err != nil && !errors.Is(err, extract.ErrFileTooLarge) && ctx.Err() == nil {
			return extract.Document{}, &pipeline.ValidationError{Field: "url", Reason: sanitizeError(err)}
		}
		return doc, err
	}
	if err != nil {
		return extract.Document{}, &pipeline.ValidationError{Field: "file", Reason: sanitizeError(err)}
	}
	defer file.Close()

	return extract.ReadUpload(file, hdr.Filename, hdr.Header.Get("Content-Type"), cfg.MaxUploadBytes)
}

func parseOptions(r *http.Request) (pipeline.Options, error) {
	var o pipeline.Options
	var err error

	ints := []struct {
		field string
		dst   *int
	}{
		{"width", &o.Width},
		{"height", &o.Height},
		{"maxWords", &o.MaxWords},
		{"resolution", &o.Resolution},
	}
	for _, f := range ints {
		v := strings.TrimSpace(r.FormValue(f.field))
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.Atoi(v); err != nil {
			return o, &pipeline.ValidationError{Field: f.field, Reason: "not an integer"}
		}
	}

	o.Format = export.ImageFormat(strings.TrimSpace(r.FormValue("format")))

	if v := strings.TrimSpace(r.FormValue("useBaselineStopwords")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, &pipeline.ValidationError{Field: "useBaselineStopwords", Reason: "not a boolean"}
		}
		o.UseBaselineStopwords = &b
	}

	if r.MultipartForm != nil {
		o.AdditionalStopwords = r.MultipartForm.Value["stopwords"]
	}

	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		if o.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return o, &pipeline.ValidationError{Field: "seed", Reason: "not an unsigned integer"}
		}
	}
	return o, nil
}

// ---------- Responses ----------

// statusFor maps pipeline errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var (
		ve  *pipeline.ValidationError
		de  *extract.DecodeError
		fe  *extract.FormatError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, extract.ErrFileTooLarge), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.As(err, &de), errors.As(err, &fe):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeErr(w, status, code, sanitizeError(err))
}

func writeArtifact(w http.ResponseWriter, a export.Artifact) {
	h := w.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
