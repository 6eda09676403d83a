package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type SuccessHook func(fileType string, fileSize int64, duration time.Duration)

type Router struct {
	registry     *Registry
	maxFileBytes int64
	onSuccess    SuccessHook
}

func NewRouter(registry *Registry, maxFileBytes int64) *Router {
	return &Router{registry: registry, maxFileBytes: maxFileBytes}
}

// SetSuccessHook registers a callback invoked after every successful extraction.
func (r *Router) SetSuccessHook(fn SuccessHook) {
	r.onSuccess = fn
}

func (r *Router) Registry() *Registry { return r.registry }

func (r *Router) Extract(ctx context.Context, doc Document) (Result, error) {
	start := time.Now()

	fileName := strings.TrimSpace(doc.FileName)
	if fileName == "" {
		fileName = "input.bin"
	}
	size := doc.Size()

	if r.maxFileBytes > 0 && size > r.maxFileBytes {
		err := TooLarge("upload", r.maxFileBytes)
		return errResult(err.Error()), err
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	extractor, err := r.registry.Resolve(doc.DeclaredType, doc.SniffedType, ext)
	if err != nil {
		msg := err.Error()
		return Result{Success: false, MIMEType: NormalizeMIME(doc.DeclaredType), FileType: FormatUnknown.String(), Error: &msg}, err
	}

	if max := extractor.MaxFileSize(); max > 0 && size > max {
		err := TooLarge(fmt.Sprintf("%s document", extractor.Format()), max)
		msg := err.Error()
		return Result{Success: false, MIMEType: extractor.Format().MIMEType(), FileType: extractor.Format().String(), Error: &msg}, err
	}

	res, err := extractor.Extract(ctx, doc)
	if res.FileType == "" {
		res.FileType = extractor.Format().String()
	}
	if res.MIMEType == "" {
		res.MIMEType = extractor.Format().MIMEType()
	}
	if err != nil {
		if res.Error == nil {
			msg := err.Error()
			res.Error = &msg
		}
		res.Success = false
		res.Text = ""
		return res, err
	}

	res.Success = true
	if res.CharCount == 0 && res.Text != "" {
		res.WordCount, res.CharCount = BuildCounts(res.Text)
	}
	if r.onSuccess != nil {
		r.onSuccess(res.FileType, size, time.Since(start))
	}
	return res, nil
}

func errResult(message string) Result {
	return Result{Success: false, FileType: FormatUnknown.String(), Error: &message}
}
