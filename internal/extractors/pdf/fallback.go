package pdf

import (
	"context"
	"strings"
)

// Fallback reads each page with primary and retries pages that fail or come
// back blank with secondary. A document only one engine can open is read by
// that engine alone.
type Fallback struct {
	primary   Engine
	secondary Engine
}

func NewFallback(primary, secondary Engine) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Name() string { return f.primary.Name() + "+" + f.secondary.Name() }

func (f *Fallback) Open(ctx context.Context, data []byte) (Source, error) {
	first, err := f.primary.Open(ctx, data)
	second, err2 := f.secondary.Open(ctx, data)
	switch {
	case err != nil && err2 != nil:
		return nil, err
	case err != nil:
		return second, nil
	case err2 != nil:
		return first, nil
	}
	return &fallbackSource{first: first, second: second}, nil
}

type fallbackSource struct {
	first  Source
	second Source
}

func (s *fallbackSource) NumPages() int { return s.first.NumPages() }

func (s *fallbackSource) PageText(ctx context.Context, page int) (string, error) {
	text, err := s.first.PageText(ctx, page)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if page > s.second.NumPages() {
		return text, err
	}
	if alt, altErr := s.second.PageText(ctx, page); altErr == nil && strings.TrimSpace(alt) != "" {
		return alt, nil
	}
	return text, err
}

func (s *fallbackSource) Close() error {
	err := s.first.Close()
	if err2 := s.second.Close(); err == nil {
		err = err2
	}
	return err
}
