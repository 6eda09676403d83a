package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	lpdf "github.com/ledongthuc/pdf"
)

// Ledongthuc uses github.com/ledongthuc/pdf, which applies each font's
// encoding when decoding shown strings.
type Ledongthuc struct{}

func NewLedongthuc() *Ledongthuc { return &Ledongthuc{} }

func (Ledongthuc) Name() string { return "ledongthuc" }

func (Ledongthuc) Open(ctx context.Context, data []byte) (src Source, err error) {
	// NewReader panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("ledongthuc: %v", r)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ledongthuc read: %w", err)
	}
	return &ledongthucSource{r: r, pages: r.NumPage()}, nil
}

type ledongthucSource struct {
	r     *lpdf.Reader
	pages int
}

func (s *ledongthucSource) NumPages() int { return s.pages }

func (s *ledongthucSource) PageText(ctx context.Context, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ledongthuc page %d: %v", page, r)
		}
	}()

	p := s.r.Page(page)
	if p.V.IsNull() {
		return "", errors.New("page object missing")
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("ledongthuc page %d: %w", page, err)
	}
	return text, nil
}

func (s *ledongthucSource) Close() error { return nil }
