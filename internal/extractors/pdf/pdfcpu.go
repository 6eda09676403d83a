package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFCPU parses the document with pdfcpu and decodes each page's content
// stream itself.
type PDFCPU struct{}

func NewPDFCPU() *PDFCPU {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPU{}
}

func (PDFCPU) Name() string { return "pdfcpu" }

func (PDFCPU) Open(ctx context.Context, data []byte) (src Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("pdfcpu: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &pdfcpuSource{ctx: pctx}, nil
}

type pdfcpuSource struct {
	ctx *model.Context
}

func (s *pdfcpuSource) NumPages() int { return s.ctx.PageCount }

func (s *pdfcpuSource) PageText(ctx context.Context, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdfcpu page %d: %v", page, r)
		}
	}()

	r, err := pdfcpu.ExtractPageContent(s.ctx, page)
	if err != nil {
		return "", fmt.Errorf("pdfcpu page %d: %w", page, err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("pdfcpu page %d: %w", page, err)
	}
	return ContentText(data), nil
}

func (s *pdfcpuSource) Close() error { return nil }
