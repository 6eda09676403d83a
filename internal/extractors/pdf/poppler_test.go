package pdf

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestParsePages(t *testing.T) {
	out := "Title:          Report\nProducer:       test\nPages:          12\nEncrypted:      no\n"
	n, err := parsePages(out)
	if err != nil {
		t.Fatalf("parse pages: %v", err)
	}
	if n != 12 {
		t.Fatalf("expected 12 pages, got %d", n)
	}
}

func TestParsePagesFallbackAndErrors(t *testing.T) {
	if n, err := parsePages("  pages:   3 (approx)\n"); err != nil || n != 3 {
		t.Fatalf("expected fallback to parse 3 pages, got %d, %v", n, err)
	}
	if _, err := parsePages("Title: x\n"); err == nil {
		t.Fatalf("expected missing pages field to fail")
	}
	if _, err := parsePages("Pages: 999999\n"); err == nil {
		t.Fatalf("expected unreasonable page count to fail")
	}
}

func TestClassifyErrRecognisesPopplerMessages(t *testing.T) {
	p := NewPoppler(PopplerConfig{})
	ctx := context.Background()

	cases := map[string]string{
		"Command Line Error: Incorrect password":      "password protected",
		"Syntax Error: Couldn't find trailer":         "damaged or invalid",
		"pdftotext version 22.02.0\nUsage: pdftotext": "bad invocation",
	}
	for stderr, want := range cases {
		err := p.classifyErr("pdftotext", exec.ErrDot, ctx, stderr, 1)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("stderr %q: expected %q, got %v", stderr, want, err)
		}
	}
}

func TestPopplerExtractsRealPDF(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not installed")
	}
	if _, err := exec.LookPath("pdfinfo"); err != nil {
		t.Skip("pdfinfo not installed")
	}

	src, err := NewPoppler(PopplerConfig{}).Open(context.Background(), buildTextPDF("alpha", "", "gamma"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	if src.NumPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", src.NumPages())
	}
	text, err := src.PageText(context.Background(), 3)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if strings.TrimSpace(text) != "gamma" {
		t.Fatalf("unexpected page text %q", text)
	}
}
