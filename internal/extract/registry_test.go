package extract

import (
	"context"
	"errors"
	"testing"
)

type stubExtractor struct {
	name   string
	format Format
	mts    []string
	exts   []string
	max    int64
	text   string
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, doc Document) (Result, error) {
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Text: s.text, Method: s.name}, nil
}
func (s *stubExtractor) Format() Format                { return s.format }
func (s *stubExtractor) SupportedTypes() []string      { return s.mts }
func (s *stubExtractor) SupportedExtensions() []string { return s.exts }
func (s *stubExtractor) Name() string                  { return s.name }
func (s *stubExtractor) MaxFileSize() int64            { return s.max }

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "text", format: FormatPlain, mts: []string{MIMEPlain}, exts: []string{".txt"}})
	r.Register(&stubExtractor{name: "pdf", format: FormatPDF, mts: []string{MIMEPDF}, exts: []string{".pdf"}})
	r.Register(&stubExtractor{name: "docx", format: FormatWordXML, mts: []string{MIMEWordXML}, exts: []string{"docx"}})
	return r
}

func TestResolvePrefersDeclaredType(t *testing.T) {
	r := testRegistry()

	e, err := r.Resolve("application/pdf", "text/plain", ".txt")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if e.Name() != "pdf" {
		t.Fatalf("expected pdf extractor, got %q", e.Name())
	}
}

func TestResolveStripsParameters(t *testing.T) {
	r := testRegistry()

	e, err := r.Resolve("TEXT/PLAIN; charset=utf-8", "", "")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if e.Format() != FormatPlain {
		t.Fatalf("expected plain extractor, got %s", e.Format())
	}
}

func TestResolveGenericTypeFallsBackToExtensionThenSniff(t *testing.T) {
	r := testRegistry()

	e, err := r.Resolve("application/octet-stream", MIMEPDF, ".docx")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if e.Name() != "docx" {
		t.Fatalf("expected extension to win over sniffed type, got %q", e.Name())
	}

	e, err = r.Resolve("", MIMEPDF, ".bin")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if e.Name() != "pdf" {
		t.Fatalf("expected sniffed type to decide, got %q", e.Name())
	}
}

func TestResolveRejectsUnknownDeclaredType(t *testing.T) {
	r := testRegistry()

	_, err := r.Resolve("image/png", MIMEPlain, ".txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected *UnsupportedFormatError, got %T", err)
	}
	if ufe.MIMEType != "image/png" || ufe.Extension != ".txt" {
		t.Fatalf("unexpected error fields: %+v", ufe)
	}
}

func TestResolveDoesNotTreatEveryTextTypeAsPlain(t *testing.T) {
	r := testRegistry()

	if _, err := r.Resolve("text/html", "", ".html"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected text/html to be unsupported, got %v", err)
	}
}

func TestFormatNamesAndMIMETypes(t *testing.T) {
	cases := []struct {
		f    Format
		name string
		mime string
	}{
		{FormatUnknown, "unknown", ""},
		{FormatPlain, "plain", MIMEPlain},
		{FormatPDF, "pdf", MIMEPDF},
		{FormatWordXML, "word-xml", MIMEWordXML},
	}
	for _, c := range cases {
		if c.f.String() != c.name {
			t.Fatalf("format %d: expected name %q, got %q", c.f, c.name, c.f.String())
		}
		if c.f.MIMEType() != c.mime {
			t.Fatalf("format %s: expected mime %q, got %q", c.f, c.mime, c.f.MIMEType())
		}
	}
}

func TestFormatErrorUnwraps(t *testing.T) {
	inner := errors.New("zip: not a valid zip file")
	err := error(&FormatError{Format: FormatWordXML, Err: inner})
	if !errors.Is(err, inner) {
		t.Fatalf("expected FormatError to unwrap to its cause")
	}
	if err.Error() != "malformed word-xml document: zip: not a valid zip file" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		25 << 20: "25MB",
		1 << 30:  "1GB",
		2048:     "2KB",
		1500:     "1500 bytes",
	}
	for n, want := range cases {
		if got := FormatBytes(n); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
