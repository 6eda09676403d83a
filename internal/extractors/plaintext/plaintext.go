package plaintext

import (
	"context"
	"unicode/utf8"

	"github.com/toricodesthings/wordcloud-service/internal/extract"
)

// Extractor passes UTF-8 text through unchanged.
type Extractor struct {
	maxBytes int64
}

func New(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Name() string { return "text" }

func (e *Extractor) Format() extract.Format { return extract.FormatPlain }

func (e *Extractor) MaxFileSize() int64 { return e.maxBytes }

func (e *Extractor) SupportedTypes() []string {
	return []string{extract.MIMEPlain}
}

func (e *Extractor) SupportedExtensions() []string {
	return []string{".txt", ".text"}
}

func (e *Extractor) Extract(ctx context.Context, doc extract.Document) (extract.Result, error) {
	select {
	case <-ctx.Done():
		return extract.Result{Success: false}, ctx.Err()
	default:
	}

	if off := invalidUTF8Offset(doc.Data); off >= 0 {
		err := &extract.DecodeError{Encoding: "UTF-8", Offset: off}
		msg := err.Error()
		return extract.Result{Success: false, FileType: e.Format().String(), MIMEType: extract.MIMEPlain, Error: &msg}, err
	}

	text := string(doc.Data)
	words, chars := extract.BuildCounts(text)
	return extract.Result{
		Success:   true,
		Text:      text,
		Method:    "native",
		FileType:  e.Format().String(),
		MIMEType:  extract.MIMEPlain,
		WordCount: words,
		CharCount: chars,
	}, nil
}

// invalidUTF8Offset returns the byte offset of the first invalid sequence, or -1.
func invalidUTF8Offset(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
