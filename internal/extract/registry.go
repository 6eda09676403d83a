package extract

import (
	"strings"
)

// genericTypes carry no information about the document format, so resolution
// falls through to the extension and the sniffed type.
var genericTypes = map[string]bool{
	"":                             true,
	"application/octet-stream":     true,
	"binary/octet-stream":          true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
}

type Registry struct {
	byMIME      map[string]Extractor
	byExtension map[string]Extractor
	extractors  []Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		byMIME:      make(map[string]Extractor),
		byExtension: make(map[string]Extractor),
		extractors:  make([]Extractor, 0),
	}
}

func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
	for _, mt := range e.SupportedTypes() {
		key := NormalizeMIME(mt)
		if key != "" {
			r.byMIME[key] = e
		}
	}
	for _, ext := range e.SupportedExtensions() {
		key := normalizeExt(ext)
		if key != "" {
			r.byExtension[key] = e
		}
	}
}

// Extractors returns the registered extractors in registration order.
func (r *Registry) Extractors() []Extractor {
	out := make([]Extractor, len(r.extractors))
	copy(out, r.extractors)
	return out
}

// Resolve picks the extractor for a document. A specific declared MIME type
// decides on its own; a missing or generic one defers to the file extension
// and then to the sniffed content type.
func (r *Registry) Resolve(declared, sniffed, extension string) (Extractor, error) {
	mt := NormalizeMIME(declared)
	ext := normalizeExt(extension)

	if !genericTypes[mt] {
		if e, ok := r.byMIME[mt]; ok {
			return e, nil
		}
		return nil, &UnsupportedFormatError{MIMEType: mt, Extension: ext}
	}

	if e, ok := r.byExtension[ext]; ok {
		return e, nil
	}

	st := NormalizeMIME(sniffed)
	if e, ok := r.byMIME[st]; ok {
		return e, nil
	}

	reported := mt
	if reported == "" {
		reported = st
	}
	return nil, &UnsupportedFormatError{MIMEType: reported, Extension: ext}
}

// NormalizeMIME lowercases a media type and strips any parameters.
func NormalizeMIME(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
