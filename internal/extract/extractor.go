package extract

import "context"

// Extractor is implemented by every document format handler.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (Result, error)
	Format() Format
	SupportedTypes() []string
	SupportedExtensions() []string
	Name() string
	MaxFileSize() int64
}
