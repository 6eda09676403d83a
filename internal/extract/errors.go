package extract

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
)

// UnsupportedFormatError is returned when no extractor accepts a document.
type UnsupportedFormatError struct {
	MIMEType  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	switch {
	case e.MIMEType != "" && e.Extension != "":
		return fmt.Sprintf("unsupported file format: mime=%q extension=%q", e.MIMEType, e.Extension)
	case e.MIMEType != "":
		return fmt.Sprintf("unsupported file format: mime=%q", e.MIMEType)
	case e.Extension != "":
		return fmt.Sprintf("unsupported file format: extension=%q", e.Extension)
	default:
		return ErrUnsupportedFormat.Error()
	}
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// DecodeError reports bytes that are not valid in the document's declared encoding.
type DecodeError struct {
	Encoding string
	Offset   int
}

func (e *DecodeError) Error() string {
	enc := e.Encoding
	if enc == "" {
		enc = "UTF-8"
	}
	return fmt.Sprintf("invalid %s byte sequence at offset %d", enc, e.Offset)
}

// FormatError reports a container that could not be parsed as the claimed format.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed %s document", e.Format)
	}
	return fmt.Sprintf("malformed %s document: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// TooLarge wraps ErrFileTooLarge with a human-readable limit.
func TooLarge(what string, limit int64) error {
	return fmt.Errorf("%w: %s exceeds %s limit", ErrFileTooLarge, what, FormatBytes(limit))
}

// FormatBytes renders a byte count using the largest whole binary unit.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return fmt.Sprintf("%dGB", n>>30)
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
