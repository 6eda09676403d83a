package pipeline

import (
	"fmt"
	"strings"

	"github.com/toricodesthings/wordcloud-service/internal/export"
)

// Options are the per-request word cloud settings. Zero values are replaced
// by the processor defaults in ApplyDefaults.
type Options struct {
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	MaxWords   int                `json:"maxWords"`
	Resolution int                `json:"resolution"`
	Format     export.ImageFormat `json:"format"`

	// UseBaselineStopwords is nil when the caller did not choose.
	UseBaselineStopwords *bool    `json:"useBaselineStopwords,omitempty"`
	AdditionalStopwords  []string `json:"stopwords,omitempty"`

	Seed uint64 `json:"seed,omitempty"`
}

// Limits bound what a caller may request.
type Limits struct {
	MinWidth      int
	MaxWidth      int
	MinHeight     int
	MaxHeight     int
	MinResolution int
	MaxResolution int
	MaxWords      int
	MaxStopwords  int
	// MaxPixels caps the raster size after resolution scaling.
	MaxPixels int64
}

// ValidationError names the offending option.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (o Options) Baseline() bool {
	return o.UseBaselineStopwords == nil || *o.UseBaselineStopwords
}

// Validate checks o against limits. It expects defaults to have been applied.
func (o Options) Validate(l Limits) error {
	if o.Width < l.MinWidth || o.Width > l.MaxWidth {
		return &ValidationError{Field: "width", Reason: fmt.Sprintf("%d outside [%d, %d]", o.Width, l.MinWidth, l.MaxWidth)}
	}
	if o.Height < l.MinHeight || o.Height > l.MaxHeight {
		return &ValidationError{Field: "height", Reason: fmt.Sprintf("%d outside [%d, %d]", o.Height, l.MinHeight, l.MaxHeight)}
	}
	if o.Resolution < l.MinResolution || o.Resolution > l.MaxResolution {
		return &ValidationError{Field: "resolution", Reason: fmt.Sprintf("%d outside [%d, %d]", o.Resolution, l.MinResolution, l.MaxResolution)}
	}
	if o.MaxWords <= 0 {
		return &ValidationError{Field: "maxWords", Reason: "must be positive"}
	}
	if l.MaxWords > 0 && o.MaxWords > l.MaxWords {
		return &ValidationError{Field: "maxWords", Reason: fmt.Sprintf("%d exceeds %d", o.MaxWords, l.MaxWords)}
	}
	format, err := export.ParseImageFormat(string(o.Format))
	if err != nil {
		return &ValidationError{Field: "format", Reason: err.Error()}
	}
	if l.MaxPixels > 0 && format.Rasterized() {
		w, h := export.RasterSize(o.Width, o.Height, o.Resolution)
		if int64(w)*int64(h) > l.MaxPixels {
			return &ValidationError{Field: "resolution", Reason: fmt.Sprintf("%dx%d output exceeds %d pixels", w, h, l.MaxPixels)}
		}
	}
	if l.MaxStopwords > 0 && len(o.AdditionalStopwords) > l.MaxStopwords {
		return &ValidationError{Field: "stopwords", Reason: fmt.Sprintf("%d entries exceeds %d", len(o.AdditionalStopwords), l.MaxStopwords)}
	}
	return nil
}

// trimStopwords trims each chosen word and drops blanks. Words are kept
// otherwise intact: tokens carry their punctuation, so "world," is a word.
func trimStopwords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
