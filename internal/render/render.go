// Package render lays out weighted words on a canvas and draws the result as
// a raster image or SVG.
package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type Options struct {
	Width    int
	Height   int
	MaxWords int

	// MaxFontSize caps the size of the most frequent word. Zero derives it
	// from the canvas and the two most frequent words.
	MaxFontSize int
	MinFontSize int
	FontStep    int

	// RelativeScaling blends rank (0) and frequency (1) when sizing words.
	RelativeScaling float64
	// PreferHorizontal is the probability that a word is tried horizontally first.
	PreferHorizontal float64
	Margin           int

	Background color.RGBA
	Palette    []color.RGBA

	// Seed makes layouts reproducible. Zero picks a fresh seed per layout.
	Seed uint64
}

// DefaultOptions mirrors the classic word cloud look: 1200x800, white
// background, 200 words, viridis colours.
func DefaultOptions() Options {
	return Options{
		Width:            1200,
		Height:           800,
		MaxWords:         200,
		MinFontSize:      4,
		FontStep:         1,
		RelativeScaling:  0.5,
		PreferHorizontal: 0.9,
		Margin:           2,
		Background:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Palette:          Viridis(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.MaxWords <= 0 {
		o.MaxWords = d.MaxWords
	}
	if o.MinFontSize <= 0 {
		o.MinFontSize = d.MinFontSize
	}
	if o.FontStep <= 0 {
		o.FontStep = d.FontStep
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	if o.Background.A == 0 {
		o.Background = d.Background
	}
	if len(o.Palette) == 0 {
		o.Palette = d.Palette
	}
	return o
}

// Word is one placed word. X, Y, W and H are the text box in canvas pixels;
// for vertical words W is the line height and H the advance.
type Word struct {
	Text     string     `json:"text"`
	Count    int        `json:"count"`
	FontSize int        `json:"fontSize"`
	X        int        `json:"x"`
	Y        int        `json:"y"`
	W        int        `json:"w"`
	H        int        `json:"h"`
	Vertical bool       `json:"vertical"`
	Color    color.RGBA `json:"-"`
}

type Layout struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Background color.RGBA `json:"-"`
	Words      []Word     `json:"words"`
	// Dropped counts candidate words that did not fit.
	Dropped int `json:"dropped"`
}

// Renderer is safe for concurrent use; font faces are created per call.
type Renderer struct {
	font   *opentype.Font
	family string
}

func New() (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{font: f, family: "Go, Helvetica, Arial, sans-serif"}, nil
}

var (
	defaultOnce     sync.Once
	defaultRenderer *Renderer
	defaultErr      error
)

// Default returns a process-wide renderer using the Go Regular font.
func Default() (*Renderer, error) {
	defaultOnce.Do(func() {
		defaultRenderer, defaultErr = New()
	})
	return defaultRenderer, defaultErr
}

// faceCache holds faces for one layout or draw call. font.Face values are
// not safe for concurrent use.
type faceCache struct {
	font  *opentype.Font
	faces map[float64]font.Face
}

func newFaceCache(f *opentype.Font) *faceCache {
	return &faceCache{font: f, faces: map[float64]font.Face{}}
}

func (c *faceCache) get(size float64) font.Face {
	if face, ok := c.faces[size]; ok {
		return face
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		// NewFace only rejects invalid options.
		panic(fmt.Sprintf("render: new face: %v", err))
	}
	c.faces[size] = face
	return face
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}

// measure returns the advance width and line height of s at size.
func (c *faceCache) measure(s string, size float64) (w, h int) {
	face := c.get(size)
	m := face.Metrics()
	return font.MeasureString(face, s).Ceil(), (m.Ascent + m.Descent).Ceil()
}

func (c *faceCache) ascent(size float64) float64 {
	return float64(c.get(size).Metrics().Ascent) / 64
}

// ParseHexColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
