package render

import (
	"fmt"
	"image"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/fogleman/gg"
)

// Raster draws the layout at scale times its nominal size.
func (r *Renderer) Raster(l Layout, scale float64) image.Image {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(l.Width) * scale))
	h := int(math.Round(float64(l.Height) * scale))

	dc := gg.NewContext(max(w, 1), max(h, 1))
	dc.SetColor(l.Background)
	dc.Clear()

	faces := newFaceCache(r.font)
	defer faces.close()

	for _, word := range l.Words {
		size := float64(word.FontSize) * scale
		dc.SetFontFace(faces.get(size))
		dc.SetColor(word.Color)
		ascent := faces.ascent(size)

		x := float64(word.X) * scale
		y := float64(word.Y) * scale
		if !word.Vertical {
			dc.DrawString(word.Text, x, y+ascent)
			continue
		}

		// Rotated a quarter turn counter-clockwise so the text reads bottom to top.
		dc.Push()
		dc.Translate(x, y+float64(word.H)*scale)
		dc.Rotate(-math.Pi / 2)
		dc.DrawString(word.Text, 0, ascent)
		dc.Pop()
	}
	return dc.Image()
}

// SVG writes the layout as an SVG document at scale times its nominal size.
func (r *Renderer) SVG(w io.Writer, l Layout, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	ew := &errWriter{w: w}
	canvas := svg.New(ew)

	width := int(math.Round(float64(l.Width) * scale))
	height := int(math.Round(float64(l.Height) * scale))
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+hexColor(l.Background))

	faces := newFaceCache(r.font)
	defer faces.close()

	for _, word := range l.Words {
		size := float64(word.FontSize) * scale
		ascent := int(math.Round(faces.ascent(size)))
		style := fmt.Sprintf("font-family:%s;font-size:%.0fpx;fill:%s", r.family, size, hexColor(word.Color))

		x := int(math.Round(float64(word.X) * scale))
		y := int(math.Round(float64(word.Y) * scale))
		if !word.Vertical {
			canvas.Text(x, y+ascent, word.Text, style)
			continue
		}
		bottom := int(math.Round(float64(word.Y+word.H) * scale))
		canvas.Text(0, ascent, word.Text, fmt.Sprintf(`transform="translate(%d,%d) rotate(-90)"`, x, bottom), style)
	}
	canvas.End()
	return ew.err
}

// errWriter remembers the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
