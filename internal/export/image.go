// Package export encodes word clouds and frequency tables as downloadable files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/toricodesthings/wordcloud-service/internal/render"
)

type ImageFormat string

const (
	PNG  ImageFormat = "png"
	JPEG ImageFormat = "jpeg"
	SVG  ImageFormat = "svg"
	PDF  ImageFormat = "pdf"
)

// ImageFormats lists the formats in the order they are offered to users.
var ImageFormats = []ImageFormat{PNG, JPEG, SVG, PDF}

func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "."))) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "svg":
		return SVG, nil
	case "pdf":
		return PDF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q (want png, jpeg, svg or pdf)", s)
	}
}

func (f ImageFormat) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case SVG:
		return "image/svg+xml"
	case PDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func (f ImageFormat) Extension() string { return string(f) }

// Artifact is an encoded file ready to be served as a download.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ScaleForResolution converts a dots-per-inch resolution into a raster scale
// factor. Canvas sizes are expressed at 100 dpi.
func ScaleForResolution(resolution int) float64 {
	if resolution <= 0 {
		return 1
	}
	return float64(resolution) / 100
}

// RasterSize is the pixel size of a width x height canvas drawn at resolution.
func RasterSize(width, height, resolution int) (int, int) {
	scale := ScaleForResolution(resolution)
	return int(math.Round(float64(width) * scale)), int(math.Round(float64(height) * scale))
}

// Rasterized reports whether f is drawn as a bitmap at the requested resolution.
func (f ImageFormat) Rasterized() bool { return f != SVG }

// EncodeImage renders the layout in the requested format. Raster formats and
// PDF honour resolution; SVG is written at the nominal canvas size.
func EncodeImage(r *render.Renderer, l render.Layout, f ImageFormat, resolution int) (Artifact, error) {
	var buf bytes.Buffer
	scale := ScaleForResolution(resolution)

	switch f {
	case PNG:
		if err := png.Encode(&buf, r.Raster(l, scale)); err != nil {
			return Artifact{}, fmt.Errorf("encode png: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&buf, r.Raster(l, scale), &jpeg.Options{Quality: 95}); err != nil {
			return Artifact{}, fmt.Errorf("encode jpeg: %w", err)
		}
	case SVG:
		if err := r.SVG(&buf, l, 1); err != nil {
			return Artifact{}, fmt.Errorf("encode svg: %w", err)
		}
	case PDF:
		if err := encodePDF(&buf, r.Raster(l, scale)); err != nil {
			return Artifact{}, err
		}
	default:
		return Artifact{}, fmt.Errorf("unsupported image format %q", f)
	}

	return Artifact{
		FileName:    "wordcloud." + f.Extension(),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

var disableConfigDir sync.Once

// encodePDF places the raster on a single page sized to the image.
func encodePDF(w io.Writer, img image.Image) error {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return fmt.Errorf("encode pdf: png: %w", err)
	}

	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImages(nil, w, []io.Reader{&pngBuf}, imp, conf); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}
