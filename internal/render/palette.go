package render

import "image/color"

var viridis = []color.RGBA{
	{0x44, 0x01, 0x54, 0xff},
	{0x48, 0x24, 0x75, 0xff},
	{0x41, 0x44, 0x87, 0xff},
	{0x35, 0x5f, 0x8d, 0xff},
	{0x2a, 0x78, 0x8e, 0xff},
	{0x21, 0x91, 0x8c, 0xff},
	{0x22, 0xa8, 0x84, 0xff},
	{0x44, 0xbf, 0x70, 0xff},
	{0x7a, 0xd1, 0x51, 0xff},
	{0xbd, 0xdf, 0x26, 0xff},
	{0xfd, 0xe7, 0x25, 0xff},
}

// Viridis returns evenly spaced stops of the viridis colour map.
func Viridis() []color.RGBA {
	out := make([]color.RGBA, len(viridis))
	copy(out, viridis)
	return out
}

// sample interpolates the palette at t in [0, 1].
func sample(palette []color.RGBA, t float64) color.RGBA {
	switch {
	case len(palette) == 0:
		return color.RGBA{A: 0xff}
	case len(palette) == 1 || t <= 0:
		return palette[0]
	case t >= 1:
		return palette[len(palette)-1]
	}
	pos := t * float64(len(palette)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := palette[i], palette[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*f + 0.5)
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}
