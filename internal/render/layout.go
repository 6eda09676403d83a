package render

import (
	"math"
	"math/rand/v2"

	"github.com/toricodesthings/wordcloud-service/internal/wordfreq"
)

const cellSize = 4

// Layout counts the words of text and places the most frequent ones.
// Empty text yields a layout with no words.
func (r *Renderer) Layout(text string, opts Options) Layout {
	return r.LayoutTable(wordfreq.Count(text), opts)
}

// LayoutTable places the first MaxWords entries of table. Each word is sized
// from its frequency relative to the previously placed word, then put at a
// uniformly random free position. A word that does not fit is first tried in
// the other orientation (unless PreferHorizontal pins it to one) and then
// shrunk; once the font would drop below
// MinFontSize the remaining words are dropped.
func (r *Renderer) LayoutTable(table wordfreq.Table, opts Options) Layout {
	opts = opts.withDefaults()
	out := Layout{Width: opts.Width, Height: opts.Height, Background: opts.Background}

	words := table.Head(opts.MaxWords)
	if len(words) == 0 {
		return out
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	faces := newFaceCache(r.font)
	defer faces.close()

	fontSize := opts.MaxFontSize
	if fontSize <= 0 {
		fontSize = r.initialFontSize(words, opts)
	}

	grid := newOccupancy(opts.Width, opts.Height, cellSize)
	maxCount := float64(words[0].Count)
	lastFreq := 1.0

	for i, e := range words {
		freq := float64(e.Count) / maxCount
		if opts.RelativeScaling != 0 {
			fontSize = int(math.Round((opts.RelativeScaling*(freq/lastFreq) + (1 - opts.RelativeScaling)) * float64(fontSize)))
		}

		vertical := rng.Float64() >= opts.PreferHorizontal
		triedOther := false
		var (
			x, y, w, h int
			ok         bool
		)
		for fontSize >= opts.MinFontSize {
			w, h = faces.measure(e.Word, float64(fontSize))
			if vertical {
				w, h = h, w
			}
			if x, y, ok = grid.sample(w+opts.Margin, h+opts.Margin, rng); ok {
				break
			}
			if !triedOther && opts.PreferHorizontal > 0 && opts.PreferHorizontal < 1 {
				vertical = !vertical
				triedOther = true
				continue
			}
			fontSize -= opts.FontStep
			vertical = opts.PreferHorizontal <= 0
		}
		if !ok {
			out.Dropped = len(words) - i
			break
		}

		grid.mark(x, y, w+opts.Margin, h+opts.Margin)
		out.Words = append(out.Words, Word{
			Text:     e.Word,
			Count:    e.Count,
			FontSize: fontSize,
			X:        x + opts.Margin/2,
			Y:        y + opts.Margin/2,
			W:        w,
			H:        h,
			Vertical: vertical,
			Color:    sample(opts.Palette, rng.Float64()),
		})
		lastFreq = freq
	}
	return out
}

// initialFontSize lays out the two most frequent words starting from the
// canvas height and takes the harmonic mean of the sizes they ended up with.
func (r *Renderer) initialFontSize(words wordfreq.Table, opts Options) int {
	trial := opts
	trial.MaxWords = 2
	trial.MaxFontSize = opts.Height
	if trial.Seed == 0 {
		trial.Seed = 1
	}
	placed := r.LayoutTable(words.Head(2), trial).Words

	switch len(placed) {
	case 0:
		return opts.MinFontSize
	case 1:
		return placed[0].FontSize
	default:
		a, b := float64(placed[0].FontSize), float64(placed[1].FontSize)
		return int(2 * a * b / (a + b))
	}
}

// occupancy tracks used canvas cells and answers "is this box free" in
// constant time through a summed-area table.
type occupancy struct {
	cell       int
	cols, rows int
	used       []bool
	sat        []int32
}

func newOccupancy(width, height, cell int) *occupancy {
	o := &occupancy{cell: cell, cols: width / cell, rows: height / cell}
	o.used = make([]bool, o.cols*o.rows)
	o.sat = make([]int32, (o.cols+1)*(o.rows+1))
	return o
}

func (o *occupancy) rebuild() {
	stride := o.cols + 1
	for r := 0; r < o.rows; r++ {
		var rowSum int32
		for c := 0; c < o.cols; c++ {
			if o.used[r*o.cols+c] {
				rowSum++
			}
			o.sat[(r+1)*stride+c+1] = o.sat[r*stride+c+1] + rowSum
		}
	}
}

func (o *occupancy) free(c, r, bw, bh int) bool {
	stride := o.cols + 1
	sum := o.sat[(r+bh)*stride+c+bw] - o.sat[r*stride+c+bw] - o.sat[(r+bh)*stride+c] + o.sat[r*stride+c]
	return sum == 0
}

func (o *occupancy) boxCells(w, h int) (bw, bh int) {
	bw = (w + o.cell - 1) / o.cell
	bh = (h + o.cell - 1) / o.cell
	return max(bw, 1), max(bh, 1)
}

// sample picks a uniformly random free position for a w x h box and returns
// its top-left corner in pixels.
func (o *occupancy) sample(w, h int, rng *rand.Rand) (x, y int, ok bool) {
	bw, bh := o.boxCells(w, h)
	if bw > o.cols || bh > o.rows {
		return 0, 0, false
	}

	count := 0
	for r := 0; r <= o.rows-bh; r++ {
		for c := 0; c <= o.cols-bw; c++ {
			if o.free(c, r, bw, bh) {
				count++
			}
		}
	}
	if count == 0 {
		return 0, 0, false
	}

	k := rng.IntN(count)
	for r := 0; r <= o.rows-bh; r++ {
		for c := 0; c <= o.cols-bw; c++ {
			if !o.free(c, r, bw, bh) {
				continue
			}
			if k == 0 {
				return c * o.cell, r * o.cell, true
			}
			k--
		}
	}
	return 0, 0, false
}

func (o *occupancy) mark(x, y, w, h int) {
	bw, bh := o.boxCells(w, h)
	c0, r0 := x/o.cell, y/o.cell
	for r := r0; r < r0+bh && r < o.rows; r++ {
		for c := c0; c < c0+bw && c < o.cols; c++ {
			o.used[r*o.cols+c] = true
		}
	}
	o.rebuild()
}
