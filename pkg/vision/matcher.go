// Package vision implements template matching for locating UI widgets in
// captured screen regions. Matching is zero-mean normalized cross
// correlation over grayscale pixels; template and capture are assumed to be
// at the same DPI/scale.
package vision

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/deskpilot/deskpilot/pkg/models"
)

// Template is a reference image representing a UI widget to locate.
type Template struct {
	Name  string
	Image image.Image
}

// LoadTemplate reads a PNG template from disk.
func LoadTemplate(path string) (Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return Template{}, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return Template{}, fmt.Errorf("decode template %s: %w", path, err)
	}

	return Template{Name: filepath.Base(path), Image: img}, nil
}

// Match slides the template over the region and returns the best-aligned
// position when its correlation score reaches the threshold. Coordinates in
// the result are relative to the region's top-left corner. Match is a pure
// function of its inputs.
func Match(tpl Template, region image.Image, threshold float64) (*models.MatchResult, bool) {
	score, x, y := bestAlignment(tpl.Image, region)
	if score < threshold {
		return nil, false
	}

	tb := tpl.Image.Bounds()

	return &models.MatchResult{
		Bounds: models.Rect{
			X:      x,
			Y:      y,
			Width:  tb.Dx(),
			Height: tb.Dy(),
		},
		Confidence: score,
		Template:   tpl.Name,
	}, true
}

// Score returns the best correlation score without applying a threshold.
// Useful for calibrating thresholds against fixture captures.
func Score(tpl Template, region image.Image) float64 {
	score, _, _ := bestAlignment(tpl.Image, region)

	return score
}

func bestAlignment(tpl, region image.Image) (float64, int, int) {
	t := grayPlane(tpl)
	r := grayPlane(region)

	tw, th := len(t[0]), len(t)
	rw, rh := len(r[0]), len(r)

	if tw == 0 || th == 0 || tw > rw || th > rh {
		return -1, 0, 0
	}

	tMean := planeMean(t)
	tVar := 0.0

	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			d := t[y][x] - tMean
			tVar += d * d
		}
	}

	best, bestX, bestY := -1.0, 0, 0

	for oy := 0; oy+th <= rh; oy++ {
		for ox := 0; ox+tw <= rw; ox++ {
			score := correlate(t, r, ox, oy, tMean, tVar)
			if score > best {
				best, bestX, bestY = score, ox, oy
			}
		}
	}

	return best, bestX, bestY
}

// correlate computes zero-mean NCC of the template against the region patch
// at (ox, oy). A flat patch or flat template has no defined correlation and
// scores 0.
func correlate(t, r [][]float64, ox, oy int, tMean, tVar float64) float64 {
	tw, th := len(t[0]), len(t)

	pMean := 0.0

	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			pMean += r[oy+y][ox+x]
		}
	}

	pMean /= float64(tw * th)

	num, pVar := 0.0, 0.0

	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			td := t[y][x] - tMean
			pd := r[oy+y][ox+x] - pMean
			num += td * pd
			pVar += pd * pd
		}
	}

	denom := math.Sqrt(tVar * pVar)
	if denom == 0 {
		return 0
	}

	return num / denom
}

func grayPlane(img image.Image) [][]float64 {
	b := img.Bounds()
	plane := make([][]float64, b.Dy())

	for y := 0; y < b.Dy(); y++ {
		row := make([]float64, b.Dx())

		for x := 0; x < b.Dx(); x++ {
			cr, cg, cb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Rec. 601 luma on 16-bit channels.
			row[x] = 0.299*float64(cr) + 0.587*float64(cg) + 0.114*float64(cb)
		}

		plane[y] = row
	}

	return plane
}

func planeMean(p [][]float64) float64 {
	sum, n := 0.0, 0

	for _, row := range p {
		for _, v := range row {
			sum += v
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return sum / float64(n)
}
