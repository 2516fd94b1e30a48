package vision

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patternImage builds a deterministic pseudo-random image so correlation has
// real variance to latch onto.
func patternImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return img
}

// embed copies src into dst at (ox, oy).
func embed(dst *image.RGBA, src image.Image, ox, oy int) {
	b := src.Bounds()

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(ox+x, oy+y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}

func TestMatchFindsEmbeddedTemplate(t *testing.T) {
	tpl := patternImage(12, 8, 7)
	region := patternImage(100, 60, 99)
	embed(region, tpl, 41, 23)

	result, found := Match(Template{Name: "widget.png", Image: tpl}, region, 0.80)
	require.True(t, found)
	assert.Equal(t, 41, result.Bounds.X)
	assert.Equal(t, 23, result.Bounds.Y)
	assert.Equal(t, 12, result.Bounds.Width)
	assert.Equal(t, 8, result.Bounds.Height)
	assert.InDelta(t, 1.0, result.Confidence, 0.01)
	assert.Equal(t, "widget.png", result.Template)
}

func TestMatchBelowThreshold(t *testing.T) {
	tpl := patternImage(12, 8, 7)
	region := patternImage(100, 60, 99) // template never embedded

	result, found := Match(Template{Name: "widget.png", Image: tpl}, region, 0.80)
	assert.False(t, found)
	assert.Nil(t, result)
}

func TestMatchCenter(t *testing.T) {
	tpl := patternImage(10, 10, 3)
	region := patternImage(64, 64, 5)
	embed(region, tpl, 20, 30)

	result, found := Match(Template{Image: tpl}, region, 0.9)
	require.True(t, found)

	cx, cy := result.Center()
	assert.Equal(t, 25, cx)
	assert.Equal(t, 35, cy)
}

func TestMatchTemplateLargerThanRegion(t *testing.T) {
	tpl := patternImage(50, 50, 1)
	region := patternImage(20, 20, 2)

	_, found := Match(Template{Image: tpl}, region, 0.1)
	assert.False(t, found)
}

func TestMatchIsPure(t *testing.T) {
	tpl := patternImage(8, 8, 11)
	region := patternImage(40, 40, 13)
	embed(region, tpl, 5, 9)

	first, ok1 := Match(Template{Image: tpl}, region, 0.8)
	second, ok2 := Match(Template{Image: tpl}, region, 0.8)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, *first, *second)
}

func TestScoreFlatRegion(t *testing.T) {
	tpl := patternImage(8, 8, 11)
	flat := image.NewRGBA(image.Rect(0, 0, 40, 40))

	assert.Equal(t, 0.0, Score(Template{Image: tpl}, flat))
}
