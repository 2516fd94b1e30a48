package vision

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
}

func TestDirStoreLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "button.png"), 8, 8)

	store := NewDirStore(dir)

	tpl, err := store.Load("button.png")
	require.NoError(t, err)
	assert.Equal(t, "button.png", tpl.Name)
	assert.Equal(t, 8, tpl.Image.Bounds().Dx())

	// Extension is optional.
	tpl2, err := store.Load("button")
	require.NoError(t, err)
	assert.Equal(t, tpl.Name, tpl2.Name)
}

func TestDirStoreMissingTemplate(t *testing.T) {
	store := NewDirStore(t.TempDir())

	_, err := store.Load("nope.png")
	assert.Error(t, err)
}

func TestDirStoreRejectsPathTraversal(t *testing.T) {
	store := NewDirStore(t.TempDir())

	_, err := store.Load("../etc/passwd.png")
	assert.Error(t, err)

	_, err = store.Load("")
	assert.Error(t, err)
}
