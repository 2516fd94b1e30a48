package vision

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// DirSink writes screenshots as timestamped PNG files under a directory.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink {
	return &DirSink{root: root}
}

func (s *DirSink) Save(name string, img image.Image) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	path := filepath.Join(s.root, fmt.Sprintf("%s-%s.png", filepath.Base(name), stamp))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create screenshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}

	return path, nil
}
