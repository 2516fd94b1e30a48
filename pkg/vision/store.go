package vision

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// DirStore loads templates from a directory by file name and caches decoded
// images. Templates are immutable on disk for the process lifetime.
type DirStore struct {
	root string

	mu    sync.Mutex
	cache map[string]Template
}

func NewDirStore(root string) *DirStore {
	return &DirStore{
		root:  root,
		cache: make(map[string]Template),
	}
}

func (s *DirStore) Load(name string) (Template, error) {
	if name == "" {
		return Template{}, fmt.Errorf("empty template name")
	}

	// Template names are plain file names; path traversal is not a lookup.
	if name != filepath.Base(name) {
		return Template{}, fmt.Errorf("invalid template name %q", name)
	}

	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tpl, ok := s.cache[name]; ok {
		return tpl, nil
	}

	tpl, err := LoadTemplate(filepath.Join(s.root, name))
	if err != nil {
		return Template{}, err
	}

	s.cache[name] = tpl

	return tpl, nil
}
