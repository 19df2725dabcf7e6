package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Loader reads prompt templates from a directory. Templates are opaque
// UTF-8 text files named <name>.md; contents are cached after first read.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]string)}
}

// Load returns the raw template text for name.
func (l *Loader) Load(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if text, ok := l.cache[name]; ok {
		return text, nil
	}

	path := filepath.Join(l.dir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt template %q: %w", name, err)
	}

	text := string(data)
	l.cache[name] = text
	return text, nil
}

// LoadAndRender loads the named template and renders it with values.
func (l *Loader) LoadAndRender(name string, values map[string]string) (string, error) {
	template, err := l.Load(name)
	if err != nil {
		return "", err
	}
	return Render(template, values)
}
