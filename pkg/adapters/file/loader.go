package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/funnel/internal/compiler"
	"github.com/aretw0/funnel/pkg/domain"
)

// Loader implements ports.DefinitionStore over a directory of funnel
// documents (*.yaml, *.yml, *.json). Files are parsed once on Load; call
// Reload to pick up edits.
type Loader struct {
	dir    string
	parser *compiler.Parser

	mu      sync.RWMutex
	funnels map[string]*domain.FunnelDefinition
	sources map[string]string // funnel ID -> file
}

// NewLoader parses every funnel document in dir.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{
		dir:    dir,
		parser: compiler.NewParser(),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the directory. On error the previous definitions stay in
// place.
func (l *Loader) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read funnel directory: %w", err)
	}

	funnels := make(map[string]*domain.FunnelDefinition)
	sources := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isFunnelFile(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		def, err := l.parser.ParseYAML(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := sources[def.ID]; dup {
			return fmt.Errorf("funnel %q defined twice (%s, %s)", def.ID, prev, path)
		}
		funnels[def.ID] = def
		sources[def.ID] = path
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.funnels = funnels
	l.sources = sources
	return nil
}

// GetFunnel returns a copy of the definition.
func (l *Loader) GetFunnel(_ context.Context, id string) (*domain.FunnelDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.funnels[id]
	if !ok {
		return nil, fmt.Errorf("funnel %q: %w", id, domain.ErrFunnelNotFound)
	}
	out := *def
	out.Nodes = append([]domain.Node(nil), def.Nodes...)
	return &out, nil
}

// ListFunnels returns all funnel IDs in sorted order.
func (l *Loader) ListFunnels(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.funnels))
	for id := range l.funnels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Source returns the file a funnel was loaded from.
func (l *Loader) Source(id string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	path, ok := l.sources[id]
	return path, ok
}

func isFunnelFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
