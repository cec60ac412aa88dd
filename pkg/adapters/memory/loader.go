package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/funnel/pkg/domain"
)

// Loader implements ports.DefinitionStore over an in-memory map.
type Loader struct {
	mu      sync.RWMutex
	funnels map[string]domain.FunnelDefinition
}

// NewLoader creates a Loader holding the given definitions. Nodes are
// ordered by Position.
func NewLoader(defs ...domain.FunnelDefinition) *Loader {
	l := &Loader{funnels: make(map[string]domain.FunnelDefinition, len(defs))}
	for _, def := range defs {
		l.Put(def)
	}
	return l
}

// Put adds or replaces a definition. Used by tests and by the file watcher.
func (l *Loader) Put(def domain.FunnelDefinition) {
	def = copyDefinition(def)
	sort.SliceStable(def.Nodes, func(i, j int) bool {
		return def.Nodes[i].Position < def.Nodes[j].Position
	})
	for i := range def.Nodes {
		if def.Nodes[i].FunnelID == "" {
			def.Nodes[i].FunnelID = def.ID
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.funnels[def.ID] = def
}

// GetFunnel returns a copy of the definition.
func (l *Loader) GetFunnel(_ context.Context, id string) (*domain.FunnelDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.funnels[id]
	if !ok {
		return nil, fmt.Errorf("funnel %q: %w", id, domain.ErrFunnelNotFound)
	}
	out := copyDefinition(def)
	return &out, nil
}

// ListFunnels returns all funnel IDs in sorted order.
func (l *Loader) ListFunnels(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.funnels))
	for k := range l.funnels {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

func copyDefinition(def domain.FunnelDefinition) domain.FunnelDefinition {
	nodes := make([]domain.Node, len(def.Nodes))
	copy(nodes, def.Nodes)
	def.Nodes = nodes
	return def
}
