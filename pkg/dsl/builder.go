package dsl

import (
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
)

// Builder manages the funnel construction.
type Builder struct {
	def   domain.FunnelDefinition
	nodes []*NodeBuilder
	index map[string]*NodeBuilder
}

// New creates a builder for an ACTIVE funnel.
func New(id string) *Builder {
	return &Builder{
		def: domain.FunnelDefinition{
			ID:     id,
			Name:   id,
			Status: domain.FunnelActive,
		},
		index: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.def.Name = name
	return b
}

// Status overrides the funnel status.
func (b *Builder) Status(status domain.FunnelStatus) *Builder {
	b.def.Status = status
	return b
}

// Add appends a node to the funnel.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.index[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:       id,
			FunnelID: b.def.ID,
			Position: len(b.nodes),
		},
	}
	b.nodes = append(b.nodes, nb)
	b.index[id] = nb
	return nb
}

// Definition returns the funnel built so far.
func (b *Builder) Definition() domain.FunnelDefinition {
	def := b.def
	def.Nodes = make([]domain.Node, 0, len(b.nodes))
	for _, nb := range b.nodes {
		def.Nodes = append(def.Nodes, nb.Build())
	}
	return def
}

// Build compiles the funnel into a memory.Loader.
func (b *Builder) Build() *memory.Loader {
	return memory.NewLoader(b.Definition())
}
