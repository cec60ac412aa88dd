package domain

// FunnelStatus is the activation status of a funnel definition.
type FunnelStatus string

const (
	FunnelDraft    FunnelStatus = "DRAFT"
	FunnelActive   FunnelStatus = "ACTIVE"
	FunnelArchived FunnelStatus = "ARCHIVED"
)

// FunnelDefinition is the read-only graph a visitor walks through.
// Nodes are kept in ordinal (creation) order.
type FunnelDefinition struct {
	ID     string       `json:"id" yaml:"id"`
	Name   string       `json:"name,omitempty" yaml:"name,omitempty"`
	Status FunnelStatus `json:"status" yaml:"status"`
	Nodes  []Node       `json:"nodes" yaml:"nodes"`
}

// IsActive reports whether new visitors may enter the funnel.
func (f *FunnelDefinition) IsActive() bool {
	return f.Status == FunnelActive
}

// First returns the ordinal-0 node, or nil for an empty funnel.
func (f *FunnelDefinition) First() *Node {
	if len(f.Nodes) == 0 {
		return nil
	}
	return &f.Nodes[0]
}

// Node returns the node with the given ID if it belongs to this funnel.
func (f *FunnelDefinition) Node(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Successor returns the node immediately following id by ordinal.
// The second result is false when id is the last node or unknown.
func (f *FunnelDefinition) Successor(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID != id {
			continue
		}
		if i+1 < len(f.Nodes) {
			return &f.Nodes[i+1], true
		}
		return nil, false
	}
	return nil, false
}
