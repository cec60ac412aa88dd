package dto

// FunnelDocument is the on-disk shape of a funnel (YAML or JSON files, SQL
// rows). Node content stays loosely typed until the compiler decodes it.
type FunnelDocument struct {
	ID     string         `json:"id" yaml:"id" mapstructure:"id"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Status string         `json:"status,omitempty" yaml:"status,omitempty" mapstructure:"status"`
	Nodes  []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
}

// NodeDocument is one step of a FunnelDocument.
// Content keys follow the authoring tool: text, buttons[].text,
// buttons[].nextNodeId, seconds, productName, price, currency, expression.
type NodeDocument struct {
	ID       string         `json:"id" yaml:"id" mapstructure:"id"`
	Type     string         `json:"type" yaml:"type" mapstructure:"type"`
	Position *int           `json:"position,omitempty" yaml:"position,omitempty" mapstructure:"position"`
	Content  map[string]any `json:"content,omitempty" yaml:"content,omitempty" mapstructure:"content"`
}
