package schema

// ProcessDefinition is the serializable input format for one process.
// A main process document carries its called processes inline; each called
// process may in turn carry its own.
type ProcessDefinition struct {
	ID              string               `json:"id" yaml:"id"`
	Name            string               `json:"name,omitempty" yaml:"name,omitempty"`
	Elements        []ElementDefinition  `json:"elements" yaml:"elements"`
	Metadata        map[string]MetaData  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Gateways        []*GatewayInfo       `json:"gateways,omitempty" yaml:"gateways,omitempty"`
	CalledProcesses []*ProcessDefinition `json:"calledProcesses,omitempty" yaml:"calledProcesses,omitempty"`
}

// ElementDefinition describes one flow element of a ProcessDefinition.
type ElementDefinition struct {
	ID            string             `json:"id" yaml:"id"`
	Type          ElementKind        `json:"$type" yaml:"$type"`
	SourceRef     string             `json:"sourceRef,omitempty" yaml:"sourceRef,omitempty"`
	TargetRef     string             `json:"targetRef,omitempty" yaml:"targetRef,omitempty"`
	Incoming      []string           `json:"incoming,omitempty" yaml:"incoming,omitempty"`
	Outgoing      []string           `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	CalledElement string             `json:"calledElement,omitempty" yaml:"calledElement,omitempty"`
	Process       *ProcessDefinition `json:"process,omitempty" yaml:"process,omitempty"` // sub-process body
}
