package schema

import "fmt"

// ElementKind is the namespaced BPMN type of a flow element.
type ElementKind string

const (
	KindStartEvent             ElementKind = "bpmn:StartEvent"
	KindEndEvent               ElementKind = "bpmn:EndEvent"
	KindIntermediateCatchEvent ElementKind = "bpmn:IntermediateCatchEvent"
	KindIntermediateThrowEvent ElementKind = "bpmn:IntermediateThrowEvent"
	KindTask                   ElementKind = "bpmn:Task"
	KindSequenceFlow           ElementKind = "bpmn:SequenceFlow"
	KindExclusiveGateway       ElementKind = "bpmn:ExclusiveGateway"
	KindParallelGateway        ElementKind = "bpmn:ParallelGateway"
	KindEventBasedGateway      ElementKind = "bpmn:EventBasedGateway"
	KindSubProcess             ElementKind = "bpmn:SubProcess"
	KindCallActivity           ElementKind = "bpmn:CallActivity"
)

// SupportedKinds lists every element kind procperf understands.
var SupportedKinds = []ElementKind{
	KindStartEvent, KindEndEvent, KindIntermediateCatchEvent, KindIntermediateThrowEvent,
	KindTask, KindSequenceFlow, KindExclusiveGateway, KindParallelGateway,
	KindEventBasedGateway, KindSubProcess, KindCallActivity,
}

// IsEvent reports whether k is a start, end or intermediate event.
func (k ElementKind) IsEvent() bool {
	switch k {
	case KindStartEvent, KindEndEvent, KindIntermediateCatchEvent, KindIntermediateThrowEvent:
		return true
	}
	return false
}

// IsGateway reports whether k is one of the gateway kinds.
func (k ElementKind) IsGateway() bool {
	switch k {
	case KindExclusiveGateway, KindParallelGateway, KindEventBasedGateway:
		return true
	}
	return false
}

// IsNested reports whether k carries its own process body.
func (k ElementKind) IsNested() bool {
	return k == KindSubProcess || k == KindCallActivity
}

// Short returns the kind without its namespace prefix.
func (k ElementKind) Short() string {
	s := string(k)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[i+1:]
		}
	}
	return s
}

// FlowNode is one resolved BPMN element. Read-only after normalization.
type FlowNode struct {
	ID        string
	Kind      ElementKind
	ProcessID string

	// Sequence flows only.
	SourceRef string
	TargetRef string

	// Incoming and outgoing sequence flow IDs for every other kind.
	Incoming []string
	Outgoing []string

	// CalledElement is the process ID invoked by a call activity.
	CalledElement string

	// Process is the body of a sub-process or the resolved process of a
	// call activity. Nil for every other kind.
	Process *Process
}

// Next returns the ID of the element that follows n in a sequential walk:
// the target of a sequence flow, or the first outgoing flow otherwise.
func (n *FlowNode) Next() (string, bool) {
	if n.Kind == KindSequenceFlow {
		return n.TargetRef, n.TargetRef != ""
	}
	if len(n.Outgoing) == 0 {
		return "", false
	}
	return n.Outgoing[0], true
}

// MetaData holds the planned-performance attributes declared on an element.
// Empty strings and nil pointers mean the attribute is absent.
type MetaData struct {
	Duration    string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Occurrence  string   `json:"occurrence,omitempty" yaml:"occurrence,omitempty"`
	End         string   `json:"end,omitempty" yaml:"end,omitempty"`
	Cost        *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`
}

func (m MetaData) HasDuration() bool    { return m.Duration != "" }
func (m MetaData) HasOccurrence() bool  { return m.Occurrence != "" }
func (m MetaData) HasEnd() bool         { return m.End != "" }
func (m MetaData) HasCost() bool        { return m.Cost != nil }
func (m MetaData) HasProbability() bool { return m.Probability != nil }

// HasTimeInfo reports whether any of duration, occurrence or end is set.
func (m MetaData) HasTimeInfo() bool {
	return m.HasDuration() || m.HasOccurrence() || m.HasEnd()
}

// GatewayPattern tells whether a gateway fans out or converges.
type GatewayPattern string

const (
	PatternSplit GatewayPattern = "split"
	PatternJoin  GatewayPattern = "join"
)

// GatewayInfo is the externally supplied classification of one gateway.
// It is trusted as given.
type GatewayInfo struct {
	ID               string         `json:"id" yaml:"id"`
	Kind             ElementKind    `json:"kind" yaml:"kind"`
	Pattern          GatewayPattern `json:"pattern" yaml:"pattern"`
	IsParallel       bool           `json:"isParallel" yaml:"isParallel"`
	Incoming         []string       `json:"incoming,omitempty" yaml:"incoming,omitempty"`
	Outgoing         []string       `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	PotentialMatches []string       `json:"potentialMatches,omitempty" yaml:"potentialMatches,omitempty"`
	IsLoop           bool           `json:"isLoop" yaml:"isLoop"`
	MatchID          string         `json:"matchId,omitempty" yaml:"matchId,omitempty"`
}

// Parallel reports whether the gateway has parallel semantics.
func (g *GatewayInfo) Parallel() bool {
	return g.IsParallel || g.Kind == KindParallelGateway
}

// GatewayTable indexes gateway classifications by gateway ID.
type GatewayTable map[string]*GatewayInfo

// NewGatewayTable builds a table from a list of classifications.
func NewGatewayTable(infos []*GatewayInfo) GatewayTable {
	t := make(GatewayTable, len(infos))
	for _, g := range infos {
		t[g.ID] = g
	}
	return t
}

// Process is a resolved flow-node graph with its metadata and gateway table.
type Process struct {
	ID       string
	Name     string
	Elements []*FlowNode // document order
	Meta     map[string]MetaData
	Gateways GatewayTable
	Called   []*Process // directly called processes

	nodes map[string]*FlowNode
}

// NewProcess indexes elements by ID. Elements must have unique IDs.
func NewProcess(id, name string, elements []*FlowNode, meta map[string]MetaData, gateways GatewayTable) *Process {
	nodes := make(map[string]*FlowNode, len(elements))
	for _, el := range elements {
		nodes[el.ID] = el
	}
	if meta == nil {
		meta = map[string]MetaData{}
	}
	if gateways == nil {
		gateways = GatewayTable{}
	}
	return &Process{
		ID:       id,
		Name:     name,
		Elements: elements,
		Meta:     meta,
		Gateways: gateways,
		nodes:    nodes,
	}
}

// Node returns the element with the given ID.
func (p *Process) Node(id string) (*FlowNode, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// MetaOf returns the metadata declared for an element, or the zero value.
func (p *Process) MetaOf(id string) MetaData {
	return p.Meta[id]
}

// Bounds returns the IDs of the unique start and end events.
func (p *Process) Bounds() (startID, endID string, err error) {
	var starts, ends []string
	for _, el := range p.Elements {
		switch el.Kind {
		case KindStartEvent:
			starts = append(starts, el.ID)
		case KindEndEvent:
			ends = append(ends, el.ID)
		}
	}
	if len(starts) != 1 {
		return "", "", NewErrorf(ErrCodeValidation,
			"process %s must have exactly one start event, found %d", p.ID, len(starts))
	}
	if len(ends) != 1 {
		return "", "", NewErrorf(ErrCodeValidation,
			"process %s must have exactly one end event, found %d", p.ID, len(ends))
	}
	return starts[0], ends[0], nil
}

// Walk visits p and every directly or transitively called process once,
// parents before children.
func (p *Process) Walk(fn func(*Process)) {
	seen := map[*Process]bool{}
	var visit func(*Process)
	visit = func(q *Process) {
		if seen[q] {
			return
		}
		seen[q] = true
		fn(q)
		for _, c := range q.Called {
			visit(c)
		}
	}
	visit(p)
}

func (p *Process) String() string {
	return fmt.Sprintf("process %s (%d elements)", p.ID, len(p.Elements))
}
