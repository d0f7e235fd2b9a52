// Package testutil provides builders for process graphs used across the
// package tests.
package testutil

import (
	"github.com/rendis/procperf/pkg/schema"
)

// Builder assembles a schema.Process element by element. Elements keep the
// order in which they were added.
type Builder struct {
	id       string
	elements []*schema.FlowNode
	byID     map[string]*schema.FlowNode
	meta     map[string]schema.MetaData
	gateways []*schema.GatewayInfo
	called   []*schema.Process
}

// NewBuilder starts a process with the given ID.
func NewBuilder(id string) *Builder {
	return &Builder{
		id:   id,
		byID: map[string]*schema.FlowNode{},
		meta: map[string]schema.MetaData{},
	}
}

// Add appends a flow element of the given kind.
func (b *Builder) Add(id string, kind schema.ElementKind) *Builder {
	n := &schema.FlowNode{ID: id, Kind: kind, ProcessID: b.id}
	b.elements = append(b.elements, n)
	b.byID[id] = n
	return b
}

// Nested appends a sub-process or call activity whose body is body.
func (b *Builder) Nested(id string, kind schema.ElementKind, body *schema.Process) *Builder {
	b.Add(id, kind)
	n := b.byID[id]
	n.Process = body
	if kind == schema.KindCallActivity {
		n.CalledElement = body.ID
		b.called = append(b.called, body)
	}
	return b
}

// Connect adds a sequence flow from -> to and wires both endpoints.
func (b *Builder) Connect(flowID, from, to string) *Builder {
	b.elements = append(b.elements, &schema.FlowNode{
		ID: flowID, Kind: schema.KindSequenceFlow, ProcessID: b.id,
		SourceRef: from, TargetRef: to,
	})
	b.byID[flowID] = b.elements[len(b.elements)-1]
	if n, ok := b.byID[from]; ok {
		n.Outgoing = append(n.Outgoing, flowID)
	}
	if n, ok := b.byID[to]; ok {
		n.Incoming = append(n.Incoming, flowID)
	}
	return b
}

// Chain connects consecutive elements, naming each flow "<from>_<to>".
func (b *Builder) Chain(ids ...string) *Builder {
	for i := 0; i+1 < len(ids); i++ {
		b.Connect(FlowID(ids[i], ids[i+1]), ids[i], ids[i+1])
	}
	return b
}

// Meta sets the metadata of an element.
func (b *Builder) Meta(id string, m schema.MetaData) *Builder {
	b.meta[id] = m
	return b
}

// Gateway registers a gateway classification.
func (b *Builder) Gateway(g *schema.GatewayInfo) *Builder {
	if n, ok := b.byID[g.ID]; ok {
		if g.Kind == "" {
			g.Kind = n.Kind
		}
		if g.Incoming == nil {
			g.Incoming = n.Incoming
		}
		if g.Outgoing == nil {
			g.Outgoing = n.Outgoing
		}
	}
	b.gateways = append(b.gateways, g)
	return b
}

// Split classifies a non-loop split gateway converging at join.
func (b *Builder) Split(id, join string) *Builder {
	return b.Gateway(&schema.GatewayInfo{
		ID: id, Pattern: schema.PatternSplit,
		PotentialMatches: []string{join}, MatchID: join,
	})
}

// Join classifies a non-loop join gateway closing split.
func (b *Builder) Join(id, split string) *Builder {
	return b.Gateway(&schema.GatewayInfo{ID: id, Pattern: schema.PatternJoin, MatchID: split})
}

// Node returns a previously added element.
func (b *Builder) Node(id string) *schema.FlowNode {
	return b.byID[id]
}

// Build returns the assembled process.
func (b *Builder) Build() *schema.Process {
	p := schema.NewProcess(b.id, "", b.elements, b.meta, schema.NewGatewayTable(b.gateways))
	p.Called = b.called
	return p
}

// FlowID is the flow name Chain generates for from -> to.
func FlowID(from, to string) string {
	return from + "_" + to
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Linear builds Start -> tasks... -> End with flows named by FlowID.
func Linear(id string, tasks ...string) *schema.Process {
	b := NewBuilder(id).Add("Start", schema.KindStartEvent)
	for _, t := range tasks {
		b.Add(t, schema.KindTask)
	}
	b.Add("End", schema.KindEndEvent)
	chain := append([]string{"Start"}, tasks...)
	chain = append(chain, "End")
	return b.Chain(chain...).Build()
}

// Diamond builds Start -> Split -> {A, B} -> Join -> End where the split and
// join have the given gateway kind. Branch tasks are named "A" and "B".
func Diamond(id string, kind schema.ElementKind) *Builder {
	b := NewBuilder(id).
		Add("Start", schema.KindStartEvent).
		Add("Split", kind).
		Add("A", schema.KindTask).
		Add("B", schema.KindTask).
		Add("Join", kind).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "Split")
	b.Chain("Split", "A", "Join")
	b.Chain("Split", "B", "Join")
	b.Chain("Join", "End")
	b.Split("Split", "Join").Join("Join", "Split")
	return b
}

// Definition converts a built process back into its document form,
// including sub-process bodies and called processes.
func Definition(p *schema.Process) *schema.ProcessDefinition {
	def := &schema.ProcessDefinition{ID: p.ID, Name: p.Name}
	for _, n := range p.Elements {
		el := schema.ElementDefinition{
			ID:            n.ID,
			Type:          n.Kind,
			SourceRef:     n.SourceRef,
			TargetRef:     n.TargetRef,
			CalledElement: n.CalledElement,
		}
		if n.Kind == schema.KindSubProcess && n.Process != nil {
			el.Process = Definition(n.Process)
		}
		def.Elements = append(def.Elements, el)
	}
	if len(p.Meta) > 0 {
		def.Metadata = make(map[string]schema.MetaData, len(p.Meta))
		for id, m := range p.Meta {
			def.Metadata[id] = m
		}
	}
	for _, g := range p.Gateways {
		info := *g
		def.Gateways = append(def.Gateways, &info)
	}
	for _, c := range p.Called {
		def.CalledProcesses = append(def.CalledProcesses, Definition(c))
	}
	return def
}
