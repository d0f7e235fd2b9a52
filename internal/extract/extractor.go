// Package extract turns one flow element into a flat performance record.
package extract

import (
	"github.com/rendis/procperf/internal/timeinfo"
	"github.com/rendis/procperf/pkg/schema"
)

// DefaultProbability applies to every element without an explicit value.
const DefaultProbability = 100.0

// Extractor builds ElementInfo records. It is stateless and safe for
// concurrent use.
type Extractor struct {
	settings schema.Settings
}

// New creates an Extractor for the given settings.
func New(settings schema.Settings) *Extractor {
	return &Extractor{settings: settings}
}

// Extract builds the ElementInfo for node, which must belong to p.
func (e *Extractor) Extract(p *schema.Process, node *schema.FlowNode) *schema.ElementInfo {
	meta := p.MetaOf(node.ID)
	ti := timeinfo.Resolve(meta)

	info := &schema.ElementInfo{
		Kind:            node.Kind,
		ID:              node.ID,
		ParentProcessID: p.ID,
		Duration:        ti.Duration,
		Start:           ti.Start,
		End:             ti.End,
		Probability:     DefaultProbability,
	}
	if meta.HasCost() {
		info.Cost = *meta.Cost
	}

	if node.Kind.IsEvent() || node.Kind == schema.KindSequenceFlow {
		info.Cost = 0
	}
	if node.Kind == schema.KindSequenceFlow && !e.settings.ConsiderPerformanceInSequenceFlows {
		info.Duration = 0
	}

	if meta.HasProbability() {
		info.Probability = *meta.Probability
	} else if node.Kind == schema.KindSequenceFlow {
		if n, ok := uniformBranchCount(p, node); ok {
			info.Probability = 100.0 / float64(n)
		}
	}

	if node.Kind.IsNested() {
		info.Nested = node.Process
		info.CalledProcess = node.CalledElement
	}
	return info
}

// uniformBranchCount returns the number of outgoing flows of the exclusive or
// event-based split that flow leaves, provided none of them declares an
// explicit probability.
func uniformBranchCount(p *schema.Process, flow *schema.FlowNode) (int, bool) {
	source, ok := p.Node(flow.SourceRef)
	if !ok {
		return 0, false
	}
	if source.Kind != schema.KindExclusiveGateway && source.Kind != schema.KindEventBasedGateway {
		return 0, false
	}
	if gw, ok := p.Gateways[source.ID]; ok && gw.Pattern != schema.PatternSplit {
		return 0, false
	}
	n := len(source.Outgoing)
	if n <= 1 {
		return 0, false
	}
	for _, id := range source.Outgoing {
		if p.MetaOf(id).HasProbability() {
			return 0, false
		}
	}
	return n, true
}
