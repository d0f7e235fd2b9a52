package validation

import (
	"fmt"

	"github.com/rendis/procperf/internal/timeinfo"
	"github.com/rendis/procperf/pkg/schema"
)

// timed reports whether elements of kind carry planned performance.
func timed(kind schema.ElementKind, settings schema.Settings) bool {
	switch kind {
	case schema.KindTask, schema.KindSubProcess, schema.KindCallActivity,
		schema.KindIntermediateCatchEvent, schema.KindIntermediateThrowEvent:
		return true
	case schema.KindSequenceFlow:
		return settings.ConsiderPerformanceInSequenceFlows
	}
	return false
}

// ValidateTimeInfo checks the time attributes of node against the requested
// calculations. Malformed values are reported and then treated as absent.
func ValidateTimeInfo(p *schema.Process, node *schema.FlowNode, settings schema.Settings, result *schema.ValidationResult) {
	if timed(node.Kind, settings) {
		dur, occ, end := wellFormed(node.ID, p.MetaOf(node.ID), result)

		if settings.Has(schema.CalcTime) && !settings.IgnoreMissingBasicPerformance {
			if !dur && !(occ && end) {
				result.AddError(node.ID, schema.ProblemMissingTime,
					"element needs a duration, or both an occurrence and an end date")
			}
		}

		pair := (dur && occ) || (dur && end) || (occ && end)
		if settings.Has(schema.CalcDates) && !pair && !settings.IgnoreMissingOptionalPerformance {
			result.AddError(node.ID, schema.ProblemMissingDates,
				"element needs two of duration, occurrence and end date")
		}
	}

	if settings.Has(schema.CalcDates) {
		ValidateDateAscension(p, node, result)
	}
}

// wellFormed reports which time attributes are present and parseable,
// recording a MALFORMED_TIME error for every present but unparseable one.
func wellFormed(id string, meta schema.MetaData, result *schema.ValidationResult) (dur, occ, end bool) {
	if meta.HasDuration() {
		if _, err := timeinfo.ParseDuration(meta.Duration); err != nil {
			result.AddError(id, schema.ProblemMalformedTime,
				fmt.Sprintf("duration %q is not an ISO-8601 duration", meta.Duration))
		} else {
			dur = true
		}
	}
	if meta.HasOccurrence() {
		if _, err := timeinfo.ParseTimestamp(meta.Occurrence); err != nil {
			result.AddError(id, schema.ProblemMalformedTime,
				fmt.Sprintf("occurrence %q is not a valid date", meta.Occurrence))
		} else {
			occ = true
		}
	}
	if meta.HasEnd() {
		if _, err := timeinfo.ParseTimestamp(meta.End); err != nil {
			result.AddError(id, schema.ProblemMalformedTime,
				fmt.Sprintf("end %q is not a valid date", meta.End))
		} else {
			end = true
		}
	}
	return dur, occ, end
}

// ValidateCost requires a declared cost on activities when costs are
// calculated.
func ValidateCost(p *schema.Process, node *schema.FlowNode, settings schema.Settings, result *schema.ValidationResult) {
	if !settings.Has(schema.CalcCost) || settings.IgnoreMissingBasicPerformance {
		return
	}
	switch node.Kind {
	case schema.KindTask, schema.KindSubProcess, schema.KindCallActivity:
	default:
		return
	}
	if !p.MetaOf(node.ID).HasCost() {
		result.AddError(node.ID, schema.ProblemMissingCost, "element needs a cost")
	}
}

// ascends reports whether elements of kind take part in the date ascension
// check.
func ascends(kind schema.ElementKind) bool {
	return !kind.IsGateway() && kind != schema.KindSequenceFlow && kind != schema.KindEndEvent
}

// ValidateDateAscension checks that node ends no earlier than it starts, and
// that neither its start nor its end is later than the start or end of an
// element one step forward (passing through at most one gateway). Each
// comparison runs only when both dates are known. Longer chains are not
// followed.
func ValidateDateAscension(p *schema.Process, node *schema.FlowNode, result *schema.ValidationResult) {
	meta := p.MetaOf(node.ID)
	if !ascends(node.Kind) || !meta.HasTimeInfo() {
		return
	}

	ti := timeinfo.Resolve(meta)
	if ti.Start != nil && ti.End != nil && ti.End.Before(*ti.Start) {
		result.AddError(node.ID, schema.ProblemDateOrder, "end date is before the occurrence date")
	}
	if ti.Start == nil && ti.End == nil {
		return
	}

	for _, succ := range successors(p, node) {
		sti := timeinfo.Resolve(p.MetaOf(succ.ID))
		if ti.Start != nil && sti.Start != nil && ti.Start.After(*sti.Start) {
			result.AddError(node.ID, schema.ProblemDateAscension,
				fmt.Sprintf("following element %s starts before this element starts", succ.ID))
		}
		if ti.End != nil && sti.End != nil && ti.End.After(*sti.End) {
			result.AddError(node.ID, schema.ProblemDateAscension,
				fmt.Sprintf("following element %s ends before this element ends", succ.ID))
		}
	}
}

// successors returns the non-gateway elements one step after node, looking
// through at most one gateway.
func successors(p *schema.Process, node *schema.FlowNode) []*schema.FlowNode {
	var out []*schema.FlowNode
	for _, t := range targets(p, node) {
		if !t.Kind.IsGateway() {
			out = append(out, t)
			continue
		}
		for _, t2 := range targets(p, t) {
			if !t2.Kind.IsGateway() {
				out = append(out, t2)
			}
		}
	}
	return out
}

func targets(p *schema.Process, node *schema.FlowNode) []*schema.FlowNode {
	if node.Kind == schema.KindSequenceFlow {
		if t, ok := p.Node(node.TargetRef); ok {
			return []*schema.FlowNode{t}
		}
		return nil
	}
	var out []*schema.FlowNode
	for _, id := range node.Outgoing {
		flow, ok := p.Node(id)
		if !ok {
			continue
		}
		if t, ok := p.Node(flow.TargetRef); ok {
			out = append(out, t)
		}
	}
	return out
}
