package validation

import (
	"fmt"

	"github.com/rendis/procperf/pkg/schema"
)

// Fixed messages for flow cardinality problems.
const (
	msgStartOut    = "start event must have exactly one outgoing flow"
	msgEndIn       = "end event must have exactly one incoming flow"
	msgGateway     = "gateway must have one incoming and several outgoing flows, or several incoming and one outgoing flow"
	msgFlowRefs    = "sequence flow must have a source and a target"
	msgSingleInOut = "%s must have exactly one incoming and one outgoing flow"
)

// ValidateInAndOut checks the flow cardinality of node and records an
// IN_AND_OUT error on result when it is wrong. It reports whether the node
// passed.
func ValidateInAndOut(node *schema.FlowNode, result *schema.ValidationResult) bool {
	in, out := len(node.Incoming), len(node.Outgoing)

	var msg string
	switch {
	case node.Kind == schema.KindStartEvent:
		if out != 1 {
			msg = msgStartOut
		}
	case node.Kind == schema.KindEndEvent:
		if in != 1 {
			msg = msgEndIn
		}
	case node.Kind.IsGateway():
		split := in == 1 && out > 1
		join := in > 1 && out == 1
		if !split && !join {
			msg = msgGateway
		}
	case node.Kind == schema.KindSequenceFlow:
		if node.SourceRef == "" || node.TargetRef == "" {
			msg = msgFlowRefs
		}
	default:
		if in != 1 || out != 1 {
			msg = fmt.Sprintf(msgSingleInOut, node.Kind.Short())
		}
	}

	if msg == "" {
		return true
	}
	result.AddError(node.ID, schema.ProblemInAndOut, msg)
	return false
}
