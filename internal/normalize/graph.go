package normalize

import (
	"slices"

	"github.com/rendis/procperf/pkg/schema"
)

// build turns one definition into a Process. Sub-process bodies are built
// inline; called processes are left to the caller.
func build(def *schema.ProcessDefinition, body bool) (*schema.Process, error) {
	if def.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "process has no id")
	}
	if body && len(def.CalledProcesses) > 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"sub-process body %s cannot declare called processes", def.ID)
	}

	nodes := make([]*schema.FlowNode, 0, len(def.Elements))
	byID := make(map[string]*schema.FlowNode, len(def.Elements))
	for _, el := range def.Elements {
		if !slices.Contains(schema.SupportedKinds, el.Type) {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"unsupported element type %q", el.Type).WithElement(el.ID)
		}
		if _, dup := byID[el.ID]; dup {
			return nil, schema.NewError(schema.ErrCodeValidation, "duplicate element id").WithElement(el.ID)
		}

		n := &schema.FlowNode{
			ID:            el.ID,
			Kind:          el.Type,
			ProcessID:     def.ID,
			SourceRef:     el.SourceRef,
			TargetRef:     el.TargetRef,
			Incoming:      slices.Clone(el.Incoming),
			Outgoing:      slices.Clone(el.Outgoing),
			CalledElement: el.CalledElement,
		}

		switch el.Type {
		case schema.KindSubProcess:
			if el.Process == nil {
				return nil, schema.NewError(schema.ErrCodeValidation, "sub-process has no body").WithElement(el.ID)
			}
			p, err := build(el.Process, true)
			if err != nil {
				return nil, err
			}
			n.Process = p
		case schema.KindCallActivity:
			if el.CalledElement == "" {
				return nil, schema.NewError(schema.ErrCodeValidation, "call activity has no called element").WithElement(el.ID)
			}
		}

		nodes = append(nodes, n)
		byID[n.ID] = n
	}

	wireFlows(nodes, byID)

	gateways := make([]*schema.GatewayInfo, 0, len(def.Gateways))
	for _, g := range def.Gateways {
		n, ok := byID[g.ID]
		if !ok || !n.Kind.IsGateway() {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"gateway classification refers to no gateway element").WithElement(g.ID)
		}
		info := *g
		if info.Kind == "" {
			info.Kind = n.Kind
		}
		if len(info.Incoming) == 0 {
			info.Incoming = slices.Clone(n.Incoming)
		}
		if len(info.Outgoing) == 0 {
			info.Outgoing = slices.Clone(n.Outgoing)
		}
		gateways = append(gateways, &info)
	}

	meta := make(map[string]schema.MetaData, len(def.Metadata))
	for id, m := range def.Metadata {
		meta[id] = m
	}

	return schema.NewProcess(def.ID, def.Name, nodes, meta, schema.NewGatewayTable(gateways)), nil
}

// wireFlows completes incoming/outgoing lists from the sequence flows'
// source and target references. Documents may list either side.
func wireFlows(nodes []*schema.FlowNode, byID map[string]*schema.FlowNode) {
	for _, f := range nodes {
		if f.Kind != schema.KindSequenceFlow {
			continue
		}
		if src, ok := byID[f.SourceRef]; ok && !slices.Contains(src.Outgoing, f.ID) {
			src.Outgoing = append(src.Outgoing, f.ID)
		}
		if dst, ok := byID[f.TargetRef]; ok && !slices.Contains(dst.Incoming, f.ID) {
			dst.Incoming = append(dst.Incoming, f.ID)
		}
	}
}

// link points every call activity of p, including those inside sub-process
// bodies, at the called process it names.
func link(p *schema.Process, called []*schema.Process) error {
	for _, n := range p.Elements {
		switch n.Kind {
		case schema.KindCallActivity:
			idx := slices.IndexFunc(called, func(c *schema.Process) bool {
				return c != nil && c.ID == n.CalledElement
			})
			if idx < 0 {
				return schema.NewErrorf(schema.ErrCodeNotFound,
					"called process %s not found", n.CalledElement).WithElement(n.ID)
			}
			n.Process = called[idx]
		case schema.KindSubProcess:
			if n.Process != nil {
				if err := link(n.Process, called); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
