package diagram

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rendis/procperf/pkg/schema"
)

// Build constructs a DiagramModel from a process report. The report must
// carry a linearized sequence. Validation problems are overlaid on the
// elements they name; call activity bodies belong to another process and get
// figures only.
func Build(pr *schema.ProcessReport) (*DiagramModel, error) {
	if pr == nil {
		return nil, fmt.Errorf("diagram: nil process report")
	}
	if !pr.ExtractionSuccessful {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"diagram: process %s was not linearized", pr.ProcessID)
	}

	b := &builder{problems: indexProblems(pr.Problems)}
	nodes, edges := b.sequence(pr.OrderedProcess, "", true)

	levels := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		levels = append(levels, []string{n.ID})
	}

	return &DiagramModel{
		Title:  pr.ProcessID,
		Nodes:  nodes,
		Edges:  edges,
		Levels: levels,
	}, nil
}

type builder struct {
	problems map[string][]schema.Problem
}

func indexProblems(problems []schema.Problem) map[string][]schema.Problem {
	idx := make(map[string][]schema.Problem, len(problems))
	for _, p := range problems {
		idx[p.ID] = append(idx[p.ID], p)
	}
	return idx
}

// sequence maps the items of seq to nodes chained by edges. Sequence flows
// become edge labels and raw gateway markers are dropped. IDs are qualified
// as prefix.elementID so repeated element IDs across bodies stay unique.
func (b *builder) sequence(seq schema.Sequence, prefix string, own bool) ([]*Node, []Edge) {
	var (
		nodes []*Node
		edges []Edge
		prev  *Node
		label string
	)
	for _, item := range seq {
		var n *Node
		switch it := item.(type) {
		case *schema.ElementInfo:
			if it.Kind == schema.KindSequenceFlow {
				label = probabilityLabel(it.Probability)
				continue
			}
			n = b.element(it, prefix, own)
		case *schema.GatewayInfo:
			continue
		case *schema.ParallelBlock:
			n = b.branches(NodeKindParallel, &it.BranchBlock, prefix, own)
		case *schema.ExclusiveBlock:
			n = b.branches(NodeKindExclusive, &it.BranchBlock, prefix, own)
		case *schema.LoopBlock:
			n = b.loop(it, prefix, own)
		case *schema.NestedProcessNode:
			n = b.nested(it, prefix, own)
		default:
			continue
		}

		if prev != nil {
			edges = append(edges, Edge{From: prev.ID, To: n.ID, Label: label})
		}
		label = ""
		nodes = append(nodes, n)
		prev = n
	}
	return nodes, edges
}

func (b *builder) element(el *schema.ElementInfo, prefix string, own bool) *Node {
	return &Node{
		ID:        qualify(prefix, el.ID),
		ElementID: el.ID,
		Label:     elementLabel(el),
		Kind:      elementKind(el.Kind),
		Status:    b.overlay(el, own),
	}
}

func (b *builder) branches(kind NodeKind, bb *schema.BranchBlock, prefix string, own bool) *Node {
	id := qualify(prefix, bb.Split.ID)
	node := &Node{
		ID:        id,
		ElementID: bb.Split.ID,
		Label:     fmt.Sprintf("%s\n(joins at %s)", bb.Split.ID, bb.Join.ID),
		Kind:      kind,
		Status:    b.gatewayOverlay(bb.Split.ID, own),
	}
	for i, branch := range bb.Branches {
		ns := fmt.Sprintf("branch_%d", i)
		nodes, edges := b.sequence(branch, id+"."+ns, own)
		sg := &SubGraph{Label: ns, Nodes: nodes, Edges: edges}
		if kind == NodeKindExclusive {
			if p, ok := firstFlowProbability(branch); ok {
				sg.Label = fmt.Sprintf("%s (%s)", ns, probabilityText(p))
			}
		}
		node.Children = append(node.Children, sg)
	}
	return node
}

func (b *builder) loop(lb *schema.LoopBlock, prefix string, own bool) *Node {
	id := qualify(prefix, lb.Join.ID)
	node := &Node{
		ID:        id,
		ElementID: lb.Join.ID,
		Label:     fmt.Sprintf("%s\n(repeats from %s)", lb.Join.ID, lb.Split.ID),
		Kind:      NodeKindLoop,
		Status:    b.gatewayOverlay(lb.Join.ID, own),
	}
	nodes, edges := b.sequence(lb.Body, id+".body", own)
	if len(nodes) > 0 {
		back := "repeat"
		if lb.BackEdge != nil {
			back = lb.BackEdge.ID
		}
		edges = append(edges, Edge{From: nodes[len(nodes)-1].ID, To: nodes[0].ID, Label: back})
	}
	node.Children = append(node.Children, &SubGraph{Label: "body", Nodes: nodes, Edges: edges})
	return node
}

func (b *builder) nested(nn *schema.NestedProcessNode, prefix string, own bool) *Node {
	id := qualify(prefix, nn.ID)
	node := &Node{
		ID:        id,
		ElementID: nn.ID,
		Label:     nn.ID,
		Kind:      NodeKindNested,
	}
	if nn.Parent != nil {
		node.Label = elementLabel(nn.Parent)
		node.Status = b.overlay(nn.Parent, own)
	}
	if len(nn.Body) == 0 {
		return node
	}
	// Sub-process bodies are validated with their parent; called processes
	// are reported separately.
	bodyOwn := own && nn.Kind == schema.KindSubProcess
	nodes, edges := b.sequence(nn.Body, id+".body", bodyOwn)
	node.Children = append(node.Children, &SubGraph{Label: "body", Nodes: nodes, Edges: edges})
	return node
}

func (b *builder) overlay(el *schema.ElementInfo, own bool) *StatusOverlay {
	o := &StatusOverlay{
		Status:      "ok",
		DurationMs:  el.Duration,
		Cost:        el.Cost,
		Probability: el.Probability,
	}
	if own {
		applyProblems(o, b.problems[el.ID])
	}
	return o
}

func (b *builder) gatewayOverlay(id string, own bool) *StatusOverlay {
	if !own || len(b.problems[id]) == 0 {
		return nil
	}
	o := &StatusOverlay{Status: "ok"}
	applyProblems(o, b.problems[id])
	return o
}

func applyProblems(o *StatusOverlay, problems []schema.Problem) {
	for _, p := range problems {
		o.Problems = append(o.Problems, p.Code)
		switch {
		case p.Severity == schema.SeverityError:
			o.Status = "problem"
		case o.Status == "ok":
			o.Status = "warning"
		}
	}
}

func qualify(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + "." + id
}

// elementKind converts a BPMN kind to a NodeKind.
func elementKind(k schema.ElementKind) NodeKind {
	switch k {
	case schema.KindStartEvent:
		return NodeKindStart
	case schema.KindEndEvent:
		return NodeKindEnd
	case schema.KindIntermediateCatchEvent, schema.KindIntermediateThrowEvent:
		return NodeKindEvent
	case schema.KindSubProcess, schema.KindCallActivity:
		return NodeKindNested
	default:
		return NodeKindTask
	}
}

func elementLabel(el *schema.ElementInfo) string {
	if el.CalledProcess != "" {
		return fmt.Sprintf("%s\n(%s)", el.ID, el.CalledProcess)
	}
	return el.ID
}

func firstFlowProbability(seq schema.Sequence) (float64, bool) {
	for _, item := range seq {
		if el, ok := item.(*schema.ElementInfo); ok && el.Kind == schema.KindSequenceFlow {
			return el.Probability, true
		}
	}
	return 0, false
}

func probabilityLabel(p float64) string {
	if p == 100 {
		return ""
	}
	return probabilityText(p)
}

func probabilityText(p float64) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', -1, 64) + "%"
}
