// Package linearize recovers a structured, block-shaped program from a
// classified BPMN flow graph.
//
// The walk over sequential elements is iterative. Recursion happens only at
// the three nesting points (a nested process body, one branch of a split, a
// loop body); each recursive call starts a fresh Sequence and a fresh set of
// expected end IDs and returns its result as a value. Any contradiction
// found anywhere is returned as a *schema.Error and propagated unchanged; a
// partial tree is never returned.
package linearize

import (
	"github.com/rendis/procperf/internal/extract"
	"github.com/rendis/procperf/pkg/schema"
)

// DefaultMaxDepth bounds the nesting depth of the walk.
const DefaultMaxDepth = 1024

// Linearizer converts processes into ordered block trees. It holds no
// mutable state and is safe for concurrent use.
type Linearizer struct {
	settings  schema.Settings
	extractor *extract.Extractor
	maxDepth  int
}

// Option configures a Linearizer.
type Option func(*Linearizer)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(l *Linearizer) {
		if n > 0 {
			l.maxDepth = n
		}
	}
}

// New creates a Linearizer for the given settings.
func New(settings schema.Settings, opts ...Option) *Linearizer {
	l := &Linearizer{
		settings:  settings,
		extractor: extract.New(settings),
		maxDepth:  DefaultMaxDepth,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Process linearizes p from its unique start event to its unique end event.
func (l *Linearizer) Process(p *schema.Process) (schema.Sequence, error) {
	startID, endID, err := p.Bounds()
	if err != nil {
		return nil, err
	}
	return l.Linearize(p, startID, []string{endID})
}

// Linearize walks p from nodeID until it reaches one of endIDs.
func (l *Linearizer) Linearize(p *schema.Process, nodeID string, endIDs []string) (schema.Sequence, error) {
	return l.walk(p, nodeID, newIDSet(endIDs), 0)
}

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (l *Linearizer) walk(p *schema.Process, nodeID string, endIDs idSet, depth int) (schema.Sequence, error) {
	if depth > l.maxDepth {
		return nil, schema.NewErrorf(schema.ErrCodeDepthExceeded,
			"nesting deeper than %d levels", l.maxDepth).WithElement(nodeID)
	}

	seq := schema.Sequence{}
	cur := nodeID
	for {
		node, ok := p.Node(cur)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeMissingElement,
				"element not found in process %s", p.ID).WithElement(cur)
		}

		switch {
		case node.Kind == schema.KindEndEvent:
			if !endIDs.has(node.ID) {
				return nil, schema.NewError(schema.ErrCodeUnexpectedEnd,
					"end event reached outside its enclosing block").WithElement(node.ID)
			}
			return append(seq, l.extractor.Extract(p, node)), nil

		case node.Kind.IsGateway():
			gw, ok := p.Gateways[node.ID]
			if !ok {
				return nil, schema.NewError(schema.ErrCodeUnclassifiedGateway,
					"gateway has no classification").WithElement(node.ID)
			}

			var (
				block schema.Item
				next  string
				err   error
				done  bool
			)
			if gw.Pattern == schema.PatternSplit {
				block, next, done, err = l.split(p, gw, endIDs, depth)
			} else {
				block, next, done, err = l.join(p, gw, endIDs, depth)
			}
			if err != nil {
				return nil, err
			}
			seq = append(seq, block)
			if done {
				return seq, nil
			}
			cur = next

		case node.Kind.IsNested():
			item, err := l.nested(p, node, depth)
			if err != nil {
				return nil, err
			}
			seq = append(seq, item)
			if cur, err = next(node); err != nil {
				return nil, err
			}

		default:
			seq = append(seq, l.extractor.Extract(p, node))
			var err error
			if cur, err = next(node); err != nil {
				return nil, err
			}
		}
	}
}

// split handles a split gateway. done is true when the gateway terminates
// the current walk as a loop-tail marker.
func (l *Linearizer) split(p *schema.Process, gw *schema.GatewayInfo, endIDs idSet, depth int) (schema.Item, string, bool, error) {
	isEnd := endIDs.has(gw.ID)
	switch {
	case isEnd && gw.IsLoop:
		return gw, "", true, nil
	case !isEnd && !gw.IsLoop:
		block, joinNode, err := l.branches(p, gw, depth)
		if err != nil {
			return nil, "", false, err
		}
		nxt, err := next(joinNode)
		if err != nil {
			return nil, "", false, err
		}
		return block, nxt, false, nil
	default:
		return nil, "", false, schema.NewError(schema.ErrCodeUnexpectedGateway,
			"split gateway reached in an inconsistent position").
			WithElement(gw.ID).
			WithDetails(map[string]any{"is_loop": gw.IsLoop, "expected_end": isEnd})
	}
}

// branches linearizes every outgoing branch of a split and checks that they
// all converge on the same join.
func (l *Linearizer) branches(p *schema.Process, gw *schema.GatewayInfo, depth int) (schema.Item, *schema.FlowNode, error) {
	node, _ := p.Node(gw.ID)
	ends := newIDSet(gw.PotentialMatches)

	branches := make([]schema.Sequence, 0, len(node.Outgoing))
	joinIDs := make([]string, 0, len(node.Outgoing))
	var join *schema.GatewayInfo
	for _, flowID := range node.Outgoing {
		sub, err := l.walk(p, flowID, ends, depth+1)
		if err != nil {
			return nil, nil, err
		}
		marker, ok := sub.Last().(*schema.GatewayInfo)
		if !ok {
			return nil, nil, schema.NewError(schema.ErrCodeJoinMismatch,
				"branch does not end at a join gateway").
				WithElement(gw.ID).
				WithDetails(map[string]any{"branch": flowID})
		}
		joinIDs = append(joinIDs, marker.ID)
		if join == nil {
			join = marker
		}
		branches = append(branches, sub[:len(sub)-1])
	}

	for _, id := range joinIDs {
		if id != joinIDs[0] {
			return nil, nil, schema.NewError(schema.ErrCodeJoinMismatch,
				"branches of split converge on different joins").
				WithElement(gw.ID).
				WithDetails(map[string]any{"split_id": gw.ID, "join_ids": joinIDs})
		}
	}
	if join == nil {
		return nil, nil, schema.NewError(schema.ErrCodeJoinMismatch,
			"split gateway has no outgoing branches").WithElement(gw.ID)
	}

	joinNode, ok := p.Node(join.ID)
	if !ok {
		return nil, nil, schema.NewErrorf(schema.ErrCodeMissingElement,
			"join gateway not found in process %s", p.ID).WithElement(join.ID)
	}

	shape := schema.BranchBlock{Split: gw, Join: join, Branches: branches}
	if gw.Parallel() {
		return &schema.ParallelBlock{BranchBlock: shape}, joinNode, nil
	}
	return &schema.ExclusiveBlock{BranchBlock: shape}, joinNode, nil
}

// join handles a join gateway: either the head of a loop, or the marker that
// closes the current block.
func (l *Linearizer) join(p *schema.Process, gw *schema.GatewayInfo, endIDs idSet, depth int) (schema.Item, string, bool, error) {
	if gw.IsLoop {
		block, exit, err := l.loop(p, gw, depth)
		if err != nil {
			return nil, "", false, err
		}
		return block, exit, false, nil
	}
	if endIDs.has(gw.ID) {
		return gw, "", true, nil
	}
	return nil, "", false, schema.NewError(schema.ErrCodeUnexpectedGateway,
		"join gateway reached outside its enclosing block").WithElement(gw.ID)
}

// loop linearizes the body between a loop join and its matching split and
// returns the block together with the loop-exit flow to continue from.
func (l *Linearizer) loop(p *schema.Process, join *schema.GatewayInfo, depth int) (schema.Item, string, error) {
	joinNode, _ := p.Node(join.ID)
	if len(joinNode.Outgoing) == 0 {
		return nil, "", schema.NewError(schema.ErrCodeDeadEnd,
			"loop join has no outgoing flow").WithElement(join.ID)
	}

	body, err := l.walk(p, joinNode.Outgoing[0], newIDSet([]string{join.MatchID}), depth+1)
	if err != nil {
		return nil, "", err
	}
	tail, ok := body.Last().(*schema.GatewayInfo)
	if !ok || tail.ID != join.MatchID {
		return nil, "", schema.NewError(schema.ErrCodeJoinMismatch,
			"loop body does not end at the matching split").
			WithElement(join.ID).
			WithDetails(map[string]any{"match_id": join.MatchID})
	}
	body = body[:len(body)-1]

	splitNode, ok := p.Node(tail.ID)
	if !ok {
		return nil, "", schema.NewErrorf(schema.ErrCodeMissingElement,
			"loop split not found in process %s", p.ID).WithElement(tail.ID)
	}

	var backEdge *schema.FlowNode
	var exits []string
	for _, flowID := range splitNode.Outgoing {
		flow, ok := p.Node(flowID)
		if !ok {
			return nil, "", schema.NewErrorf(schema.ErrCodeMissingElement,
				"flow not found in process %s", p.ID).WithElement(flowID)
		}
		if flow.TargetRef == join.ID && backEdge == nil {
			backEdge = flow
			continue
		}
		exits = append(exits, flowID)
	}
	if backEdge == nil {
		return nil, "", schema.NewError(schema.ErrCodeUnexpectedGateway,
			"loop split has no flow back to its join").
			WithElement(tail.ID).
			WithDetails(map[string]any{"join_id": join.ID})
	}
	if len(exits) != 1 {
		return nil, "", schema.NewErrorf(schema.ErrCodeUnexpectedGateway,
			"loop split must have exactly one exit flow, found %d", len(exits)).
			WithElement(tail.ID)
	}

	return &schema.LoopBlock{
		Split:    tail,
		Join:     join,
		Body:     body,
		BackEdge: l.extractor.Extract(p, backEdge),
	}, exits[0], nil
}

// nested linearizes the body of a sub-process or call activity.
func (l *Linearizer) nested(p *schema.Process, node *schema.FlowNode, depth int) (schema.Item, error) {
	info := l.extractor.Extract(p, node)
	item := &schema.NestedProcessNode{Kind: node.Kind, ID: node.ID, Parent: info, Body: schema.Sequence{}}
	if l.settings.OverwriteWithParentPerformance {
		return item, nil
	}

	body := node.Process
	if body == nil {
		return nil, schema.NewError(schema.ErrCodeMissingElement,
			"nested element has no resolved process body").WithElement(node.ID)
	}
	startID, endID, err := body.Bounds()
	if err != nil {
		return nil, err
	}
	seq, err := l.walk(body, startID, newIDSet([]string{endID}), depth+1)
	if err != nil {
		return nil, err
	}
	item.Body = seq
	return item, nil
}

// next returns the element following node in a sequential walk.
func next(node *schema.FlowNode) (string, error) {
	id, ok := node.Next()
	if !ok {
		return "", schema.NewError(schema.ErrCodeDeadEnd,
			"element has no outgoing flow").WithElement(node.ID)
	}
	return id, nil
}
