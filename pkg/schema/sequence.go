package schema

import (
	"bytes"
	"encoding/json"
	"time"
)

// ItemType tags the variants of a Sequence entry.
type ItemType string

const (
	ItemElement   ItemType = "element"
	ItemGateway   ItemType = "gateway"
	ItemParallel  ItemType = "parallel"
	ItemExclusive ItemType = "exclusive"
	ItemLoop      ItemType = "loop"
	ItemNested    ItemType = "nested"
)

// Item is one entry of a linearized Sequence. The set of implementations is
// closed: *ElementInfo, *GatewayInfo, *ParallelBlock, *ExclusiveBlock,
// *LoopBlock and *NestedProcessNode.
type Item interface {
	ItemType() ItemType
	isItem()
}

// Sequence is the ordered, block-structured output of the linearizer.
type Sequence []Item

// TimeInfo is the reconciled start/end/duration triple of an element.
type TimeInfo struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Duration int64      `json:"duration"` // milliseconds
	StartMs  int64      `json:"startMs,omitempty"`
	EndMs    int64      `json:"endMs,omitempty"`
}

// ElementInfo is the flat performance record extracted for one visit of a
// flow element. One record is produced per structural position.
type ElementInfo struct {
	Kind            ElementKind `json:"kind"`
	ID              string      `json:"id"`
	ParentProcessID string      `json:"parentProcessId"`
	Duration        int64       `json:"duration"` // milliseconds
	Start           *time.Time  `json:"start,omitempty"`
	End             *time.Time  `json:"end,omitempty"`
	Cost            float64     `json:"cost"`
	Probability     float64     `json:"probability"`
	CalledProcess   string      `json:"calledProcess,omitempty"`

	// Nested is the body of a sub-process or call activity, giving access to
	// its gateway table and validated elements. Nil for other kinds.
	Nested *Process `json:"-"`
}

// BranchBlock is the shape shared by parallel and exclusive blocks.
type BranchBlock struct {
	Split    *GatewayInfo `json:"split"`
	Join     *GatewayInfo `json:"join"`
	Branches []Sequence   `json:"branches"`
}

// ParallelBlock is a set of branches that all execute.
type ParallelBlock struct {
	BranchBlock
}

// ExclusiveBlock is a set of branches of which one executes (exclusive and
// event-based splits).
type ExclusiveBlock struct {
	BranchBlock
}

// LoopBlock is a structured loop: body runs between Join and Split, and
// BackEdge is the flow from Split back to Join.
type LoopBlock struct {
	Split    *GatewayInfo `json:"split"`
	Join     *GatewayInfo `json:"join"`
	Body     Sequence     `json:"body"`
	BackEdge *ElementInfo `json:"backEdge"`
}

// NestedProcessNode wraps the linearized body of a sub-process or call
// activity. Body is empty when parent-level performance is authoritative.
type NestedProcessNode struct {
	Kind   ElementKind  `json:"kind"`
	ID     string       `json:"id"`
	Parent *ElementInfo `json:"parent"`
	Body   Sequence     `json:"body"`
}

func (*ElementInfo) ItemType() ItemType       { return ItemElement }
func (*GatewayInfo) ItemType() ItemType       { return ItemGateway }
func (*ParallelBlock) ItemType() ItemType     { return ItemParallel }
func (*ExclusiveBlock) ItemType() ItemType    { return ItemExclusive }
func (*LoopBlock) ItemType() ItemType         { return ItemLoop }
func (*NestedProcessNode) ItemType() ItemType { return ItemNested }

func (*ElementInfo) isItem()       {}
func (*GatewayInfo) isItem()       {}
func (*ParallelBlock) isItem()     {}
func (*ExclusiveBlock) isItem()    {}
func (*LoopBlock) isItem()         {}
func (*NestedProcessNode) isItem() {}

// Last returns the final item of s, or nil if s is empty.
func (s Sequence) Last() Item {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// MarshalJSON encodes each item as an object carrying a "type" tag.
func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalItem(item)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalItem(item Item) ([]byte, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	tag := `{"type":"` + string(item.ItemType()) + `"`
	if len(body) <= 2 {
		return []byte(tag + "}"), nil
	}
	return append([]byte(tag+","), body[1:]...), nil
}

// Walk calls fn for every item of s, descending into blocks and nested
// bodies depth-first in order.
func (s Sequence) Walk(fn func(Item)) {
	for _, item := range s {
		fn(item)
		switch it := item.(type) {
		case *ParallelBlock:
			for _, b := range it.Branches {
				b.Walk(fn)
			}
		case *ExclusiveBlock:
			for _, b := range it.Branches {
				b.Walk(fn)
			}
		case *LoopBlock:
			it.Body.Walk(fn)
			fn(it.BackEdge)
		case *NestedProcessNode:
			it.Body.Walk(fn)
		}
	}
}
