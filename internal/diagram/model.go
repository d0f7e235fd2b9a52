package diagram

// NodeKind classifies a diagram node by the sequence item it stands for.
type NodeKind string

const (
	NodeKindTask      NodeKind = "task"
	NodeKindEvent     NodeKind = "event"
	NodeKindExclusive NodeKind = "exclusive"
	NodeKindParallel  NodeKind = "parallel"
	NodeKindLoop      NodeKind = "loop"
	NodeKindNested    NodeKind = "nested"
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents one element or block of a linearized process.
type Node struct {
	ID        string // unique within the model
	ElementID string // id of the flow element in its process
	Label     string
	Kind      NodeKind
	Status    *StatusOverlay
	Children  []*SubGraph // branches, loop body, nested process body
}

// SubGraph holds the nodes of one branch or body.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries the planned figures and validation state of a node.
type StatusOverlay struct {
	Status      string // ok | warning | problem | failed
	DurationMs  int64
	Cost        float64
	Probability float64
	Problems    []string
}

// Edge represents a flow between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}
