package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		writeMermaidNode(&b, node, "    ")
	}
	writeMermaidEdges(&b, model.Edges, "    ")

	b.WriteString("\n")
	b.WriteString("    classDef ok fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef warning fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef problem fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	for _, node := range model.Nodes {
		writeMermaidClasses(&b, node)
	}

	return b.String()
}

// writeMermaidNode writes a node definition followed by one subgraph per
// child, recursing into nested blocks.
func writeMermaidNode(b *strings.Builder, node *Node, indent string) {
	b.WriteString(indent + mermaidNodeDef(node) + "\n")
	for _, sg := range node.Children {
		b.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s: %s\"]\n",
			indent, subgraphID(node, sg), node.ElementID, sg.Label))
		for _, sub := range sg.Nodes {
			writeMermaidNode(b, sub, indent+"    ")
		}
		writeMermaidEdges(b, sg.Edges, indent+"    ")
		b.WriteString(indent + "end\n")
	}
}

func writeMermaidEdges(b *strings.Builder, edges []Edge, indent string) {
	for _, edge := range edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("%s%s -->%s %s\n",
			indent, mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}
}

func writeMermaidClasses(b *strings.Builder, node *Node) {
	if node.Status != nil {
		if cls := mermaidStatusClass(node.Status.Status); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	}
	for _, sg := range node.Children {
		for _, sub := range sg.Nodes {
			writeMermaidClasses(b, sub)
		}
	}
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindExclusive:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindParallel:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case NodeKindEvent:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindNested, NodeKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default: // task
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// subgraphID names a subgraph after its node and the first word of its
// label, which is unique per node.
func subgraphID(node *Node, sg *SubGraph) string {
	key := sg.Label
	if i := strings.IndexByte(key, ' '); i >= 0 {
		key = key[:i]
	}
	return mermaidSafeID(node.ID + "_" + key)
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel replaces double quotes, which %q would otherwise
// backslash-escape and Mermaid does not understand.
func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

func mermaidStatusClass(status string) string {
	switch status {
	case "ok", "warning", "problem":
		return status
	default:
		return ""
	}
}
