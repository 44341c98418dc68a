package bbcode

import (
	"fmt"
	"strings"
)

// NodeType identifies the kind of a parse tree Node.
type NodeType int

const (
	NodeRoot NodeType = iota
	NodeText
	NodeTag
)

// String returns the string representation of the node type
func (t NodeType) String() string {
	switch t {
	case NodeRoot:
		return "Root"
	case NodeText:
		return "Text"
	case NodeTag:
		return "Tag"
	default:
		return "Unknown"
	}
}

// MarshalText lets node types appear by name in JSON and YAML dumps.
func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText reads a node type written by MarshalText.
func (t *NodeType) UnmarshalText(text []byte) error {
	for _, candidate := range []NodeType{NodeRoot, NodeText, NodeTag} {
		if candidate.String() == string(text) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown node type %q", text)
}

// Node is an element of the parse tree. Each node exclusively owns its
// children; trees never share nodes.
type Node struct {
	Type NodeType `json:"type" yaml:"type"`

	// Content is the original input for the root, the text of a text node and
	// the tag name of a tag node.
	Content string `json:"content" yaml:"content"`

	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsValid reports whether every child is non-nil and itself valid. A node
// without children is valid.
func (n *Node) IsValid() bool {
	for _, child := range n.Children {
		if child == nil || !child.IsValid() {
			return false
		}
	}
	return true
}

// String renders the node as "Type - content".
func (n *Node) String() string {
	return n.Type.String() + " - " + n.Content
}

// Dump writes an indented outline of the tree, one node per line.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch n.Type {
	case NodeRoot:
		b.WriteString("Root")
	case NodeText:
		fmt.Fprintf(b, "Text %q", n.Content)
	default:
		fmt.Fprintf(b, "Tag %s", n.Content)
		if len(n.Attributes) > 0 {
			fmt.Fprintf(b, " %v", n.Attributes)
		}
	}
	b.WriteByte('\n')
	for _, child := range n.Children {
		if child != nil {
			child.dump(b, depth+1)
		}
	}
}

// ProblemKind classifies why a token sequence does not form a valid tree.
type ProblemKind int

const (
	ProblemMismatchedEndTag ProblemKind = iota + 1
	ProblemUnclosedTag
	ProblemDepthExceeded
)

// String returns the string representation of the problem kind
func (k ProblemKind) String() string {
	switch k {
	case ProblemMismatchedEndTag:
		return "mismatched end tag"
	case ProblemUnclosedTag:
		return "unclosed tag"
	case ProblemDepthExceeded:
		return "nesting too deep"
	default:
		return "unknown"
	}
}

// MarshalText lets problem kinds appear by name in JSON and YAML dumps.
func (k ProblemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText reads a problem kind written by MarshalText.
func (k *ProblemKind) UnmarshalText(text []byte) error {
	for _, candidate := range []ProblemKind{ProblemMismatchedEndTag, ProblemUnclosedTag, ProblemDepthExceeded} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown problem kind %q", text)
}

// Problem describes the first structural defect found in a token sequence.
type Problem struct {
	Kind ProblemKind `json:"kind" yaml:"kind"`

	// Tag is the offending tag: the stray end tag, the unclosed start tag or
	// the start tag that exceeded the depth limit.
	Tag string `json:"tag" yaml:"tag"`

	// Expected is the tag that should have been closed, empty at top level.
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`

	// Offset is the byte offset of the offending token in the input.
	Offset int `json:"offset" yaml:"offset"`
}

// Error describes the problem in one line.
func (p *Problem) Error() string {
	switch p.Kind {
	case ProblemMismatchedEndTag:
		if p.Expected == "" {
			return fmt.Sprintf("unexpected end tag [/%s] at offset %d", p.Tag, p.Offset)
		}
		return fmt.Sprintf("end tag [/%s] at offset %d does not close [%s]", p.Tag, p.Offset, p.Expected)
	case ProblemUnclosedTag:
		return fmt.Sprintf("tag [%s] opened at offset %d is never closed", p.Tag, p.Offset)
	case ProblemDepthExceeded:
		return fmt.Sprintf("tag [%s] at offset %d exceeds the nesting limit", p.Tag, p.Offset)
	default:
		return fmt.Sprintf("invalid markup at offset %d", p.Offset)
	}
}

// TreeBuilder turns a token sequence into a parse tree.
type TreeBuilder struct {
	// MaxDepth bounds how many tags may be open at once. Zero means no limit.
	MaxDepth int
}

// Build constructs the tree for tokens. The boolean is false when an end tag
// does not match the innermost open tag, a tag is left open, or the nesting
// limit is exceeded; the partial tree is still returned in that case.
func (b *TreeBuilder) Build(tokens []Token) (*Node, bool) {
	root, problem := b.Diagnose(tokens)
	return root, problem == nil
}

// Diagnose is Build reporting the first structural problem instead of a bare
// validity flag.
func (b *TreeBuilder) Diagnose(tokens []Token) (*Node, *Problem) {
	root := &Node{Type: NodeRoot}

	type frame struct {
		node   *Node
		offset int
	}
	stack := []frame{{node: root}}

	for _, tok := range tokens {
		top := stack[len(stack)-1].node

		switch tok.Type {
		case TokenText:
			top.Children = append(top.Children, &Node{Type: NodeText, Content: tok.Content})

		case TokenStartTag:
			if b.MaxDepth > 0 && len(stack) > b.MaxDepth {
				return root, &Problem{Kind: ProblemDepthExceeded, Tag: tok.Content, Offset: tok.Offset}
			}
			node := &Node{Type: NodeTag, Content: tok.Content, Attributes: tok.Attributes}
			top.Children = append(top.Children, node)
			stack = append(stack, frame{node: node, offset: tok.Offset})

		case TokenEndTag:
			if top.Type != NodeTag || top.Content != tok.Content {
				expected := ""
				if top.Type == NodeTag {
					expected = top.Content
				}
				return root, &Problem{
					Kind:     ProblemMismatchedEndTag,
					Tag:      tok.Content,
					Expected: expected,
					Offset:   tok.Offset,
				}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return root, &Problem{Kind: ProblemUnclosedTag, Tag: open.node.Content, Offset: open.offset}
	}
	return root, nil
}
