package expr

import (
	"fmt"
	"strings"

	"statbench/domain/table"
)

// Node is an expression tree node.
type Node interface {
	exprNode()
	String() string
}

// Literal is a constant: number, string, boolean, null or undefined.
type Literal struct {
	Value Value
}

// Placeholder references the current row's value of a column (:::name:::).
type Placeholder struct {
	Name string
}

// Aggregate references a precomputed column statistic, e.g. mean(:::age:::).
// Bound and Resolved are filled in by Compile.
type Aggregate struct {
	Stat     string
	Name     string
	Bound    bool
	Resolved float64
}

// Unary is a prefix operation: !, -, +.
type Unary struct {
	Op      TokenType
	Operand Node
}

// Binary is an infix operation, including the short-circuiting && and ||.
type Binary struct {
	Op    TokenType
	Left  Node
	Right Node
}

// Group is a parenthesized expression.
type Group struct {
	Inner Node
}

func (*Literal) exprNode()     {}
func (*Placeholder) exprNode() {}
func (*Aggregate) exprNode()   {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Group) exprNode()       {}

func (n *Literal) String() string {
	if n.Value.Kind == KindString {
		return quoteString(n.Value.Str)
	}
	return n.Value.ToString()
}

func (n *Placeholder) String() string {
	return placeholderDelim + n.Name + placeholderDelim
}

func (n *Aggregate) String() string {
	return fmt.Sprintf("%s(%s%s%s)", n.Stat, placeholderDelim, n.Name, placeholderDelim)
}

func (n *Unary) String() string {
	return string(n.Op) + n.Operand.String()
}

func (n *Binary) String() string {
	return n.Left.String() + " " + string(n.Op) + " " + n.Right.String()
}

func (n *Group) String() string {
	return "(" + n.Inner.String() + ")"
}

// Walk visits n and its children depth-first, stopping a branch when fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch x := n.(type) {
	case *Unary:
		Walk(x.Operand, fn)
	case *Binary:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Group:
		Walk(x.Inner, fn)
	}
}

func isStatistic(name string) bool {
	for _, s := range table.StatisticNames {
		if s == name {
			return true
		}
	}
	return false
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
