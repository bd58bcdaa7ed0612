package solver

import (
	"fmt"
	"strings"
)

// Symbolic expression model over byte arrays. Expressions print in a
// stable s-expression form; the location extractor works purely over
// these renderings.

// Array is a symbolic root: a named byte array of known size.
type Array struct {
	Name string
	Size int
}

func (a *Array) String() string {
	return a.Name
}

// Expr is a symbolic expression with a fixed bit width.
type Expr interface {
	Width() int
	String() string
}

// ConstantExpr is a bit-vector literal.
type ConstantExpr struct {
	Value uint64
	W     int
}

// Constant builds a literal of the given width.
func Constant(value uint64, width int) *ConstantExpr {
	return &ConstantExpr{Value: value & widthMask(width), W: width}
}

func (c *ConstantExpr) Width() int { return c.W }
func (c *ConstantExpr) String() string {
	return fmt.Sprintf("%d", c.Value)
}

// ReadExpr is a one-byte read from a symbolic array.
type ReadExpr struct {
	Array *Array
	Index Expr
}

// Read builds a byte read.
func Read(array *Array, index Expr) *ReadExpr {
	return &ReadExpr{Array: array, Index: index}
}

func (r *ReadExpr) Width() int { return 8 }
func (r *ReadExpr) String() string {
	return fmt.Sprintf("(Read w8 %s %s)", r.Index, r.Array)
}

// BinOp enumerates binary operators.
type BinOp string

const (
	OpAdd BinOp = "Add"
	OpOr  BinOp = "Or"
	OpShl BinOp = "Shl"
	OpEq  BinOp = "Eq"
)

// BinaryExpr applies a binary operator; Eq yields width 1, the rest
// keep the left operand's width.
type BinaryExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func Add(l, r Expr) *BinaryExpr { return &BinaryExpr{Op: OpAdd, Left: l, Right: r} }
func Or(l, r Expr) *BinaryExpr  { return &BinaryExpr{Op: OpOr, Left: l, Right: r} }
func Shl(l, r Expr) *BinaryExpr { return &BinaryExpr{Op: OpShl, Left: l, Right: r} }
func Eq(l, r Expr) *BinaryExpr  { return &BinaryExpr{Op: OpEq, Left: l, Right: r} }

func (b *BinaryExpr) Width() int {
	if b.Op == OpEq {
		return 1
	}
	return b.Left.Width()
}

func (b *BinaryExpr) String() string {
	if b.Op == OpEq {
		return fmt.Sprintf("(Eq %s %s)", b.Left, b.Right)
	}
	return fmt.Sprintf("(%s w%d %s %s)", b.Op, b.Width(), b.Left, b.Right)
}

// ZExtExpr zero-extends to a wider width.
type ZExtExpr struct {
	Expr Expr
	W    int
}

func ZExt(e Expr, width int) *ZExtExpr {
	return &ZExtExpr{Expr: e, W: width}
}

func (z *ZExtExpr) Width() int { return z.W }
func (z *ZExtExpr) String() string {
	return fmt.Sprintf("(ZExt w%d %s)", z.W, z.Expr)
}

// AnnotatedExpr wraps an expression with an engine-planted label, such
// as a branch-site tag. The label participates in the textual rendering
// only; it has no logical content.
type AnnotatedExpr struct {
	Label string
	Expr  Expr
}

func Annotated(label string, e Expr) *AnnotatedExpr {
	return &AnnotatedExpr{Label: label, Expr: e}
}

func (a *AnnotatedExpr) Width() int { return a.Expr.Width() }
func (a *AnnotatedExpr) String() string {
	return fmt.Sprintf("(Note %s %s)", a.Label, a.Expr)
}

// Walk visits e and its children depth-first, stopping a subtree when fn
// returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *ReadExpr:
		Walk(n.Index, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *ZExtExpr:
		Walk(n.Expr, fn)
	case *AnnotatedExpr:
		Walk(n.Expr, fn)
	}
}

// Query is one solver request: side constraints plus a goal expression.
// A nil goal asks only about the constraints.
type Query struct {
	Constraints []Expr
	Goal        Expr
}

// WithConstraints returns a copy of q with extra conjuncts appended; the
// receiver is untouched, so augmentation is strictly monotonic.
func (q Query) WithConstraints(extra ...Expr) Query {
	constraints := make([]Expr, 0, len(q.Constraints)+len(extra))
	constraints = append(constraints, q.Constraints...)
	constraints = append(constraints, extra...)
	return Query{Constraints: constraints, Goal: q.Goal}
}

func (q Query) String() string {
	var sb strings.Builder
	sb.WriteString("(query [")
	for i, c := range q.Constraints {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(c.String())
	}
	sb.WriteString("]")
	if q.Goal != nil {
		sb.WriteString(" ")
		sb.WriteString(q.Goal.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
