package ir

import (
	"fmt"
	"strings"
)

// IR structures for the instrumentation pass. The IR is in SSA form with
// basic blocks; every instruction carries the source line recovered from
// debug metadata (0 when the front-end had none).

// Module is one translation unit.
type Module struct {
	Name      string
	Functions []*Function
}

// Function groups basic blocks; the first block is the entry.
type Function struct {
	Name   string
	Params []*Parameter
	Blocks []*BasicBlock
	Line   int // declaration line
}

// Entry returns the function's entry block, nil for a declaration-only
// function.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block finds a block by label.
func (f *Function) Block(label string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// ComputeCFG rebuilds every block's predecessor and successor lists from
// the terminators.
func (f *Function) ComputeCFG() {
	for _, b := range f.Blocks {
		b.Predecessors = nil
		b.Successors = nil
	}
	for _, b := range f.Blocks {
		if b.Terminator == nil {
			continue
		}
		for _, succ := range b.Terminator.GetSuccessors() {
			b.Successors = append(b.Successors, succ)
			succ.Predecessors = append(succ.Predecessors, b)
		}
	}
}

// Parameter is a function parameter and its SSA value.
type Parameter struct {
	Name  string
	Type  Type
	Value *Value
}

// BasicBlock is a straight-line instruction sequence ended by exactly
// one terminator.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	Terminator   Terminator
	Predecessors []*BasicBlock
	Successors   []*BasicBlock
}

// FirstNonPhiIndex returns the insertion index just past the block's
// leading phi nodes.
func (b *BasicBlock) FirstNonPhiIndex() int {
	for i, inst := range b.Instructions {
		if _, ok := inst.(*PhiInstruction); !ok {
			return i
		}
	}
	return len(b.Instructions)
}

// InsertAt places inst before index i and claims it for this block.
func (b *BasicBlock) InsertAt(i int, inst Instruction) {
	b.Instructions = append(b.Instructions, nil)
	copy(b.Instructions[i+1:], b.Instructions[i:])
	b.Instructions[i] = inst
}

// ValueKind distinguishes how an SSA value came to be.
type ValueKind int

const (
	ValueTemp ValueKind = iota
	ValueParam
	ValueConst
)

// Value is an SSA value: defined once, by a parameter or an instruction,
// or a materialized constant.
type Value struct {
	ID    int
	Name  string // SSA name, without the % sigil; empty for constants
	Type  Type
	Kind  ValueKind
	Int   int64       // constant payload when Kind == ValueConst
	Def   Instruction // defining instruction for ValueTemp
	Block *BasicBlock // defining block for ValueTemp
}

// IsConst reports whether the value is a materialized constant.
func (v *Value) IsConst() bool {
	return v != nil && v.Kind == ValueConst
}

// Ref renders the value as an operand: %name, or the literal for
// constants.
func (v *Value) Ref() string {
	if v == nil {
		return "<nil>"
	}
	if v.Kind == ValueConst {
		return fmt.Sprintf("%d", v.Int)
	}
	return "%" + v.Name
}

// Const materializes an integer constant value.
func Const(val int64, typ Type) *Value {
	return &Value{Type: typ, Kind: ValueConst, Int: val}
}

// Instruction is the common surface of all IR instructions.
type Instruction interface {
	GetID() int
	GetResult() *Value
	GetOperands() []*Value
	GetBlock() *BasicBlock
	GetLine() int
	IsTerminator() bool
	String() string
}

// Terminator ends a basic block and names its successors.
type Terminator interface {
	Instruction
	GetSuccessors() []*BasicBlock
}

// BinaryInstruction covers integer arithmetic and bitwise operations:
// add, sub, mul, sdiv, udiv, srem, urem, and, or, xor, shl, lshr, ashr.
// The float forms fadd, fsub, fmul and fdiv also parse into it.
type BinaryInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Line   int
	Op     string
	Left   *Value
	Right  *Value
}

// CompareInstruction produces an i1 from two operands. Integer
// predicates: eq, ne, slt, sle, sgt, sge, ult, ule, ugt, uge. Float
// predicates: oeq, one, olt, ole, ogt, oge.
type CompareInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Line   int
	Pred   string
	Left   *Value
	Right  *Value
}

// IsFloat reports whether the comparison is over floating-point
// operands.
func (c *CompareInstruction) IsFloat() bool {
	_, ok := c.Left.Type.(*FloatType)
	return ok
}

// LoadInstruction reads through a pointer-valued operand.
type LoadInstruction struct {
	ID      int
	Result  *Value
	Block   *BasicBlock
	Line    int
	Address *Value
}

// StoreInstruction writes through a pointer-valued operand.
type StoreInstruction struct {
	ID      int
	Block   *BasicBlock
	Line    int
	Address *Value
	Value   *Value
}

// CallInstruction calls a named function; Result is nil for void calls.
type CallInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Line   int
	Callee string
	Args   []*Value
}

// PhiEdge is one incoming (predecessor, value) pair of a phi.
type PhiEdge struct {
	Block *BasicBlock
	Value *Value
}

// PhiInstruction merges values at a control-flow join. Incoming edges
// keep their textual order so printing is deterministic.
type PhiInstruction struct {
	ID       int
	Result   *Value
	Block    *BasicBlock
	Line     int
	Incoming []PhiEdge
}

// CastInstruction adjusts integer width: op is "zext" or "trunc".
type CastInstruction struct {
	ID     int
	Result *Value
	Block  *BasicBlock
	Line   int
	Op     string
	Value  *Value
	To     Type
}

// ObserveInstruction records one variable's concrete value at a branch
// side into the observation log when the program runs. Operand is nil
// for the placeholder markers emitted at non-integer conditions; those
// log value 0. Branch -1 marks a function-entry observation.
type ObserveInstruction struct {
	ID      int
	Block   *BasicBlock
	Line    int
	Loc     int
	Branch  int
	VarName string
	Operand *Value
}

// Terminators

// BranchTerminator is a two-way conditional branch.
type BranchTerminator struct {
	ID        int
	Block     *BasicBlock
	Line      int
	Condition *Value
	True      *BasicBlock
	False     *BasicBlock
}

// JumpTerminator is an unconditional branch.
type JumpTerminator struct {
	ID     int
	Block  *BasicBlock
	Line   int
	Target *BasicBlock
}

// ReturnTerminator leaves the function; Value may be nil.
type ReturnTerminator struct {
	ID    int
	Block *BasicBlock
	Line  int
	Value *Value
}

// Interface implementations

func (b *BinaryInstruction) GetID() int            { return b.ID }
func (b *BinaryInstruction) GetResult() *Value     { return b.Result }
func (b *BinaryInstruction) GetOperands() []*Value { return []*Value{b.Left, b.Right} }
func (b *BinaryInstruction) GetBlock() *BasicBlock { return b.Block }
func (b *BinaryInstruction) GetLine() int          { return b.Line }
func (b *BinaryInstruction) IsTerminator() bool    { return false }
func (b *BinaryInstruction) String() string {
	return fmt.Sprintf("%s = %s %s, %s", b.Result.Ref(), b.Op, b.Left.Ref(), b.Right.Ref())
}

func (c *CompareInstruction) GetID() int            { return c.ID }
func (c *CompareInstruction) GetResult() *Value     { return c.Result }
func (c *CompareInstruction) GetOperands() []*Value { return []*Value{c.Left, c.Right} }
func (c *CompareInstruction) GetBlock() *BasicBlock { return c.Block }
func (c *CompareInstruction) GetLine() int          { return c.Line }
func (c *CompareInstruction) IsTerminator() bool    { return false }
func (c *CompareInstruction) String() string {
	mnemonic := "icmp"
	if c.IsFloat() {
		mnemonic = "fcmp"
	}
	return fmt.Sprintf("%s = %s %s %s, %s", c.Result.Ref(), mnemonic, c.Pred, c.Left.Ref(), c.Right.Ref())
}

func (l *LoadInstruction) GetID() int            { return l.ID }
func (l *LoadInstruction) GetResult() *Value     { return l.Result }
func (l *LoadInstruction) GetOperands() []*Value { return []*Value{l.Address} }
func (l *LoadInstruction) GetBlock() *BasicBlock { return l.Block }
func (l *LoadInstruction) GetLine() int          { return l.Line }
func (l *LoadInstruction) IsTerminator() bool    { return false }
func (l *LoadInstruction) String() string {
	return fmt.Sprintf("%s = load %s, %s", l.Result.Ref(), l.Result.Type, l.Address.Ref())
}

func (s *StoreInstruction) GetID() int            { return s.ID }
func (s *StoreInstruction) GetResult() *Value     { return nil }
func (s *StoreInstruction) GetOperands() []*Value { return []*Value{s.Address, s.Value} }
func (s *StoreInstruction) GetBlock() *BasicBlock { return s.Block }
func (s *StoreInstruction) GetLine() int          { return s.Line }
func (s *StoreInstruction) IsTerminator() bool    { return false }
func (s *StoreInstruction) String() string {
	return fmt.Sprintf("store %s, %s", s.Address.Ref(), s.Value.Ref())
}

func (c *CallInstruction) GetID() int            { return c.ID }
func (c *CallInstruction) GetResult() *Value     { return c.Result }
func (c *CallInstruction) GetOperands() []*Value { return c.Args }
func (c *CallInstruction) GetBlock() *BasicBlock { return c.Block }
func (c *CallInstruction) GetLine() int          { return c.Line }
func (c *CallInstruction) IsTerminator() bool    { return false }
func (c *CallInstruction) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.Ref()
	}
	if c.Result != nil {
		return fmt.Sprintf("%s = call %s @%s(%s)", c.Result.Ref(), c.Result.Type, c.Callee, strings.Join(args, ", "))
	}
	return fmt.Sprintf("call @%s(%s)", c.Callee, strings.Join(args, ", "))
}

func (p *PhiInstruction) GetID() int        { return p.ID }
func (p *PhiInstruction) GetResult() *Value { return p.Result }
func (p *PhiInstruction) GetOperands() []*Value {
	ops := make([]*Value, len(p.Incoming))
	for i, in := range p.Incoming {
		ops[i] = in.Value
	}
	return ops
}
func (p *PhiInstruction) GetBlock() *BasicBlock { return p.Block }
func (p *PhiInstruction) GetLine() int          { return p.Line }
func (p *PhiInstruction) IsTerminator() bool    { return false }
func (p *PhiInstruction) String() string {
	edges := make([]string, len(p.Incoming))
	for i, in := range p.Incoming {
		edges[i] = fmt.Sprintf("[%s: %s]", in.Block.Label, in.Value.Ref())
	}
	return fmt.Sprintf("%s = phi %s %s", p.Result.Ref(), p.Result.Type, strings.Join(edges, ", "))
}

func (c *CastInstruction) GetID() int            { return c.ID }
func (c *CastInstruction) GetResult() *Value     { return c.Result }
func (c *CastInstruction) GetOperands() []*Value { return []*Value{c.Value} }
func (c *CastInstruction) GetBlock() *BasicBlock { return c.Block }
func (c *CastInstruction) GetLine() int          { return c.Line }
func (c *CastInstruction) IsTerminator() bool    { return false }
func (c *CastInstruction) String() string {
	return fmt.Sprintf("%s = %s %s to %s", c.Result.Ref(), c.Op, c.Value.Ref(), c.To)
}

func (o *ObserveInstruction) GetID() int        { return o.ID }
func (o *ObserveInstruction) GetResult() *Value { return nil }
func (o *ObserveInstruction) GetOperands() []*Value {
	if o.Operand == nil {
		return nil
	}
	return []*Value{o.Operand}
}
func (o *ObserveInstruction) GetBlock() *BasicBlock { return o.Block }
func (o *ObserveInstruction) GetLine() int          { return o.Line }
func (o *ObserveInstruction) IsTerminator() bool    { return false }
func (o *ObserveInstruction) String() string {
	if o.Operand == nil {
		return fmt.Sprintf("observe %d, %d, %q", o.Loc, o.Branch, o.VarName)
	}
	return fmt.Sprintf("observe %d, %d, %q, %s", o.Loc, o.Branch, o.VarName, o.Operand.Ref())
}

func (b *BranchTerminator) GetID() int            { return b.ID }
func (b *BranchTerminator) GetResult() *Value     { return nil }
func (b *BranchTerminator) GetOperands() []*Value { return []*Value{b.Condition} }
func (b *BranchTerminator) GetBlock() *BasicBlock { return b.Block }
func (b *BranchTerminator) GetLine() int          { return b.Line }
func (b *BranchTerminator) IsTerminator() bool    { return true }
func (b *BranchTerminator) GetSuccessors() []*BasicBlock {
	return []*BasicBlock{b.True, b.False}
}
func (b *BranchTerminator) String() string {
	return fmt.Sprintf("br %s, %s, %s", b.Condition.Ref(), b.True.Label, b.False.Label)
}

func (j *JumpTerminator) GetID() int                   { return j.ID }
func (j *JumpTerminator) GetResult() *Value            { return nil }
func (j *JumpTerminator) GetOperands() []*Value        { return nil }
func (j *JumpTerminator) GetBlock() *BasicBlock        { return j.Block }
func (j *JumpTerminator) GetLine() int                 { return j.Line }
func (j *JumpTerminator) IsTerminator() bool           { return true }
func (j *JumpTerminator) GetSuccessors() []*BasicBlock { return []*BasicBlock{j.Target} }
func (j *JumpTerminator) String() string {
	return fmt.Sprintf("jmp %s", j.Target.Label)
}

func (r *ReturnTerminator) GetID() int        { return r.ID }
func (r *ReturnTerminator) GetResult() *Value { return nil }
func (r *ReturnTerminator) GetOperands() []*Value {
	if r.Value != nil {
		return []*Value{r.Value}
	}
	return nil
}
func (r *ReturnTerminator) GetBlock() *BasicBlock        { return r.Block }
func (r *ReturnTerminator) GetLine() int                 { return r.Line }
func (r *ReturnTerminator) IsTerminator() bool           { return true }
func (r *ReturnTerminator) GetSuccessors() []*BasicBlock { return nil }
func (r *ReturnTerminator) String() string {
	if r.Value != nil {
		return fmt.Sprintf("ret %s", r.Value.Ref())
	}
	return "ret"
}

// Types

type Type interface {
	String() string
}

// IntType is a fixed-width integer; Bits 1 is the boolean type.
type IntType struct {
	Bits int
}

// FloatType is a fixed-width floating-point type.
type FloatType struct {
	Bits int
}

// PtrType is an opaque pointer.
type PtrType struct{}

func (i *IntType) String() string   { return fmt.Sprintf("i%d", i.Bits) }
func (f *FloatType) String() string { return fmt.Sprintf("f%d", f.Bits) }
func (p *PtrType) String() string   { return "ptr" }

// IsIntValue reports whether the value carries an integer type.
func IsIntValue(v *Value) bool {
	if v == nil || v.Type == nil {
		return false
	}
	_, ok := v.Type.(*IntType)
	return ok
}

// Shared type singletons.
var (
	I1  = &IntType{Bits: 1}
	I8  = &IntType{Bits: 8}
	I16 = &IntType{Bits: 16}
	I32 = &IntType{Bits: 32}
	I64 = &IntType{Bits: 64}
	F32 = &FloatType{Bits: 32}
	F64 = &FloatType{Bits: 64}
	Ptr = &PtrType{}
)

// TypeByName resolves a type mnemonic (i1, i8, ..., f64, ptr).
func TypeByName(name string) (Type, bool) {
	switch name {
	case "i1":
		return I1, true
	case "i8":
		return I8, true
	case "i16":
		return I16, true
	case "i32":
		return I32, true
	case "i64":
		return I64, true
	case "f32":
		return F32, true
	case "f64":
		return F64, true
	case "ptr":
		return Ptr, true
	}
	return nil, false
}
