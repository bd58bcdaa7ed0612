package instrument

import (
	"fmt"

	"vase/internal/diag"
	"vase/internal/ir"
	"vase/internal/observe"
)

// The instrumentation pass. For every two-way conditional branch it
// inserts observe instructions at the head of both successor blocks,
// recording the non-constant integer operands of the branch condition;
// function arguments are additionally observed at entry with the entry
// sentinel branch. Observed values are width-adapted to 32 bits with
// explicit casts. Insertion respects SSA dominance: a site whose value
// definition cannot be made to dominate the insertion point is skipped,
// never rewritten unsafely.

// Options control the pass.
type Options struct {
	// FloatMarkers emits a placeholder observation on branches whose
	// condition compares floating-point values, preserving site presence
	// without logging a value.
	FloatMarkers bool
}

// DefaultOptions enables float markers.
func DefaultOptions() Options {
	return Options{FloatMarkers: true}
}

// Result aggregates what the pass did.
type Result struct {
	Observed      int // branch-side observations inserted
	EntryObserved int // function-entry observations inserted
	Skipped       int // observations skipped for safety
	Diagnostics   []diag.Diagnostic
}

// pass carries the per-run state.
type pass struct {
	opts   Options
	nextID int
	tmp    int // synthetic name counter
	result *Result
}

// Run instruments the module in place. Instrumenting an
// already-instrumented module is refused: the observation sites would
// conflict.
func Run(m *ir.Module, opts Options) (*Result, error) {
	if instrumented(m) {
		return nil, fmt.Errorf("%s: module %s already instrumented", diag.CodeAlreadyInstrumented, m.Name)
	}

	p := &pass{opts: opts, nextID: maxID(m), result: &Result{}}
	for _, fn := range m.Functions {
		p.function(fn)
	}
	return p.result, nil
}

func instrumented(m *ir.Module) bool {
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				if _, ok := inst.(*ir.ObserveInstruction); ok {
					return true
				}
			}
		}
	}
	return false
}

func maxID(m *ir.Module) int {
	max := 0
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				if inst.GetID() > max {
					max = inst.GetID()
				}
			}
			if b.Terminator != nil && b.Terminator.GetID() > max {
				max = b.Terminator.GetID()
			}
		}
	}
	return max
}

func (p *pass) id() int {
	p.nextID++
	return p.nextID
}

func (p *pass) function(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}

	fn.ComputeCFG()
	dom := ir.ComputeDominance(fn)

	p.logEntryArgs(fn, entry)

	for _, block := range fn.Blocks {
		branch, ok := block.Terminator.(*ir.BranchTerminator)
		if !ok {
			continue
		}
		p.branch(fn, dom, branch)
	}
}

// logEntryArgs observes every integer argument at function entry, under
// the function's declaration line with the entry sentinel branch.
func (p *pass) logEntryArgs(fn *ir.Function, entry *ir.BasicBlock) {
	idx := entry.FirstNonPhiIndex()
	for _, param := range fn.Params {
		if !ir.IsIntValue(param.Value) {
			continue
		}
		n := p.insertObservation(entry, idx, fn.Line, observe.EntryBranch, param.Name, param.Value)
		idx += n
		p.result.EntryObserved++
	}
}

// branch instruments one two-way conditional branch.
func (p *pass) branch(fn *ir.Function, dom *ir.DomInfo, branch *ir.BranchTerminator) {
	loc := branch.Line
	if loc == 0 {
		// No debug line on the terminator; fall back to a synthetic site
		// derived from the function's start line.
		loc = fn.Line
	}

	operands, float := conditionOperands(branch.Condition)
	if float {
		if p.opts.FloatMarkers {
			p.marker(branch, loc)
		}
		return
	}

	// Constants carry no profile signal; non-integer operands cannot be
	// logged by value.
	var observable []*ir.Value
	for _, op := range operands {
		if op.IsConst() {
			continue
		}
		if !ir.IsIntValue(op) {
			p.result.Skipped++
			p.diag(diag.Warning, diag.CodeNonIntegerCondition, fn, loc,
				fmt.Sprintf("operand %s of branch condition is not an observable integer", op.Ref()))
			continue
		}
		observable = append(observable, op)
	}

	// Successor side encodes the condition value: true target is side 1.
	sides := []struct {
		block *ir.BasicBlock
		side  int
	}{
		{branch.True, 1},
		{branch.False, 0},
	}

	for _, s := range sides {
		idx := s.block.FirstNonPhiIndex()
		for _, op := range observable {
			at, ok := p.insertionPoint(dom, op, s.block, idx)
			if !ok {
				p.result.Skipped++
				p.diag(diag.Warning, diag.CodeDominanceSkip, fn, loc,
					fmt.Sprintf("definition of %s does not dominate %s; observation skipped", op.Ref(), s.block.Label))
				continue
			}
			n := p.insertObservation(s.block, at, loc, s.side, p.varName(op), op)
			if at <= idx {
				idx += n
			}
			p.result.Observed++
		}
	}
}

// conditionOperands resolves what to observe for a branch condition: the
// two operands of a comparison or arithmetic condition, otherwise the
// condition value itself. A float comparison reports float=true.
func conditionOperands(cond *ir.Value) (ops []*ir.Value, float bool) {
	switch def := cond.Def.(type) {
	case *ir.CompareInstruction:
		if def.IsFloat() {
			return nil, true
		}
		return dedup(def.Left, def.Right), false
	case *ir.BinaryInstruction:
		return dedup(def.Left, def.Right), false
	default:
		return []*ir.Value{cond}, false
	}
}

func dedup(l, r *ir.Value) []*ir.Value {
	if l == r {
		return []*ir.Value{l}
	}
	return []*ir.Value{l, r}
}

// insertionPoint validates dominance for observing op at (block, idx).
// When the definition is later in the same block the point is hoisted
// past it; across blocks without dominance the site is skipped.
func (p *pass) insertionPoint(dom *ir.DomInfo, op *ir.Value, block *ir.BasicBlock, idx int) (int, bool) {
	if dom.ValueDominates(op, block, idx) {
		return idx, true
	}
	if op.Block == block {
		di := ir.InstructionIndex(block, op.Def)
		if di >= 0 && di < len(block.Instructions) {
			return di + 1, true
		}
	}
	return 0, false
}

// insertObservation places an observe for val at block index idx,
// width-adapting to 32 bits first when needed. Returns the number of
// instructions inserted.
func (p *pass) insertObservation(block *ir.BasicBlock, idx, loc, side int, name string, val *ir.Value) int {
	inserted := 0
	operand := val
	if it, ok := val.Type.(*ir.IntType); ok && it.Bits != 32 {
		op := "zext"
		if it.Bits > 32 {
			op = "trunc"
		}
		cast := &ir.CastInstruction{ID: p.id(), Block: block, Op: op, Value: val, To: ir.I32}
		result := &ir.Value{ID: p.id(), Name: p.syntheticName(), Type: ir.I32, Kind: ir.ValueTemp, Def: cast, Block: block}
		cast.Result = result
		block.InsertAt(idx, cast)
		idx++
		inserted++
		operand = result
	}
	block.InsertAt(idx, &ir.ObserveInstruction{
		ID: p.id(), Block: block, Loc: loc, Branch: side, VarName: name, Operand: operand,
	})
	return inserted + 1
}

// marker preserves site presence for a non-integer condition without
// logging a value.
func (p *pass) marker(branch *ir.BranchTerminator, loc int) {
	for _, s := range []struct {
		block *ir.BasicBlock
		side  int
	}{{branch.True, 1}, {branch.False, 0}} {
		s.block.InsertAt(s.block.FirstNonPhiIndex(), &ir.ObserveInstruction{
			ID: p.id(), Block: s.block, Loc: loc, Branch: s.side, VarName: "_fp",
		})
		p.result.Observed++
	}
}

// varName resolves the observation name: the SSA name, then for loads
// the pointer name, then a synthetic counter.
func (p *pass) varName(op *ir.Value) string {
	if op.Name != "" {
		return op.Name
	}
	if load, ok := op.Def.(*ir.LoadInstruction); ok && load.Address.Name != "" {
		return load.Address.Name
	}
	return p.syntheticTmp()
}

func (p *pass) syntheticTmp() string {
	name := fmt.Sprintf("tmp_%d", p.tmp)
	p.tmp++
	return name
}

func (p *pass) syntheticName() string {
	name := fmt.Sprintf("obs_%d", p.tmp)
	p.tmp++
	return name
}

func (p *pass) diag(level diag.Level, code string, fn *ir.Function, line int, msg string) {
	p.result.Diagnostics = append(p.result.Diagnostics, diag.Diagnostic{
		Level: level, Code: code, Message: msg, Function: fn.Name, Line: line,
	})
}
