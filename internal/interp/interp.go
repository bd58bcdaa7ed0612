package interp

import (
	"fmt"

	"vase/internal/ir"
	"vase/internal/observe"
)

// A concrete executor for the IR. It exists to drive instrumented
// modules: observe instructions append records through the observation
// sink exactly as an instrumented native binary would. Values are kept
// as width-masked two's-complement bit patterns; floating-point
// operations are not executed (the instrumentation never observes them
// by value).

// MaxSteps bounds execution so a diverging test program fails instead
// of hanging the harness.
const MaxSteps = 1 << 20

// Machine executes functions of one module.
type Machine struct {
	module *ir.Module
	sink   *observe.Sink
	memory map[int64]int64
	steps  int
}

// New creates a machine. sink may be nil to discard observations.
func New(module *ir.Module, sink *observe.Sink) *Machine {
	return &Machine{
		module: module,
		sink:   sink,
		memory: map[int64]int64{},
	}
}

// Store seeds one memory cell, for programs that load through pointer
// arguments.
func (m *Machine) Store(addr, val int64) {
	m.memory[addr] = val
}

// Run executes the named function with the given arguments and returns
// its result (0 for void returns).
func (m *Machine) Run(name string, args []int64) (int64, error) {
	fn := m.function(name)
	if fn == nil {
		return 0, fmt.Errorf("unknown function @%s", name)
	}
	if len(args) != len(fn.Params) {
		return 0, fmt.Errorf("@%s takes %d arguments, got %d", name, len(fn.Params), len(args))
	}

	env := map[*ir.Value]int64{}
	for i, p := range fn.Params {
		env[p.Value] = truncate(args[i], p.Type)
	}
	return m.exec(fn, env)
}

func (m *Machine) function(name string) *ir.Function {
	for _, fn := range m.module.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func (m *Machine) exec(fn *ir.Function, env map[*ir.Value]int64) (int64, error) {
	block := fn.Entry()
	if block == nil {
		return 0, fmt.Errorf("@%s has no body", fn.Name)
	}
	var prev *ir.BasicBlock

	for {
		// Phis read their inputs simultaneously on block entry.
		var phiResults []struct {
			val *ir.Value
			v   int64
		}
		for _, inst := range block.Instructions {
			phi, ok := inst.(*ir.PhiInstruction)
			if !ok {
				break
			}
			v, err := m.phiInput(phi, prev, env)
			if err != nil {
				return 0, err
			}
			phiResults = append(phiResults, struct {
				val *ir.Value
				v   int64
			}{phi.Result, v})
		}
		for _, r := range phiResults {
			env[r.val] = r.v
		}

		for _, inst := range block.Instructions[len(phiResults):] {
			if err := m.step(); err != nil {
				return 0, err
			}
			if err := m.instruction(inst, env); err != nil {
				return 0, fmt.Errorf("@%s/%s: %w", fn.Name, block.Label, err)
			}
		}

		if err := m.step(); err != nil {
			return 0, err
		}
		switch term := block.Terminator.(type) {
		case *ir.ReturnTerminator:
			if term.Value == nil {
				return 0, nil
			}
			return m.value(term.Value, env)
		case *ir.JumpTerminator:
			prev, block = block, term.Target
		case *ir.BranchTerminator:
			cond, err := m.value(term.Condition, env)
			if err != nil {
				return 0, err
			}
			if cond != 0 {
				prev, block = block, term.True
			} else {
				prev, block = block, term.False
			}
		default:
			return 0, fmt.Errorf("block %s has no terminator", block.Label)
		}
	}
}

func (m *Machine) phiInput(phi *ir.PhiInstruction, prev *ir.BasicBlock, env map[*ir.Value]int64) (int64, error) {
	for _, in := range phi.Incoming {
		if in.Block == prev {
			return m.value(in.Value, env)
		}
	}
	return 0, fmt.Errorf("phi %s has no edge from %s", phi.Result.Ref(), labelOf(prev))
}

func (m *Machine) instruction(inst ir.Instruction, env map[*ir.Value]int64) error {
	switch n := inst.(type) {
	case *ir.BinaryInstruction:
		l, err := m.value(n.Left, env)
		if err != nil {
			return err
		}
		r, err := m.value(n.Right, env)
		if err != nil {
			return err
		}
		v, err := binary(n.Op, l, r, n.Result.Type)
		if err != nil {
			return err
		}
		env[n.Result] = v

	case *ir.CompareInstruction:
		if n.IsFloat() {
			return fmt.Errorf("float comparison %s not executable", n.String())
		}
		l, err := m.value(n.Left, env)
		if err != nil {
			return err
		}
		r, err := m.value(n.Right, env)
		if err != nil {
			return err
		}
		v, err := compare(n.Pred, l, r, n.Left.Type)
		if err != nil {
			return err
		}
		env[n.Result] = v

	case *ir.LoadInstruction:
		addr, err := m.value(n.Address, env)
		if err != nil {
			return err
		}
		env[n.Result] = truncate(m.memory[addr], n.Result.Type)

	case *ir.StoreInstruction:
		addr, err := m.value(n.Address, env)
		if err != nil {
			return err
		}
		val, err := m.value(n.Value, env)
		if err != nil {
			return err
		}
		m.memory[addr] = val

	case *ir.CastInstruction:
		val, err := m.value(n.Value, env)
		if err != nil {
			return err
		}
		env[n.Result] = cast(n.Op, val, n.Value.Type, n.To)

	case *ir.CallInstruction:
		callee := m.function(n.Callee)
		if callee == nil {
			return fmt.Errorf("unknown function @%s", n.Callee)
		}
		args := make([]int64, len(n.Args))
		for i, a := range n.Args {
			v, err := m.value(a, env)
			if err != nil {
				return err
			}
			args[i] = v
		}
		callEnv := map[*ir.Value]int64{}
		for i, p := range callee.Params {
			callEnv[p.Value] = truncate(args[i], p.Type)
		}
		ret, err := m.exec(callee, callEnv)
		if err != nil {
			return err
		}
		if n.Result != nil {
			env[n.Result] = truncate(ret, n.Result.Type)
		}

	case *ir.ObserveInstruction:
		var val int64
		if n.Operand != nil {
			v, err := m.value(n.Operand, env)
			if err != nil {
				return err
			}
			val = v
		}
		if m.sink != nil {
			m.sink.Append(observe.Record{Loc: n.Loc, Branch: n.Branch, Var: n.VarName, Val: int32(val)})
		}

	case *ir.PhiInstruction:
		return fmt.Errorf("phi %s not at block head", n.Result.Ref())

	default:
		return fmt.Errorf("unsupported instruction %s", inst.String())
	}
	return nil
}

func (m *Machine) value(v *ir.Value, env map[*ir.Value]int64) (int64, error) {
	if v.Kind == ir.ValueConst {
		return v.Int, nil
	}
	val, ok := env[v]
	if !ok {
		return 0, fmt.Errorf("use of unset value %s", v.Ref())
	}
	return val, nil
}

func (m *Machine) step() error {
	m.steps++
	if m.steps > MaxSteps {
		return fmt.Errorf("execution exceeded %d steps", MaxSteps)
	}
	return nil
}

func binary(op string, l, r int64, typ ir.Type) (int64, error) {
	switch op {
	case "add":
		return truncate(l+r, typ), nil
	case "sub":
		return truncate(l-r, typ), nil
	case "mul":
		return truncate(l*r, typ), nil
	case "sdiv":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return truncate(l/r, typ), nil
	case "udiv":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return truncate(int64(unsigned(l, typ)/unsigned(r, typ)), typ), nil
	case "srem":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return truncate(l%r, typ), nil
	case "urem":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return truncate(int64(unsigned(l, typ)%unsigned(r, typ)), typ), nil
	case "and":
		return truncate(l&r, typ), nil
	case "or":
		return truncate(l|r, typ), nil
	case "xor":
		return truncate(l^r, typ), nil
	case "shl":
		return truncate(l<<uint64(r&63), typ), nil
	case "lshr":
		return truncate(int64(unsigned(l, typ)>>uint64(r&63)), typ), nil
	case "ashr":
		return truncate(l>>uint64(r&63), typ), nil
	}
	return 0, fmt.Errorf("operation %q not executable", op)
}

func compare(pred string, l, r int64, typ ir.Type) (int64, error) {
	ul, ur := unsigned(l, typ), unsigned(r, typ)
	var ok bool
	switch pred {
	case "eq":
		ok = l == r
	case "ne":
		ok = l != r
	case "slt":
		ok = l < r
	case "sle":
		ok = l <= r
	case "sgt":
		ok = l > r
	case "sge":
		ok = l >= r
	case "ult":
		ok = ul < ur
	case "ule":
		ok = ul <= ur
	case "ugt":
		ok = ul > ur
	case "uge":
		ok = ul >= ur
	default:
		return 0, fmt.Errorf("predicate %q not executable", pred)
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

func cast(op string, v int64, from, to ir.Type) int64 {
	if op == "zext" {
		return int64(unsigned(v, from))
	}
	return truncate(v, to)
}

// truncate wraps v to the two's-complement range of typ.
func truncate(v int64, typ ir.Type) int64 {
	it, ok := typ.(*ir.IntType)
	if !ok || it.Bits >= 64 {
		return v
	}
	shift := uint(64 - it.Bits)
	return (v << shift) >> shift
}

// unsigned reinterprets v as the unsigned value of typ's width.
func unsigned(v int64, typ ir.Type) uint64 {
	it, ok := typ.(*ir.IntType)
	if !ok || it.Bits >= 64 {
		return uint64(v)
	}
	return uint64(v) & ((uint64(1) << it.Bits) - 1)
}

func labelOf(b *ir.BasicBlock) string {
	if b == nil {
		return "entry"
	}
	return b.Label
}
