package grammar

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"

	"vase/internal/ir"
)

var virParser = participle.MustBuild[Module](
	participle.Lexer(VirLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseFile parses a .vir file into the IR.
func ParseFile(path string) (*ir.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseString(path, string(source))
}

// ParseString parses textual IR into the IR. The path only labels
// errors.
func ParseString(path, source string) (*ir.Module, error) {
	mod, err := virParser.ParseString(path, source)
	if err != nil {
		return nil, err
	}
	return convert(mod)
}

// converter lowers one function's parse nodes into IR, resolving value
// and block references.
type converter struct {
	fn     *ir.Function
	values map[string]*ir.Value
	blocks map[string]*ir.BasicBlock
	nextID int
}

func convert(mod *Module) (*ir.Module, error) {
	out := &ir.Module{Name: mod.Name}
	for _, fn := range mod.Functions {
		converted, err := (&converter{}).function(fn)
		if err != nil {
			return nil, fmt.Errorf("func %s: %w", strings.TrimPrefix(fn.Name, "@"), err)
		}
		out.Functions = append(out.Functions, converted)
	}
	return out, nil
}

func (c *converter) id() int {
	c.nextID++
	return c.nextID
}

func (c *converter) function(fn *Function) (*ir.Function, error) {
	c.fn = &ir.Function{Name: strings.TrimPrefix(fn.Name, "@"), Line: lineOf(fn.Line)}
	c.values = map[string]*ir.Value{}
	c.blocks = map[string]*ir.BasicBlock{}

	for _, p := range fn.Params {
		typ, ok := ir.TypeByName(p.Type)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", p.Type)
		}
		name := strings.TrimPrefix(p.Name, "%")
		if _, exists := c.values[name]; exists {
			return nil, fmt.Errorf("duplicate parameter %%%s", name)
		}
		val := &ir.Value{ID: c.id(), Name: name, Type: typ, Kind: ir.ValueParam}
		c.values[name] = val
		c.fn.Params = append(c.fn.Params, &ir.Parameter{Name: name, Type: typ, Value: val})
	}

	for _, b := range fn.Blocks {
		if _, exists := c.blocks[b.Label]; exists {
			return nil, fmt.Errorf("duplicate block label %q", b.Label)
		}
		block := &ir.BasicBlock{Label: b.Label}
		c.blocks[b.Label] = block
		c.fn.Blocks = append(c.fn.Blocks, block)
	}

	for _, b := range fn.Blocks {
		if err := c.block(c.blocks[b.Label], b); err != nil {
			return nil, fmt.Errorf("block %s: %w", b.Label, err)
		}
	}

	for name, val := range c.values {
		if val.Type == nil {
			return nil, fmt.Errorf("phi references undefined value %%%s", name)
		}
	}
	for _, block := range c.fn.Blocks {
		if block.Terminator == nil {
			return nil, fmt.Errorf("block %s has no terminator", block.Label)
		}
	}

	c.fn.ComputeCFG()
	return c.fn, nil
}

func (c *converter) block(block *ir.BasicBlock, node *Block) error {
	for _, instr := range node.Instrs {
		if block.Terminator != nil {
			return fmt.Errorf("instruction after terminator")
		}
		if err := c.instruction(block, instr); err != nil {
			return err
		}
	}
	return nil
}

func (c *converter) instruction(block *ir.BasicBlock, node *Instr) error {
	switch {
	case node.Assign != nil:
		return c.assign(block, node.Assign)
	case node.Store != nil:
		addr, err := c.operand(node.Store.Addr, ir.Ptr)
		if err != nil {
			return err
		}
		val, err := c.operand(node.Store.Value, ir.I32)
		if err != nil {
			return err
		}
		block.Instructions = append(block.Instructions, &ir.StoreInstruction{
			ID: c.id(), Block: block, Line: lineOf(node.Store.Line), Address: addr, Value: val,
		})
	case node.Call != nil:
		args, err := c.operands(node.Call.Args)
		if err != nil {
			return err
		}
		block.Instructions = append(block.Instructions, &ir.CallInstruction{
			ID: c.id(), Block: block, Line: lineOf(node.Call.Line),
			Callee: strings.TrimPrefix(node.Call.Callee, "@"), Args: args,
		})
	case node.Observe != nil:
		var operand *ir.Value
		if node.Observe.Operand != nil {
			var err error
			operand, err = c.operand(node.Observe.Operand, ir.I32)
			if err != nil {
				return err
			}
		}
		block.Instructions = append(block.Instructions, &ir.ObserveInstruction{
			ID: c.id(), Block: block, Line: lineOf(node.Observe.Line),
			Loc: node.Observe.Loc, Branch: node.Observe.Branch,
			VarName: strings.Trim(node.Observe.Var, `"`), Operand: operand,
		})
	case node.Br != nil:
		cond, err := c.operand(node.Br.Cond, ir.I1)
		if err != nil {
			return err
		}
		tb, err := c.target(node.Br.True)
		if err != nil {
			return err
		}
		fb, err := c.target(node.Br.False)
		if err != nil {
			return err
		}
		block.Terminator = &ir.BranchTerminator{
			ID: c.id(), Block: block, Line: lineOf(node.Br.Line),
			Condition: cond, True: tb, False: fb,
		}
	case node.Jmp != nil:
		target, err := c.target(node.Jmp.Target)
		if err != nil {
			return err
		}
		block.Terminator = &ir.JumpTerminator{
			ID: c.id(), Block: block, Line: lineOf(node.Jmp.Line), Target: target,
		}
	case node.Ret != nil:
		var val *ir.Value
		if node.Ret.Value != nil {
			var err error
			val, err = c.operand(node.Ret.Value, ir.I32)
			if err != nil {
				return err
			}
		}
		block.Terminator = &ir.ReturnTerminator{
			ID: c.id(), Block: block, Line: lineOf(node.Ret.Line), Value: val,
		}
	default:
		return fmt.Errorf("empty instruction node")
	}
	return nil
}

func (c *converter) assign(block *ir.BasicBlock, node *Assign) error {
	name := strings.TrimPrefix(node.Result, "%")
	line := lineOf(node.Line)

	switch {
	case node.Cmp != nil:
		left, right, err := c.pair(node.Cmp.Left, node.Cmp.Right)
		if err != nil {
			return err
		}
		inst := &ir.CompareInstruction{
			ID: c.id(), Block: block, Line: line,
			Pred: node.Cmp.Pred, Left: left, Right: right,
		}
		return c.finish(block, inst, name, ir.I1, func(v *ir.Value) { inst.Result = v })

	case node.Load != nil:
		typ, ok := ir.TypeByName(node.Load.Type)
		if !ok {
			return fmt.Errorf("unknown type %q", node.Load.Type)
		}
		addr, err := c.operand(node.Load.Addr, ir.Ptr)
		if err != nil {
			return err
		}
		inst := &ir.LoadInstruction{ID: c.id(), Block: block, Line: line, Address: addr}
		return c.finish(block, inst, name, typ, func(v *ir.Value) { inst.Result = v })

	case node.Phi != nil:
		typ, ok := ir.TypeByName(node.Phi.Type)
		if !ok {
			return fmt.Errorf("unknown type %q", node.Phi.Type)
		}
		inst := &ir.PhiInstruction{ID: c.id(), Block: block, Line: line}
		for _, edge := range node.Phi.Edges {
			pred, err := c.target(edge.Label)
			if err != nil {
				return err
			}
			val, err := c.phiOperand(edge.Value, typ)
			if err != nil {
				return err
			}
			inst.Incoming = append(inst.Incoming, ir.PhiEdge{Block: pred, Value: val})
		}
		return c.finish(block, inst, name, typ, func(v *ir.Value) { inst.Result = v })

	case node.Cast != nil:
		to, ok := ir.TypeByName(node.Cast.To)
		if !ok {
			return fmt.Errorf("unknown type %q", node.Cast.To)
		}
		val, err := c.operand(node.Cast.Value, ir.I32)
		if err != nil {
			return err
		}
		inst := &ir.CastInstruction{ID: c.id(), Block: block, Line: line, Op: node.Cast.Op, Value: val, To: to}
		return c.finish(block, inst, name, to, func(v *ir.Value) { inst.Result = v })

	case node.Call != nil:
		typ, ok := ir.TypeByName(node.Call.Type)
		if !ok {
			return fmt.Errorf("unknown type %q", node.Call.Type)
		}
		args, err := c.operands(node.Call.Args)
		if err != nil {
			return err
		}
		inst := &ir.CallInstruction{
			ID: c.id(), Block: block, Line: line,
			Callee: strings.TrimPrefix(node.Call.Callee, "@"), Args: args,
		}
		return c.finish(block, inst, name, typ, func(v *ir.Value) { inst.Result = v })

	case node.Bin != nil:
		if !validBinOp(node.Bin.Op) {
			return fmt.Errorf("unknown operation %q", node.Bin.Op)
		}
		left, right, err := c.pair(node.Bin.Left, node.Bin.Right)
		if err != nil {
			return err
		}
		inst := &ir.BinaryInstruction{
			ID: c.id(), Block: block, Line: line,
			Op: node.Bin.Op, Left: left, Right: right,
		}
		return c.finish(block, inst, name, left.Type, func(v *ir.Value) { inst.Result = v })
	}
	return fmt.Errorf("empty assignment to %%%s", name)
}

// finish registers the result value for an instruction and appends it.
func (c *converter) finish(block *ir.BasicBlock, inst ir.Instruction, name string, typ ir.Type, bind func(*ir.Value)) error {
	val, err := c.define(name, typ, inst, block)
	if err != nil {
		return err
	}
	bind(val)
	block.Instructions = append(block.Instructions, inst)
	return nil
}

// define creates (or fills a phi-forward placeholder for) the value
// named name.
func (c *converter) define(name string, typ ir.Type, def ir.Instruction, block *ir.BasicBlock) (*ir.Value, error) {
	if existing, ok := c.values[name]; ok {
		if existing.Type != nil || existing.Kind != ir.ValueTemp {
			return nil, fmt.Errorf("redefinition of %%%s", name)
		}
		existing.Type = typ
		existing.Def = def
		existing.Block = block
		return existing, nil
	}
	val := &ir.Value{ID: c.id(), Name: name, Type: typ, Kind: ir.ValueTemp, Def: def, Block: block}
	c.values[name] = val
	return val, nil
}

// operand resolves a non-phi operand. References must already be
// defined; integer literals adopt constType.
func (c *converter) operand(node *Operand, constType ir.Type) (*ir.Value, error) {
	if node.Ref != nil {
		name := strings.TrimPrefix(*node.Ref, "%")
		val, ok := c.values[name]
		if !ok || val.Type == nil {
			return nil, fmt.Errorf("use of undefined value %%%s", name)
		}
		return val, nil
	}
	return ir.Const(*node.Int, constType), nil
}

// phiOperand is like operand but may forward-reference a value defined
// later in the function; the placeholder is typed by the phi.
func (c *converter) phiOperand(node *Operand, typ ir.Type) (*ir.Value, error) {
	if node.Int != nil {
		return ir.Const(*node.Int, typ), nil
	}
	name := strings.TrimPrefix(*node.Ref, "%")
	if val, ok := c.values[name]; ok {
		return val, nil
	}
	placeholder := &ir.Value{ID: c.id(), Name: name, Kind: ir.ValueTemp}
	c.values[name] = placeholder
	return placeholder, nil
}

// pair resolves two operands, giving untyped literals the type of the
// sibling reference (both literal defaults to i32).
func (c *converter) pair(l, r *Operand) (*ir.Value, *ir.Value, error) {
	if l.Ref != nil {
		left, err := c.operand(l, ir.I32)
		if err != nil {
			return nil, nil, err
		}
		right, err := c.operand(r, left.Type)
		if err != nil {
			return nil, nil, err
		}
		return left, right, nil
	}
	right, err := c.operand(r, ir.I32)
	if err != nil {
		return nil, nil, err
	}
	left, err := c.operand(l, right.Type)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (c *converter) operands(nodes []*Operand) ([]*ir.Value, error) {
	out := make([]*ir.Value, 0, len(nodes))
	for _, n := range nodes {
		val, err := c.operand(n, ir.I32)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (c *converter) target(label string) (*ir.BasicBlock, error) {
	block, ok := c.blocks[label]
	if !ok {
		return nil, fmt.Errorf("unknown block label %q", label)
	}
	return block, nil
}

func validBinOp(op string) bool {
	switch op {
	case "add", "sub", "mul", "sdiv", "udiv", "srem", "urem",
		"and", "or", "xor", "shl", "lshr", "ashr",
		"fadd", "fsub", "fmul", "fdiv":
		return true
	}
	return false
}

func lineOf(line *int) int {
	if line == nil {
		return 0
	}
	return *line
}
