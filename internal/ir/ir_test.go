package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// diamond builds:
//
//	entry: %cmp = icmp sgt %a, 1 ; br %cmp, then, else
//	then:  jmp join
//	else:  jmp join
//	join:  %p = phi i32 [then: 1], [else: 0] ; ret %p
func diamond() (*Function, *BasicBlock, *BasicBlock, *BasicBlock, *BasicBlock) {
	entry := &BasicBlock{Label: "entry"}
	then := &BasicBlock{Label: "then"}
	els := &BasicBlock{Label: "else"}
	join := &BasicBlock{Label: "join"}

	a := &Value{ID: 1, Name: "a", Type: I32, Kind: ValueParam}
	cmp := &CompareInstruction{ID: 2, Block: entry, Pred: "sgt", Left: a, Right: Const(1, I32)}
	cmpVal := &Value{ID: 3, Name: "cmp", Type: I1, Kind: ValueTemp, Def: cmp, Block: entry}
	cmp.Result = cmpVal
	entry.Instructions = []Instruction{cmp}
	entry.Terminator = &BranchTerminator{ID: 4, Block: entry, Condition: cmpVal, True: then, False: els}

	then.Terminator = &JumpTerminator{ID: 5, Block: then, Target: join}
	els.Terminator = &JumpTerminator{ID: 6, Block: els, Target: join}

	phi := &PhiInstruction{ID: 7, Block: join, Incoming: []PhiEdge{
		{Block: then, Value: Const(1, I32)},
		{Block: els, Value: Const(0, I32)},
	}}
	phiVal := &Value{ID: 8, Name: "p", Type: I32, Kind: ValueTemp, Def: phi, Block: join}
	phi.Result = phiVal
	join.Instructions = []Instruction{phi}
	join.Terminator = &ReturnTerminator{ID: 9, Block: join, Value: phiVal}

	fn := &Function{
		Name:   "diamond",
		Params: []*Parameter{{Name: "a", Type: I32, Value: a}},
		Blocks: []*BasicBlock{entry, then, els, join},
		Line:   10,
	}
	fn.ComputeCFG()
	return fn, entry, then, els, join
}

func TestComputeCFG(t *testing.T) {
	_, entry, then, els, join := diamond()

	assert.Equal(t, []*BasicBlock{then, els}, entry.Successors)
	assert.Equal(t, []*BasicBlock{entry}, then.Predecessors)
	assert.Equal(t, []*BasicBlock{entry}, els.Predecessors)
	assert.ElementsMatch(t, []*BasicBlock{then, els}, join.Predecessors)
	assert.Empty(t, join.Successors)
}

func TestFirstNonPhiIndex(t *testing.T) {
	_, entry, _, _, join := diamond()

	assert.Equal(t, 0, entry.FirstNonPhiIndex())
	assert.Equal(t, 1, join.FirstNonPhiIndex())
}

func TestInsertAt(t *testing.T) {
	_, entry, _, _, _ := diamond()

	obs := &ObserveInstruction{ID: 99, Block: entry, Loc: 12, Branch: 1, VarName: "a"}
	entry.InsertAt(0, obs)

	assert.Len(t, entry.Instructions, 2)
	assert.Same(t, Instruction(obs), entry.Instructions[0])
}

func TestValueRef(t *testing.T) {
	assert.Equal(t, "%x", (&Value{Name: "x"}).Ref())
	assert.Equal(t, "-7", Const(-7, I32).Ref())
}

func TestInstructionStrings(t *testing.T) {
	_, entry, _, _, join := diamond()

	assert.Equal(t, "%cmp = icmp sgt %a, 1", entry.Instructions[0].String())
	assert.Equal(t, "br %cmp, then, else", entry.Terminator.String())
	assert.Equal(t, "%p = phi i32 [then: 1], [else: 0]", join.Instructions[0].String())
	assert.Equal(t, "ret %p", join.Terminator.String())

	obs := &ObserveInstruction{Loc: 12, Branch: 0, VarName: "argc", Operand: Const(3, I32)}
	assert.Equal(t, `observe 12, 0, "argc", 3`, obs.String())
	marker := &ObserveInstruction{Loc: 12, Branch: 1, VarName: "_fp"}
	assert.Equal(t, `observe 12, 1, "_fp"`, marker.String())
}

func TestTypeByName(t *testing.T) {
	for _, name := range []string{"i1", "i8", "i16", "i32", "i64", "f32", "f64", "ptr"} {
		typ, ok := TypeByName(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, typ.String())
	}
	_, ok := TypeByName("i128")
	assert.False(t, ok)
}
