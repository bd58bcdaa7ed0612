package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vase/grammar"
	"vase/internal/diag"
	"vase/internal/ir"
)

func parse(t *testing.T, source string) *ir.Module {
	t.Helper()
	module, err := grammar.ParseString("test.vir", source)
	require.NoError(t, err)
	return module
}

func observations(b *ir.BasicBlock) []*ir.ObserveInstruction {
	var out []*ir.ObserveInstruction
	for _, inst := range b.Instructions {
		if obs, ok := inst.(*ir.ObserveInstruction); ok {
			out = append(out, obs)
		}
	}
	return out
}

func TestInstrumentCompareBranch(t *testing.T) {
	module := parse(t, `module m

func @classify(%argc: i32) line 10 {
entry:
  %cmp = icmp sgt %argc, 1 line 12
  br %cmp, then, else line 12
then:
  ret %argc line 13
else:
  ret %argc line 14
}
`)
	result, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]

	// The non-constant compare operand is observed on both sides; the
	// constant 1 is not.
	thenObs := observations(fn.Block("then"))
	require.Len(t, thenObs, 1)
	assert.Equal(t, 12, thenObs[0].Loc)
	assert.Equal(t, 1, thenObs[0].Branch)
	assert.Equal(t, "argc", thenObs[0].VarName)
	assert.Same(t, fn.Params[0].Value, thenObs[0].Operand)

	elseObs := observations(fn.Block("else"))
	require.Len(t, elseObs, 1)
	assert.Equal(t, 0, elseObs[0].Branch)

	// Plus the entry observation for the i32 argument.
	entryObs := observations(fn.Entry())
	require.Len(t, entryObs, 1)
	assert.Equal(t, 10, entryObs[0].Loc)
	assert.Equal(t, -1, entryObs[0].Branch)

	assert.Equal(t, 2, result.Observed)
	assert.Equal(t, 1, result.EntryObserved)
	assert.Equal(t, 0, result.Skipped)
}

func TestInstrumentWidthAdaptation(t *testing.T) {
	module := parse(t, `module m

func @wide(%n: i64) line 3 {
entry:
  %cmp = icmp eq %n, 7 line 5
  br %cmp, a, b line 5
a:
  ret 1 line 6
b:
  ret 0 line 7
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]

	// i64 operands are truncated to 32 bits before observation.
	a := fn.Block("a")
	cast, ok := a.Instructions[0].(*ir.CastInstruction)
	require.True(t, ok)
	assert.Equal(t, "trunc", cast.Op)
	assert.Equal(t, ir.I32, cast.To)
	obs := a.Instructions[1].(*ir.ObserveInstruction)
	assert.Same(t, cast.Result, obs.Operand)
	assert.Equal(t, "n", obs.VarName)

	// The entry observation gets its own cast too.
	entry := fn.Entry()
	entryCast, ok := entry.Instructions[0].(*ir.CastInstruction)
	require.True(t, ok)
	assert.Equal(t, "trunc", entryCast.Op)
}

func TestInstrumentNamedBooleanCondition(t *testing.T) {
	module := parse(t, `module m

func @flag(%a: i32, %b: i32) line 1 {
entry:
  %x = icmp slt %a, %b line 2
  %y = icmp sgt %a, 0 line 2
  %both = and %x, %y line 3
  br %both, t, f line 3
t:
  ret 1 line 4
f:
  ret 0 line 5
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	// The condition is an and; its operands (both i1 temporaries) are
	// observed, zero-extended to 32 bits.
	fn := module.Functions[0]
	tObs := observations(fn.Block("t"))
	require.Len(t, tObs, 2)
	assert.Equal(t, "x", tObs[0].VarName)
	assert.Equal(t, "y", tObs[1].VarName)
	cast := fn.Block("t").Instructions[0].(*ir.CastInstruction)
	assert.Equal(t, "zext", cast.Op)
}

func TestInstrumentPhiSkippedAtInsertion(t *testing.T) {
	module := parse(t, `module m

func @merge(%a: i32, %c: i1) line 1 {
entry:
  br %c, t, f line 2
t:
  jmp join line 3
f:
  jmp join line 4
join:
  %m = phi i32 [t: %a], [f: 0]
  %cmp = icmp eq %m, 5 line 6
  br %cmp, yes, no line 6
yes:
  %j = phi i32 [join: %m]
  ret %j line 7
no:
  ret 0 line 8
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	// Observations land after the leading phi in the successor.
	fn := module.Functions[0]
	yes := fn.Block("yes")
	_, isPhi := yes.Instructions[0].(*ir.PhiInstruction)
	assert.True(t, isPhi, "phi must stay first")
	obs := observations(yes)
	require.Len(t, obs, 1)
	assert.Equal(t, "m", obs[0].VarName)
}

func TestInstrumentDominanceSkip(t *testing.T) {
	// The condition operand %x is defined in block t; the join is also
	// reachable from f, so %x does not dominate it and observation on the
	// join side must be skipped rather than miscompiled.
	module := parse(t, `module m

func @skip(%a: i32, %c: i1) line 1 {
entry:
  br %c, t, f line 2
t:
  %x = add %a, 1 line 3
  %cmp = icmp eq %x, 3 line 4
  br %cmp, join, other line 4
f:
  jmp join line 5
other:
  ret 0 line 6
join:
  ret 1 line 7
}
`)
	result, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]
	// join gets no observation of %x...
	assert.Empty(t, observations(fn.Block("join")))
	// ...but the dominated side does.
	otherObs := observations(fn.Block("other"))
	require.Len(t, otherObs, 1)
	assert.Equal(t, "x", otherObs[0].VarName)

	assert.Positive(t, result.Skipped)
	found := false
	for _, d := range result.Diagnostics {
		if d.Code == diag.CodeDominanceSkip {
			found = true
		}
	}
	assert.True(t, found, "dominance skip must be diagnosed")
}

func TestInstrumentSelfLoopHoistsAfterDefinition(t *testing.T) {
	module := parse(t, `module m

func @countdown(%n: i32) line 1 {
entry:
  jmp loop line 2
loop:
  %i = phi i32 [entry: %n], [loop: %next]
  %next = sub %i, 1 line 3
  %cmp = icmp sgt %next, 0 line 4
  br %cmp, loop, done line 4
done:
  ret %next line 5
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]
	loop := fn.Block("loop")
	obs := observations(loop)
	require.Len(t, obs, 1, "self-loop side observation is hoisted after the definition")
	idx := ir.InstructionIndex(loop, obs[0])
	def := ir.InstructionIndex(loop, obs[0].Operand.Def)
	assert.Greater(t, idx, def)
}

func TestInstrumentFloatMarker(t *testing.T) {
	module := parse(t, `module m

func @fp(%a: f64, %b: f64) line 1 {
entry:
  %cmp = fcmp ogt %a, %b line 2
  br %cmp, t, f line 2
t:
  ret 1 line 3
f:
  ret 0 line 4
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]
	tObs := observations(fn.Block("t"))
	require.Len(t, tObs, 1)
	assert.Equal(t, "_fp", tObs[0].VarName)
	assert.Nil(t, tObs[0].Operand)

	// Float arguments are not observed at entry either.
	assert.Empty(t, observations(fn.Entry()))
}

func TestInstrumentFloatMarkersDisabled(t *testing.T) {
	module := parse(t, `module m

func @fp(%a: f64) line 1 {
entry:
  %cmp = fcmp ogt %a, 0 line 2
  br %cmp, t, f line 2
t:
  ret 1 line 3
f:
  ret 0 line 4
}
`)
	_, err := Run(module, Options{FloatMarkers: false})
	require.NoError(t, err)
	fn := module.Functions[0]
	assert.Empty(t, observations(fn.Block("t")))
	assert.Empty(t, observations(fn.Block("f")))
}

func TestInstrumentSyntheticSiteFallback(t *testing.T) {
	module := parse(t, `module m

func @nodebug(%a: i32) line 21 {
entry:
  %cmp = icmp eq %a, 0
  br %cmp, t, f
t:
  ret 0
f:
  ret %a
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	// With no line on the terminator the site falls back to the
	// function's start line.
	fn := module.Functions[0]
	obs := observations(fn.Block("t"))
	require.Len(t, obs, 1)
	assert.Equal(t, 21, obs[0].Loc)
}

func TestInstrumentRefusesSecondPass(t *testing.T) {
	module := parse(t, `module m

func @f(%a: i32) line 1 {
entry:
  %cmp = icmp eq %a, 0 line 2
  br %cmp, t, f line 2
t:
  ret 0 line 3
f:
  ret %a line 4
}
`)
	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	_, err = Run(module, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already instrumented")
}

func TestInstrumentPreservesCFGAndTerminators(t *testing.T) {
	source := `module m

func @classify(%argc: i32) line 10 {
entry:
  %cmp = icmp sgt %argc, 1 line 12
  br %cmp, then, else line 12
then:
  %x = add %argc, 4 line 13
  jmp join line 13
else:
  jmp join line 14
join:
  %y = phi i32 [then: %x], [else: %argc]
  ret %y line 15
}
`
	module := parse(t, source)
	before := module.Functions[0]
	var labels []string
	for _, b := range before.Blocks {
		labels = append(labels, b.Label)
	}

	_, err := Run(module, DefaultOptions())
	require.NoError(t, err)

	fn := module.Functions[0]
	var after []string
	for _, b := range fn.Blocks {
		after = append(after, b.Label)
		require.NotNil(t, b.Terminator)
	}
	assert.Equal(t, labels, after, "instrumentation must not change the block structure")

	branch := fn.Entry().Terminator.(*ir.BranchTerminator)
	assert.Equal(t, "then", branch.True.Label)
	assert.Equal(t, "else", branch.False.Label)
}
