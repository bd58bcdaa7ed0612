package instrument_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vase/grammar"
	"vase/internal/distill"
	"vase/internal/inject"
	"vase/internal/instrument"
	"vase/internal/interp"
	"vase/internal/observe"
	"vase/internal/solver"
	"vase/internal/solver/brute"
)

// Drives the whole pipeline: instrument a program, execute it natively,
// distill the observation log, and let the wrapper inject a catalogued
// value into a symbolic query for the hot branch.
func TestProfileToInjectionPipeline(t *testing.T) {
	module, err := grammar.ParseString("classify.vir", `module demo

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
`)
	require.NoError(t, err)

	_, err = instrument.Run(module, instrument.DefaultOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "vase_value_log.txt")
	sink := observe.NewSinkAt(logPath)

	// Concrete runs: argc 4 and 9 each three times (hot), 0 three times
	// on the false side.
	for _, argc := range []int64{4, 4, 4, 9, 9, 9, 0, 0, 0} {
		machine := interp.New(module, sink)
		_, err := machine.Run("classify", []int64{argc})
		require.NoError(t, err)
	}

	m, err := distill.DistillFile(logPath, distill.Options{MinOccurrence: 3, MaxValues: 5})
	require.NoError(t, err)

	trueSide, ok := m.Site("loc:12:branch:1")
	require.True(t, ok)
	assert.Equal(t, []int64{4, 9}, trueSide.PooledInts(8))

	falseSide, ok := m.Site("loc:12:branch:0")
	require.True(t, ok)
	assert.Equal(t, []int64{0}, falseSide.PooledInts(8))

	// Entry observations distill under the bare function-line key.
	entrySite, ok := m.Site("loc:10")
	require.True(t, ok)
	assert.ElementsMatch(t, []int64{0, 4, 9}, entrySite.PooledInts(8))

	mapPath := filepath.Join(dir, "map.json")
	require.NoError(t, distill.WriteFile(m, mapPath))

	// Symbolic phase: a query tagged with the hot branch over one
	// symbolic byte gets pinned to the first catalogued value.
	cfg := inject.DefaultConfig()
	cfg.MapPath = mapPath
	cfg.Verbose = false
	w := inject.New(brute.New(), cfg)

	arr := &solver.Array{Name: "argc_sym", Size: 1}
	q := solver.Query{Constraints: []solver.Expr{
		solver.Annotated("loc:12:branch:1", solver.Constant(1, 1)),
		solver.Eq(solver.Read(arr, solver.Constant(0, 32)), solver.Read(arr, solver.Constant(0, 32))),
	}}

	values, err := w.InitialValues(q, []*solver.Array{arr})
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, values["argc_sym"])
}
