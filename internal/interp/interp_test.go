package interp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vase/grammar"
	"vase/internal/ir"
	"vase/internal/observe"
)

func parse(t *testing.T, source string) *ir.Module {
	t.Helper()
	module, err := grammar.ParseString("test.vir", source)
	require.NoError(t, err)
	return module
}

func TestRunBranching(t *testing.T) {
	module := parse(t, `module m

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
	machine := New(module, nil)

	ret, err := machine.Run("classify", []int64{3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ret)

	ret, err = machine.Run("classify", []int64{0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ret)
}

func TestRunLoopWithPhi(t *testing.T) {
	module := parse(t, `module m

func @sum(%n: i32) line 1 {
entry:
  jmp loop line 2
loop:
  %i = phi i32 [entry: 0], [loop: %inext]
  %acc = phi i32 [entry: 0], [loop: %anext]
  %anext = add %acc, %i line 3
  %inext = add %i, 1 line 4
  %cmp = icmp sle %inext, %n line 5
  br %cmp, loop, done line 5
done:
  ret %anext line 6
}
`)
	machine := New(module, nil)
	ret, err := machine.Run("sum", []int64{5})
	require.NoError(t, err)
	assert.Equal(t, int64(15), ret) // 0+1+2+3+4+5
}

func TestRunCallAndMemory(t *testing.T) {
	module := parse(t, `module m

func @main(%p: ptr) line 1 {
entry:
  %v = load i32, %p line 2
  %r = call i32 @double(%v) line 3
  store %p, %r line 4
  ret %r line 5
}

func @double(%x: i32) line 7 {
entry:
  %d = mul %x, 2 line 8
  ret %d line 8
}
`)
	machine := New(module, nil)
	machine.Store(1000, 21)

	ret, err := machine.Run("main", []int64{1000})
	require.NoError(t, err)
	assert.Equal(t, int64(42), ret)
}

func TestRunObservations(t *testing.T) {
	module := parse(t, `module m

func @watched(%argc: i32) line 10 {
entry:
  observe 10, -1, "argc", %argc line 10
  %cmp = icmp sgt %argc, 1 line 12
  br %cmp, then, else line 12
then:
  observe 12, 1, "argc", %argc line 12
  ret 1 line 13
else:
  observe 12, 0, "argc", %argc line 12
  ret 0 line 14
}
`)
	path := filepath.Join(t.TempDir(), "log.txt")
	machine := New(module, observe.NewSinkAt(path))

	_, err := machine.Run("watched", []int64{4})
	require.NoError(t, err)
	_, err = machine.Run("watched", []int64{0})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Equal(t, []string{
		"loc:10:branch:-1\targc:4",
		"loc:12:branch:1\targc:4",
		"loc:10:branch:-1\targc:0",
		"loc:12:branch:0\targc:0",
	}, lines)
}

func TestRunWidthWrapping(t *testing.T) {
	module := parse(t, `module m

func @wrap(%a: i8) line 1 {
entry:
  %b = add %a, 1 line 2
  %w = zext %b to i32 line 3
  ret %w line 4
}
`)
	machine := New(module, nil)
	ret, err := machine.Run("wrap", []int64{127})
	require.NoError(t, err)
	// 127+1 wraps to -128 in i8; zext reinterprets the bits as 128.
	assert.Equal(t, int64(128), ret)
}

func TestRunErrors(t *testing.T) {
	module := parse(t, `module m

func @div(%a: i32, %b: i32) line 1 {
entry:
  %q = sdiv %a, %b line 2
  ret %q line 3
}
`)
	machine := New(module, nil)

	_, err := machine.Run("div", []int64{4})
	assert.Error(t, err, "arity mismatch")

	_, err = machine.Run("missing", nil)
	assert.Error(t, err, "unknown function")

	_, err = machine.Run("div", []int64{4, 0})
	assert.Error(t, err, "division by zero")
}

func TestRunDivergenceIsBounded(t *testing.T) {
	module := parse(t, `module m

func @forever() line 1 {
entry:
  jmp entry line 2
}
`)
	machine := New(module, nil)
	_, err := machine.Run("forever", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}
