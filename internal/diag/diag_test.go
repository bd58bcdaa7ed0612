package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Level: Warning, Code: CodeDominanceSkip, Message: "observation skipped", Function: "classify", Line: 12}
	assert.Equal(t, "warning[V0101]: classify:12: observation skipped", d.String())

	bare := Diagnostic{Level: Error, Code: CodeAlreadyInstrumented, Message: "already instrumented"}
	assert.Equal(t, "error[V0103]: already instrumented", bare.String())
}

func TestPrint(t *testing.T) {
	var sb strings.Builder
	Print(&sb, []Diagnostic{
		{Level: Warning, Code: CodeDominanceSkip, Message: "a", Function: "f", Line: 1},
		{Level: Note, Code: CodeNonIntegerCondition, Message: "b", Function: "f"},
	})
	out := sb.String()
	assert.Contains(t, out, "V0101")
	assert.Contains(t, out, "V0102")
}

func TestHasErrors(t *testing.T) {
	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]Diagnostic{{Level: Warning}}))
	assert.True(t, HasErrors([]Diagnostic{{Level: Warning}, {Level: Error}}))
}
