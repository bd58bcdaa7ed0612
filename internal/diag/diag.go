package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Level represents the severity of a diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
)

// Diagnostic code ranges:
// V0100-V0199: instrumentation pass
// V0200-V0299: distiller
// V0300-V0399: injection wrapper
const (
	// V0101: a logged value's definition does not dominate the insertion
	// point and cannot be hoisted; the site is skipped.
	CodeDominanceSkip = "V0101"

	// V0102: a branch condition has no integer operands to log.
	CodeNonIntegerCondition = "V0102"

	// V0103: the module already contains observation instructions.
	CodeAlreadyInstrumented = "V0103"
)

// Diagnostic is one structured message from a core pass.
type Diagnostic struct {
	Level    Level
	Code     string
	Message  string
	Function string
	Line     int
}

func (d Diagnostic) String() string {
	where := d.Function
	if d.Line > 0 {
		where = fmt.Sprintf("%s:%d", d.Function, d.Line)
	}
	if where == "" {
		return fmt.Sprintf("%s[%s]: %s", d.Level, d.Code, d.Message)
	}
	return fmt.Sprintf("%s[%s]: %s: %s", d.Level, d.Code, where, d.Message)
}

// Print writes diagnostics to w with severity coloring.
func Print(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		switch d.Level {
		case Error:
			fmt.Fprintln(w, color.RedString("%s", d))
		case Warning:
			fmt.Fprintln(w, color.YellowString("%s", d))
		default:
			fmt.Fprintln(w, d.String())
		}
	}
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Level == Error {
			return true
		}
	}
	return false
}
