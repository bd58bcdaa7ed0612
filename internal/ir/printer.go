package ir

import (
	"fmt"
	"strings"
)

// Printer renders a module in the textual IR form accepted by the
// grammar package, so print -> parse round-trips.
type Printer struct {
	output strings.Builder
}

// NewPrinter creates an empty printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Print returns the textual form of a module.
func Print(m *Module) string {
	p := NewPrinter()
	p.printModule(m)
	return p.output.String()
}

func (p *Printer) write(format string, args ...interface{}) {
	p.output.WriteString(fmt.Sprintf(format, args...))
}

func (p *Printer) printModule(m *Module) {
	p.write("module %s\n", m.Name)
	for _, f := range m.Functions {
		p.write("\n")
		p.printFunction(f)
	}
}

func (p *Printer) printFunction(f *Function) {
	params := make([]string, len(f.Params))
	for i, param := range f.Params {
		params[i] = fmt.Sprintf("%%%s: %s", param.Name, param.Type)
	}
	p.write("func @%s(%s)", f.Name, strings.Join(params, ", "))
	if f.Line > 0 {
		p.write(" line %d", f.Line)
	}
	p.write(" {\n")
	for _, b := range f.Blocks {
		p.printBlock(b)
	}
	p.write("}\n")
}

func (p *Printer) printBlock(b *BasicBlock) {
	p.write("%s:\n", b.Label)
	for _, inst := range b.Instructions {
		p.printInstruction(inst)
	}
	if b.Terminator != nil {
		p.printInstruction(b.Terminator)
	}
}

func (p *Printer) printInstruction(inst Instruction) {
	p.write("  %s", inst.String())
	if line := inst.GetLine(); line > 0 {
		p.write(" line %d", line)
	}
	p.write("\n")
}
