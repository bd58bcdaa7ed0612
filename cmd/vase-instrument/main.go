// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"vase/grammar"
	"vase/internal/diag"
	"vase/internal/instrument"
	"vase/internal/ir"
)

func main() {
	commonlog.Configure(0, nil)

	output := flag.String("o", "", "output path (stdout when empty)")
	noFloatMarkers := flag.Bool("no-float-markers", false, "drop branch markers for float conditions")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: vase-instrument [flags] <file.vir>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("Failed to read file: %s", err)
		os.Exit(1)
	}

	module, err := grammar.ParseString(path, string(source))
	if err != nil {
		reportParseError(string(source), err)
		os.Exit(1)
	}

	opts := instrument.DefaultOptions()
	opts.FloatMarkers = !*noFloatMarkers
	result, err := instrument.Run(module, opts)
	if err != nil {
		color.Red("Instrumentation failed: %s", err)
		os.Exit(1)
	}
	diag.Print(os.Stderr, result.Diagnostics)

	text := ir.Print(module)
	if *output == "" {
		fmt.Print(text)
	} else if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
		color.Red("Failed to write %s: %s", *output, err)
		os.Exit(1)
	}

	color.Green("✅ Instrumented %s: %d branch observations, %d entry observations, %d skipped",
		path, result.Observed, result.EntryObserved, result.Skipped)
}

// reportParseError prints a friendly caret-style parse error message.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("Unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("❌ Syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("→ %s\n", pe.Message())
}
