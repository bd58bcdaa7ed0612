// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"vase/grammar"
	"vase/internal/interp"
	"vase/internal/observe"
)

func main() {
	commonlog.Configure(0, nil)

	fn := flag.String("fn", "main", "function to execute")
	argList := flag.String("args", "", "comma-separated integer arguments")
	logPath := flag.String("log", "", "observation log path (default: $VASE_VALUE_LOG or "+observe.DefaultLogPath+")")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: vase-run [flags] <file.vir>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	module, err := grammar.ParseFile(path)
	if err != nil {
		color.Red("Failed to parse %s: %s", path, err)
		os.Exit(1)
	}

	args, err := parseArgs(*argList)
	if err != nil {
		color.Red("Bad arguments: %s", err)
		os.Exit(2)
	}

	sink := observe.NewSink()
	if *logPath != "" {
		sink = observe.NewSinkAt(*logPath)
	}

	machine := interp.New(module, sink)
	ret, err := machine.Run(*fn, args)
	if err != nil {
		color.Red("Execution failed: %s", err)
		os.Exit(1)
	}

	fmt.Println(ret)
	color.Green("✅ @%s returned %d; observations appended to %s", *fn, ret, sink.Path())
}

func parseArgs(list string) ([]int64, error) {
	if list == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	args := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an integer", p)
		}
		args[i] = v
	}
	return args, nil
}
