// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"os"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"vase/internal/config"
	"vase/internal/distill"
	"vase/internal/observe"
)

func main() {
	commonlog.Configure(0, nil)

	cfg := config.Default()
	logPath := flag.String("log", observe.DefaultLogPath, "observation log to distill (*.zst accepted)")
	outPath := flag.String("out", "vase_value_map.json", "limited-value map output path")
	minOccurrence := flag.Int("min-occurrence", cfg.Distill.MinOccurrence, "minimum observations for a value to survive")
	maxValues := flag.Int("max-values", cfg.Distill.MaxValues, "maximum values kept per site variable")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			color.Red("%s", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	opts := cfg.Distill
	if flagPassed("min-occurrence") || *configPath == "" {
		opts.MinOccurrence = *minOccurrence
	}
	if flagPassed("max-values") || *configPath == "" {
		opts.MaxValues = *maxValues
	}

	m, err := distill.DistillFile(*logPath, opts)
	if err != nil {
		color.Red("Distillation failed: %s", err)
		os.Exit(1)
	}
	if err := distill.WriteFile(m, *outPath); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}

	color.Green("✅ Distilled %s → %s (%d sites)", *logPath, *outPath, m.Len())
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
