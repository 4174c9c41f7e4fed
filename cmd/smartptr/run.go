package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rawbytedev/smartptr/internal/script"
)

var ErrScenariosFailed = errors.New("scenarios failed")

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Run scenario files",
	Long: `Runs every scenario found in the given YAML files. A file may hold
several scenarios separated by "---".

Example:
  smartptr run testdata/shared.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var all []script.Scenario
		for _, file := range args {
			scs, err := script.Load(file)
			if err != nil {
				return err
			}
			all = append(all, scs...)
		}
		return runScenarios(cmd.OutOrStdout(), all)
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scs, err := script.Builtins()
		if err != nil {
			return err
		}
		return runScenarios(cmd.OutOrStdout(), scs)
	},
}

func runScenarios(w io.Writer, scs []script.Scenario) error {
	failed := 0
	for _, sc := range scs {
		res, err := script.Run(sc, script.Options{Logger: logger})
		printResult(w, res, err)
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, len(scs))
	}
	return nil
}

var (
	titleColor   = color.New(color.Bold)
	destroyColor = color.New(color.FgYellow)
	passColor    = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed, color.Bold)
)

func printResult(w io.Writer, res *script.Result, err error) {
	titleColor.Fprintf(w, "== %s\n", res.Scenario)
	for _, ev := range res.Events {
		if ev.Op == "destroy" {
			destroyColor.Fprintln(w, ev.String())
			continue
		}
		fmt.Fprintln(w, ev.String())
	}
	if err != nil {
		failColor.Fprintf(w, "FAIL %v\n", err)
		return
	}
	passColor.Fprintf(w, "PASS allocated=%d destroyed=%d detached=%d\n",
		res.Allocated, res.Destroyed, res.Stats.Detached)
}
