package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rawbytedev/smartptr/pkg/sharedptr"
	"github.com/rawbytedev/smartptr/pkg/uniqueptr"
)

var (
	profileOut    string
	profileIters  int
	profileFanout int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Churn owners and write a heap profile",
	Long: `Repeatedly makes, clones, moves and closes owners, then writes a heap
profile sampled at every allocation. Inspect it with "go tool pprof".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileIters <= 0 || profileFanout <= 0 {
			return errors.New("iterations and fanout must be positive")
		}
		f, err := os.Create(profileOut)
		if err != nil {
			return err
		}
		defer f.Close()

		defer func(rate int) { runtime.MemProfileRate = rate }(runtime.MemProfileRate)
		runtime.MemProfileRate = 1
		start := time.Now()
		if err := churn(profileIters, profileFanout); err != nil {
			return err
		}
		elapsed := time.Since(start)
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("write heap profile: %w", err)
		}
		logger.Info("profile written",
			zap.String("file", profileOut),
			zap.Int("iterations", profileIters),
			zap.Int("fanout", profileFanout),
			zap.Duration("elapsed", elapsed))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d iterations in %s)\n", profileOut, profileIters, elapsed)
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVarP(&profileOut, "out", "o", "mem.prof", "heap profile destination")
	profileCmd.Flags().IntVarP(&profileIters, "iterations", "n", 10000, "make/clone/close cycles")
	profileCmd.Flags().IntVar(&profileFanout, "fanout", 4, "clones per shared value")
}

type record struct {
	Key   string
	Vals  []int16
	Score float64
}

// churn runs the ownership hot paths. Every value made is closed before
// returning.
func churn(iters, fanout int) error {
	clones := make([]*sharedptr.Ptr[record], fanout)
	for i := 0; i < iters; i++ {
		p := sharedptr.Make(record{Key: "k", Vals: []int16{int16(i), 1, 2}, Score: float64(i)})
		for j := range clones {
			clones[j] = p.Clone()
		}
		held := uniqueptr.Make(p.Value())
		next := held.Move()
		if err := p.Close(); err != nil {
			return err
		}
		for _, c := range clones {
			if err := c.Close(); err != nil {
				return err
			}
		}
		if err := next.Close(); err != nil {
			return err
		}
	}
	return nil
}
