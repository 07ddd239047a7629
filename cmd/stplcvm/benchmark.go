package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/logging"
	"github.com/scanloop/stplc/internal/vm"
)

func newBenchmarkCmd() *cobra.Command {
	var cycles, warmup uint64

	cmd := &cobra.Command{
		Use:   "benchmark FILE",
		Short: "Time repeated scheduling rounds and report min/median/mean/max",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(args[0], cycles, warmup)
		},
	}
	cmd.Flags().Uint64Var(&cycles, "cycles", 10000, "number of measured scan cycles")
	cmd.Flags().Uint64Var(&warmup, "warmup", 1000, "number of warmup scan cycles before measurement")
	return cmd
}

func runBenchmark(path string, cycles, warmup uint64) error {
	log := logging.New(verbosity)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	c, err := container.Read(data)
	if err != nil {
		return fmt.Errorf("unable to read container %s: %w", path, err)
	}

	m := vm.New(c)
	if !m.Start() {
		return fmt.Errorf("vm: failed to start")
	}
	sched := vm.NewScheduler(m)

	var round uint64
	runRound := func() error {
		if tr := sched.RunRound(round); tr != nil {
			return fmt.Errorf("vm trap during benchmark: %s", tr.Error())
		}
		round++
		return nil
	}

	for i := uint64(0); i < warmup; i++ {
		if err := runRound(); err != nil {
			return err
		}
	}

	log.WithField("cycles", cycles).WithField("warmup", warmup).Info("benchmark starting")

	durations := make([]time.Duration, 0, cycles)
	for i := uint64(0); i < cycles; i++ {
		t0 := time.Now()
		if err := runRound(); err != nil {
			return err
		}
		durations = append(durations, time.Since(t0))
	}

	reportStats(durations)
	return nil
}

func reportStats(durations []time.Duration) {
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	n := len(durations)
	if n == 0 {
		fmt.Println("no measured rounds")
		return
	}

	min := durations[0]
	max := durations[n-1]
	mean := sum / time.Duration(n)
	median := durations[n/2]

	fmt.Printf("min:    %s\n", min)
	fmt.Printf("median: %s\n", median)
	fmt.Printf("mean:   %s\n", mean)
	fmt.Printf("max:    %s\n", max)
}
