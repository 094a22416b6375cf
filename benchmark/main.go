// Package main times the shiftpoint CLI against a directory of metric tables.
// Every command runs with the memo disabled and then with a SQLite memo; the
// first memo run is reported as cold and the rest are averaged as warm.
//
// Prerequisites:
// - shiftpoint binary installed and available in PATH
// - A data directory holding one or more <metric>.csv tables and events.csv
//
// Usage: go run benchmark/main.go [data-dir]
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one command (no-memo average, cold run and warm average).
type BenchmarkResult struct {
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	DataDir     string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
	Commands    map[string][]string // command name -> extra args
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [data-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		DataDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Commands: map[string][]string{
			"segment":  nil,
			"rank":     {"--horizon", "14"},
			"dispatch": {"--trigger", "recomputeRanked"},
		},
	}

	metricArgs, err := checkPrerequisites(config)
	if err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing memo...\n")
	clearCmd := exec.Command("shiftpoint", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear memo: %v\nOutput: %s\n", err, string(output))
	}

	var results []BenchmarkResult
	for _, command := range []string{"segment", "rank", "dispatch"} {
		args := append(append([]string{}, metricArgs...), config.Commands[command]...)
		results = append(results, runBenchmarkSuite(config, command, args))
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// checkPrerequisites verifies the binary and data, returning the dataset flags.
func checkPrerequisites(config BenchmarkConfig) ([]string, error) {
	if _, err := exec.LookPath("shiftpoint"); err != nil {
		return nil, fmt.Errorf("shiftpoint binary not found in PATH")
	}

	events := filepath.Join(config.DataDir, "events.csv")
	if _, err := os.Stat(events); err != nil {
		return nil, fmt.Errorf("events table not found at %s", events)
	}

	tables, err := filepath.Glob(filepath.Join(config.DataDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	args := []string{"--events", events}
	for _, t := range tables {
		if t == events {
			continue
		}
		args = append(args, "--metrics", t)
	}
	if len(args) == 2 {
		return nil, fmt.Errorf("no metric tables found in %s", config.DataDir)
	}
	return args, nil
}

// runBenchmarkSuite runs the no-memo and memo phases for a command.
func runBenchmarkSuite(config BenchmarkConfig, command string, args []string) BenchmarkResult {
	fmt.Printf("Running %s\n", command)

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, command, args, cacheBackend, numRuns)
		if len(times) == 0 {
			return cold, "TIMEOUT"
		}
		var sum float64
		for _, t := range times {
			sum += t
		}
		return cold, fmt.Sprintf("%.3fs", sum/float64(len(times)))
	}

	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-memo")
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Memo")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}
	fmt.Printf("  No-memo average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{Command: command, NoCacheTime: noCacheAvg, ColdTime: coldTimeStr, WarmTime: warmAvg}
}

// runBenchmark executes one command numRuns times and returns the cold time and warm times.
func runBenchmark(config BenchmarkConfig, command string, extraArgs []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{command, "--cache-backend", cacheBackend}, extraArgs...)

	var times []float64
	for range numRuns {
		start := time.Now()
		cmd := exec.Command("shiftpoint", args...)

		done := make(chan struct{})
		var output []byte
		var cmdErr error
		go func() {
			output, cmdErr = cmd.CombinedOutput()
			close(done)
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return coldTime, warmTimes
}

// isSuccess checks for the summary line every text table ends with.
func isSuccess(output []byte) bool {
	out := string(output)
	return strings.Contains(out, "Completed in") && strings.Contains(out, "Cache backend")
}

// saveResults writes benchmark results to a timestamped CSV file.
func saveResults(results []BenchmarkResult) error {
	filename := fmt.Sprintf("/tmp/shiftpoint_benchmark_%s.csv", time.Now().Format("20060102_150405"))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Command, r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, r := range results {
		fmt.Printf("  %-10s: No-memo: %s, Cold: %s, Warm: %s\n", r.Command, r.NoCacheTime, r.ColdTime, r.WarmTime)
	}
}
