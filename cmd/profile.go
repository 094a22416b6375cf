package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/huangsam/shiftpoint/internal/contract"
)

// profiler owns the open CPU profile of a run started with --profile.
type profiler struct {
	cpu *os.File
}

// activeProfiler is set by sharedSetup and cleared by StopProfiling.
var activeProfiler *profiler

func (p *profiler) paths(prefix string) (cpu, mem string) {
	return prefix + ".cpu.prof", prefix + ".mem.prof"
}

// startProfiling opens the CPU profile named by pc.
func startProfiling(pc *contract.ProfileConfig) (*profiler, error) {
	p := &profiler{}
	cpuPath, memPath := p.paths(pc.Prefix)

	f, err := os.Create(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profiling: %w", err)
	}
	p.cpu = f

	fmt.Fprintf(os.Stderr, "Profiling to %s and %s\n", cpuPath, memPath)
	return p, nil
}

// stop flushes the CPU profile and writes a heap snapshot next to it.
func (p *profiler) stop(prefix string) error {
	pprof.StopCPUProfile()
	_ = p.cpu.Close()

	_, memPath := p.paths(prefix)
	mem, err := os.Create(memPath)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = mem.Close() }()

	if err := pprof.WriteHeapProfile(mem); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Profiling complete. Inspect with 'go tool pprof %s'\n", p.cpu.Name())
	return nil
}

// StopProfiling stops profiling if a profile is open.
func StopProfiling() error {
	if activeProfiler == nil {
		return nil
	}
	p := activeProfiler
	activeProfiler = nil
	return p.stop(profile.Prefix)
}
