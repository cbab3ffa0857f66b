package trace

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions     int         `yaml:"total_decisions"`
	AssignedCount      int         `yaml:"assigned"`
	RejectedCount      int         `yaml:"rejected"`
	MeanProbes         float64     `yaml:"mean_probes"`
	MaxProbes          int         `yaml:"max_probes"`
	UniqueTargets      int         `yaml:"unique_targets"`
	ReleaseCount       int         `yaml:"releases"`
	TargetDistribution map[int]int `yaml:"target_distribution"` // processor ID → count of calls assigned
}

// Print writes the summary in the same report layout as sim.Metrics.Print,
// listing the target distribution in processor order.
func (ts *TraceSummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "Decisions            : %d\n", ts.TotalDecisions)
	fmt.Fprintf(w, "Assigned / Rejected  : %d / %d\n", ts.AssignedCount, ts.RejectedCount)
	fmt.Fprintf(w, "Probes (mean / max)  : %.3f / %d\n", ts.MeanProbes, ts.MaxProbes)
	fmt.Fprintf(w, "Releases             : %d\n", ts.ReleaseCount)
	fmt.Fprintf(w, "Processors Targeted  : %d\n", ts.UniqueTargets)
	for _, pid := range slices.Sorted(maps.Keys(ts.TargetDistribution)) {
		fmt.Fprintf(w, "  processor %-4d     : %d\n", pid, ts.TargetDistribution[pid])
	}
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		TargetDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Allocations)
	totalProbes := 0
	for _, a := range st.Allocations {
		if a.Assigned {
			summary.AssignedCount++
			summary.TargetDistribution[a.Processor]++
		} else {
			summary.RejectedCount++
		}
		totalProbes += a.Probes
		if a.Probes > summary.MaxProbes {
			summary.MaxProbes = a.Probes
		}
	}
	if summary.TotalDecisions > 0 {
		summary.MeanProbes = float64(totalProbes) / float64(summary.TotalDecisions)
	}

	summary.UniqueTargets = len(summary.TargetDistribution)
	summary.ReleaseCount = len(st.Releases)

	return summary
}
