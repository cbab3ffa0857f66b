// Tracks run-wide performance metrics such as completed and blocked calls,
// wait time and processor utilization.

package sim

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// Metrics aggregates statistics about one run for final reporting.
// Contains no wall-clock values: two runs with the same RunConfig produce
// identical Metrics.
type Metrics struct {
	Mode Mode  `yaml:"mode"`
	Seed int64 `yaml:"seed"`

	Generated int `yaml:"generated"` // calls drawn from the traffic source
	Arrivals  int `yaml:"arrivals"`  // arrival events processed
	Completed int `yaml:"completed"` // completions counted toward the target
	Drained   int `yaml:"drained"`   // completions while draining, not counted
	Blocked   int `yaml:"blocked"`   // arrivals rejected by the strategy
	Discarded int `yaml:"discarded"` // pending arrivals dropped when draining began

	ClassCompleted []int `yaml:"class_completed"`
	ClassBlocked   []int `yaml:"class_blocked"`

	MeanWait        float64 `yaml:"mean_wait"`
	P95Wait         float64 `yaml:"p95_wait"`
	MaxWait         float64 `yaml:"max_wait"`
	MeanServiceTime float64 `yaml:"mean_service_time"` // completion - arrival, counted calls

	MeanUtilization     float64 `yaml:"mean_utilization"`     // time-weighted pool utilization
	UtilizationVariance float64 `yaml:"utilization_variance"` // time-weighted cross-processor variance while running
	PeakOccupied        int     `yaml:"peak_occupied"`

	// Per-processor utilization when the target was reached, and its variance.
	ProcessorUtilization []float64 `yaml:"processor_utilization"`
	FinalVariance        float64   `yaml:"final_variance"`

	Events     int64         `yaml:"events"`
	TargetTime float64       `yaml:"target_time"` // clock when the target was reached
	SimEndTime float64       `yaml:"sim_end_time"`
	Strategy   StrategyStats `yaml:"strategy"`
}

// BlockingProbability returns Blocked / Arrivals (0 with no arrivals).
func (m *Metrics) BlockingProbability() float64 {
	if m.Arrivals == 0 {
		return 0
	}
	return float64(m.Blocked) / float64(m.Arrivals)
}

// Print writes aggregated metrics in the human-readable report format.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Strategy             : %s\n", m.Mode)
	fmt.Fprintf(w, "Completed Calls      : %d\n", m.Completed)
	fmt.Fprintf(w, "Blocked Calls        : %d (%.4f%%)\n", m.Blocked, 100*m.BlockingProbability())
	fmt.Fprintf(w, "Arrivals             : %d\n", m.Arrivals)
	fmt.Fprintf(w, "Drained Calls        : %d\n", m.Drained)
	fmt.Fprintf(w, "Mean Wait            : %.6f\n", m.MeanWait)
	fmt.Fprintf(w, "P95 Wait             : %.6f\n", m.P95Wait)
	fmt.Fprintf(w, "Mean Utilization     : %.6f\n", m.MeanUtilization)
	fmt.Fprintf(w, "Utilization Variance : %.3e\n", m.UtilizationVariance)
	fmt.Fprintf(w, "Peak Occupied Slots  : %d\n", m.PeakOccupied)
	fmt.Fprintf(w, "Events               : %d\n", m.Events)
	fmt.Fprintf(w, "Target Reached At    : %.3f\n", m.TargetTime)
	fmt.Fprintf(w, "Simulated End Time   : %.3f\n", m.SimEndTime)
	fmt.Fprintf(w, "Strategy Probes      : %d (recomputes=%d, repairs=%d)\n",
		m.Strategy.Probes, m.Strategy.Recomputes, m.Strategy.Repairs)
}

// collector accumulates Metrics during a run. Owned by the Simulator.
type collector struct {
	m Metrics

	waits        []float64
	serviceTotal float64

	last     float64 // clock at the previous advance
	utilArea float64 // ∫ pool utilization dt
	varArea  float64 // ∫ cross-processor variance dt, while running
}

func newCollector(cfg RunConfig) *collector {
	return &collector{
		m: Metrics{
			Mode:           cfg.Mode,
			Seed:           cfg.Seed,
			ClassCompleted: make([]int, cfg.Classes()),
			ClassBlocked:   make([]int, cfg.Classes()),
		},
		waits: make([]float64, 0, cfg.CompleteCalls),
	}
}

// advance integrates time-weighted quantities up to now. Called once per popped
// event, before the event mutates the pool.
func (c *collector) advance(now float64, pool *ResourcePool, running bool) {
	dt := now - c.last
	if dt > 0 {
		c.utilArea += dt * pool.Utilization()
		if running {
			c.varArea += dt * pool.UtilizationVariance()
		}
	}
	c.last = now
	c.m.Events++
}

func (c *collector) arrival(call *Call, pool *ResourcePool) {
	c.m.Arrivals++
	if pool.Occupied() > c.m.PeakOccupied {
		c.m.PeakOccupied = pool.Occupied()
	}
}

func (c *collector) blocked(call *Call) {
	c.m.Blocked++
	c.m.ClassBlocked[call.Class]++
}

func (c *collector) completed(call *Call) {
	c.m.Completed++
	c.m.ClassCompleted[call.Class]++
	c.waits = append(c.waits, call.WaitTime())
	c.serviceTotal += call.CompletionTime - call.ArrivalTime
}

func (c *collector) drained() {
	c.m.Drained++
}

// varianceTolerance bounds the drift allowed between the pool's running-sum
// variance and the variance recomputed from the utilization vector.
const varianceTolerance = 1e-9

// targetReached snapshots the per-processor state at the instant the run starts
// draining. FinalVariance is recomputed from the snapshot rather than taken from
// the pool's running sums.
func (c *collector) targetReached(now float64, pool *ResourcePool, discarded int) {
	c.m.TargetTime = now
	c.m.ProcessorUtilization = pool.ProcessorUtilizations()
	c.m.FinalVariance = CalculateVariance(c.m.ProcessorUtilization)
	if running := pool.UtilizationVariance(); math.Abs(running-c.m.FinalVariance) > varianceTolerance {
		logrus.Warnf("[t=%.6f] pool variance %.3e disagrees with per-processor variance %.3e",
			now, running, c.m.FinalVariance)
	}
	c.m.Discarded += discarded
}

// finalize computes derived statistics and returns a copy of the metrics.
func (c *collector) finalize(now float64, generated int, stats StrategyStats) *Metrics {
	m := c.m
	m.Generated = generated
	m.SimEndTime = now
	m.Strategy = stats
	if now > 0 {
		m.MeanUtilization = c.utilArea / now
	}
	if m.TargetTime > 0 {
		m.UtilizationVariance = c.varArea / m.TargetTime
	}
	if len(c.waits) > 0 {
		m.MeanWait = CalculateMean(c.waits)
		m.P95Wait = CalculatePercentile(c.waits, 95)
		m.MaxWait = CalculatePercentile(c.waits, 100)
		m.MeanServiceTime = c.serviceTotal / float64(len(c.waits))
	}
	m.ClassCompleted = append([]int(nil), c.m.ClassCompleted...)
	m.ClassBlocked = append([]int(nil), c.m.ClassBlocked...)
	return &m
}
