// Package sweep executes many independent pcs-sim runs in parallel.
//
// Every run owns its Simulator, EventClock, ResourcePool and PartitionedRNG, so
// runs share nothing and a sweep returns exactly what the same runs would
// return one after another.
package sweep

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pcs-sim/pcs-sim/sim"
	"github.com/pcs-sim/pcs-sim/sim/trace"
	// Registers the traffic generator with sim.NewTrafficSourceFunc.
	_ "github.com/pcs-sim/pcs-sim/sim/workload"
)

// Result is the outcome of one run of a sweep.
type Result struct {
	RunID   string // unique per run, generated when the run starts
	Index   int    // position of Config in the input slice
	Config  sim.RunConfig
	Metrics *sim.Metrics        // nil when Err is set
	Trace   *trace.TraceSummary // nil unless the run traced decisions and finished
	Err     error
}

// Run executes cfgs on at most workers goroutines (GOMAXPROCS when workers <= 0)
// and returns one Result per config in input order.
//
// A failing run is reported in its Result and does not stop the others. The
// returned error is non-nil only when ctx ends before every run finished; runs
// still in progress then fail with the context's error.
func Run(ctx context.Context, cfgs []sim.RunConfig, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cfg := range cfgs {
		g.Go(func() error {
			results[i] = runOne(gctx, i, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("sweep interrupted: %w", err)
	}
	return results, nil
}

func runOne(ctx context.Context, index int, cfg sim.RunConfig) Result {
	res := Result{RunID: xid.New().String(), Index: index, Config: cfg}
	log := logrus.WithFields(logrus.Fields{"run": res.RunID, "index": index, "mode": cfg.Mode})

	s, err := sim.NewSimulator(cfg)
	if err != nil {
		res.Err = err
		log.Warnf("run not started: %v", err)
		return res
	}
	res.Metrics, res.Err = s.Run(ctx)
	if res.Err != nil {
		log.Warnf("run failed: %v", res.Err)
		return res
	}
	if st := s.Trace(); st != nil {
		res.Trace = trace.Summarize(st)
	}
	log.Infof("run finished: completed=%d blocked=%d", res.Metrics.Completed, res.Metrics.Blocked)
	return res
}
