package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed list of calls and then reports exhaustion.
type scriptedSource struct {
	calls []*Call
	next  int
}

func (s *scriptedSource) Next() *Call {
	if s.next >= len(s.calls) {
		return nil
	}
	c := s.calls[s.next]
	s.next++
	return c
}

// newScriptedSource builds calls with sequential IDs from (arrival, duration) pairs.
func newScriptedSource(pairs ...[2]float64) *scriptedSource {
	s := &scriptedSource{}
	for i, p := range pairs {
		s.calls = append(s.calls, NewCall(int64(i), p[0], p[1], 0))
	}
	return s
}

// recordingSource wraps another source and keeps every call it hands out.
type recordingSource struct {
	inner TrafficSource
	calls []*Call
}

func (r *recordingSource) Next() *Call {
	c := r.inner.Next()
	if c != nil {
		r.calls = append(r.calls, c)
	}
	return c
}

// testConfig returns a small valid configuration for mode.
func testConfig(mode Mode) RunConfig {
	cfg := DefaultRunConfig()
	cfg.Mode = mode
	cfg.TA = 1.0
	cfg.ServiceMean = 20
	cfg.CompleteCalls = 500
	cfg.NP = 4
	cfg.NPRC = 8
	return cfg
}

// newRecordedSimulator builds a simulator fed by the registered generator and
// returns the recorder wrapped around it.
func newRecordedSimulator(t *testing.T, cfg RunConfig) (*Simulator, *recordingSource) {
	t.Helper()
	require.NotNil(t, NewTrafficSourceFunc, "traffic source not registered")
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	src, err := NewTrafficSourceFunc(cfg, rng)
	require.NoError(t, err)
	rec := &recordingSource{inner: src}
	s, err := newSimulator(cfg, rng, rec)
	require.NoError(t, err)
	return s, rec
}

// allModes lists every strategy for table-driven tests.
var allModes = []Mode{ModeAutonomic, ModeIncremental, ModeFull}
