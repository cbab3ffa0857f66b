package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStrategy(t *testing.T, mode Mode, mutate func(*RunConfig)) AllocationStrategy {
	t.Helper()
	cfg := testConfig(mode)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewAllocationStrategy(cfg, NewPartitionedRNG(NewSimulationKey(cfg.Seed)))
	require.NoError(t, err)
	return s
}

// arrive runs n arrivals with IDs starting at firstID and returns the calls.
func arrive(t *testing.T, s AllocationStrategy, pool *ResourcePool, firstID int64, n int) ([]*Call, []Decision) {
	t.Helper()
	calls := make([]*Call, n)
	decisions := make([]Decision, n)
	for i := 0; i < n; i++ {
		calls[i] = NewCall(firstID+int64(i), 0, 1, 0)
		d, err := s.OnArrival(calls[i], pool)
		require.NoError(t, err)
		decisions[i] = d
	}
	return calls, decisions
}

func TestNewAllocationStrategy_Names(t *testing.T) {
	for _, mode := range allModes {
		s := newTestStrategy(t, mode, nil)
		assert.Equal(t, mode, s.Name())
	}
}

func TestNewAllocationStrategy_UnknownMode(t *testing.T) {
	cfg := testConfig("roundrobin")
	_, err := NewAllocationStrategy(cfg, NewPartitionedRNG(NewSimulationKey(1)))
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "got %v", err)
}

func TestAllocationStrategies_RejectOnlyWhenPoolFull(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			// GIVEN a 4x2 pool and a fresh strategy
			pool := NewResourcePool(4, 2)
			s := newTestStrategy(t, mode, nil)

			// WHEN exactly capacity arrivals come in
			calls, decisions := arrive(t, s, pool, 0, pool.Capacity())

			// THEN every one is placed
			for i, d := range decisions {
				assert.True(t, d.Assigned, "call %d rejected with %d free slots: %s", i, pool.Capacity()-i, d.Reason)
				assert.NoError(t, d.Err())
			}
			assert.Equal(t, pool.Capacity(), pool.Occupied())

			// WHEN one more arrives
			_, extra := arrive(t, s, pool, 100, 1)

			// THEN it is rejected without touching the pool
			assert.False(t, extra[0].Assigned)
			assert.Equal(t, Unassigned, extra[0].ProcessorID)
			assert.ErrorIs(t, extra[0].Err(), ErrRejected)
			assert.Equal(t, pool.Capacity(), pool.Occupied())

			// WHEN a slot frees up
			require.NoError(t, s.OnCompletion(calls[3], pool))

			// THEN the next arrival takes it
			_, again := arrive(t, s, pool, 200, 1)
			assert.True(t, again[0].Assigned, again[0].Reason)
			assert.NoError(t, pool.CheckInvariants())

			stats := s.Stats()
			assert.Equal(t, pool.Capacity()+2, stats.Decisions)
			assert.Equal(t, 1, stats.Rejections)
		})
	}
}

func TestAllocationStrategies_SingleFreeSlotIsFound(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			// GIVEN a pool where only the last processor has room
			pool := NewResourcePool(8, 1)
			for pid := 0; pid < 7; pid++ {
				require.NoError(t, pool.TryAllocate(NewCall(int64(1000+pid), 0, 1, 0), pid))
			}
			s := newTestStrategy(t, mode, nil)

			// WHEN a call arrives
			_, d := arrive(t, s, pool, 0, 1)

			// THEN it lands on the only free processor
			require.True(t, d[0].Assigned, d[0].Reason)
			assert.Equal(t, 7, d[0].ProcessorID)
		})
	}
}

func TestAllocationStrategies_ProbeCost(t *testing.T) {
	for _, mode := range allModes {
		t.Run(string(mode), func(t *testing.T) {
			pool := NewResourcePool(4, 4)
			s := newTestStrategy(t, mode, func(c *RunConfig) { c.ProbeCost = 0.5 })

			_, d := arrive(t, s, pool, 0, 1)

			assert.Positive(t, d[0].Probes)
			assert.Equal(t, float64(d[0].Probes)*0.5, d[0].Cost)
			assert.Equal(t, int64(d[0].Probes), s.Stats().Probes)
		})
	}
}

func TestIncremental_PlacesOnLeastLoaded(t *testing.T) {
	// GIVEN an incremental strategy over 3 processors
	pool := NewResourcePool(3, 10)
	s := newTestStrategy(t, ModeIncremental, nil)

	// WHEN six calls arrive
	calls, decisions := arrive(t, s, pool, 0, 6)

	// THEN they fill processors round-robin by (load, id)
	var got []int
	for _, d := range decisions {
		got = append(got, d.ProcessorID)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, got)

	// WHEN processor 1 loses a call
	require.NoError(t, s.OnCompletion(calls[1], pool))

	// THEN the next arrival goes back to it
	_, next := arrive(t, s, pool, 10, 1)
	assert.Equal(t, 1, next[0].ProcessorID)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Recomputes, "plan is built once and then repaired locally")
	assert.Equal(t, 8, stats.Repairs)
}

func TestFull_RecomputeEvery(t *testing.T) {
	tests := []struct {
		every      int
		arrivals   int
		recomputes int
	}{
		{every: 1, arrivals: 6, recomputes: 6},
		{every: 3, arrivals: 6, recomputes: 2},
		{every: 4, arrivals: 6, recomputes: 2},
		{every: 10, arrivals: 6, recomputes: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("every=%d", tt.every), func(t *testing.T) {
			pool := NewResourcePool(3, 100)
			s := newTestStrategy(t, ModeFull, func(c *RunConfig) { c.FullRecomputeEvery = tt.every })

			_, decisions := arrive(t, s, pool, 0, tt.arrivals)

			for _, d := range decisions {
				assert.True(t, d.Assigned)
			}
			assert.Equal(t, tt.recomputes, s.Stats().Recomputes)
		})
	}
}

func TestFull_EveryArrivalPlacesLikeIncremental(t *testing.T) {
	// GIVEN Full recomputing on every arrival and Incremental on identical 16x8 pools
	full := newTestStrategy(t, ModeFull, nil)
	inc := newTestStrategy(t, ModeIncremental, nil)
	fullPool, incPool := NewResourcePool(16, 8), NewResourcePool(16, 8)

	// WHEN the same arrivals and completions are replayed against both
	var fullCalls, incCalls []*Call
	for round := 0; round < 5; round++ {
		fc, fd := arrive(t, full, fullPool, int64(round*20), 20)
		ic, id := arrive(t, inc, incPool, int64(round*20), 20)
		for i := range fd {
			require.True(t, fd[i].Assigned)
			require.Equal(t, fd[i].ProcessorID, id[i], "round %d arrival %d", round, i)
		}
		fullCalls = append(fullCalls, fc...)
		incCalls = append(incCalls, ic...)
		for i := round; i < len(fullCalls); i += 3 {
			if !fullCalls[i].Allocated() {
				continue
			}
			require.NoError(t, full.OnCompletion(fullCalls[i], fullPool))
			require.NoError(t, inc.OnCompletion(incCalls[i], incPool))
		}
	}

	// THEN the pools agree and only the cost differs
	assert.Equal(t, incPool.ProcessorUtilizations(), fullPool.ProcessorUtilizations())
	assert.Greater(t, full.Stats().Probes, inc.Stats().Probes)
	assert.Equal(t, full.Stats().Decisions, full.Stats().Recomputes)
}

func TestFull_WaterFillsFromCurrentOccupancy(t *testing.T) {
	// GIVEN processor 0 already holding three calls
	pool := NewResourcePool(3, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.TryAllocate(NewCall(int64(100+i), 0, 1, 0), 0))
	}
	s := newTestStrategy(t, ModeFull, func(c *RunConfig) { c.FullRecomputeEvery = 6 })

	// WHEN six calls arrive under one plan
	_, decisions := arrive(t, s, pool, 0, 6)

	// THEN the plan evens out all three processors at 3
	for pid := 0; pid < 3; pid++ {
		assert.Equal(t, 3, pool.Processor(pid).Occupied, "processor %d", pid)
	}
	assert.Equal(t, 1, decisions[0].ProcessorID)
	assert.Equal(t, 0.0, pool.UtilizationVariance())
}

func TestFull_StalePlanFallsBackToScan(t *testing.T) {
	// GIVEN a plan built for two placements on a 2x1 pool
	pool := NewResourcePool(2, 1)
	s := newTestStrategy(t, ModeFull, func(c *RunConfig) { c.FullRecomputeEvery = 2 })
	_, first := arrive(t, s, pool, 0, 1)
	require.True(t, first[0].Assigned)

	// WHEN the remaining planned processor fills behind the strategy's back
	// and the first call completes
	other := 1 - first[0].ProcessorID
	require.NoError(t, pool.TryAllocate(NewCall(99, 0, 1, 0), other))
	freed := pool.Processor(first[0].ProcessorID).Calls()[0]
	c := &Call{ID: freed, ProcessorID: first[0].ProcessorID}
	require.NoError(t, s.OnCompletion(c, pool))

	// THEN the next arrival skips the stale entry and still finds the free slot
	_, next := arrive(t, s, pool, 1, 1)
	require.True(t, next[0].Assigned, next[0].Reason)
	assert.Equal(t, first[0].ProcessorID, next[0].ProcessorID)
}

func TestAutonomic_RingWalkWhenSamplesRefuse(t *testing.T) {
	// GIVEN a 16x1 pool with one free processor and k=1
	pool := NewResourcePool(16, 1)
	for pid := 0; pid < 16; pid++ {
		if pid == 11 {
			continue
		}
		require.NoError(t, pool.TryAllocate(NewCall(int64(1000+pid), 0, 1, 0), pid))
	}
	s := newTestStrategy(t, ModeAutonomic, func(c *RunConfig) { c.AutonomicProbes = 1 })

	// WHEN many calls try (each released right after)
	for id := int64(0); id < 50; id++ {
		call := NewCall(id, 0, 1, 0)
		d, err := s.OnArrival(call, pool)
		require.NoError(t, err)

		// THEN every one reaches processor 11, sampled or walked
		require.True(t, d.Assigned, d.Reason)
		assert.Equal(t, 11, d.ProcessorID)
		assert.LessOrEqual(t, d.Probes, 1+16)
		require.NoError(t, s.OnCompletion(call, pool))
	}
	assert.Zero(t, s.Stats().Rejections)
}

func TestAutonomic_PrefersLessLoadedSample(t *testing.T) {
	// GIVEN two processors, one nearly full, and k equal to a large sample
	pool := NewResourcePool(2, 100)
	for i := 0; i < 90; i++ {
		require.NoError(t, pool.TryAllocate(NewCall(int64(1000+i), 0, 1, 0), 0))
	}
	s := newTestStrategy(t, ModeAutonomic, func(c *RunConfig) { c.AutonomicProbes = 32 })

	// WHEN calls arrive
	_, decisions := arrive(t, s, pool, 0, 20)

	// THEN with 32 samples over 2 processors every call sees processor 1
	for _, d := range decisions {
		assert.Equal(t, 1, d.ProcessorID)
	}
}

func TestHomeProcessor_DeterministicAndInRange(t *testing.T) {
	counts := make([]int, 8)
	for id := int64(0); id < 800; id++ {
		pid := homeProcessor(id, 8)
		require.GreaterOrEqual(t, pid, 0)
		require.Less(t, pid, 8)
		assert.Equal(t, pid, homeProcessor(id, 8))
		counts[pid]++
	}
	for pid, n := range counts {
		assert.Positive(t, n, "processor %d never a home", pid)
	}
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Decision{Assigned: true}.Err())
	err := rejected(3, "pool is full").Err()
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "pool is full")
}
