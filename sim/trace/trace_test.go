package trace

import (
	"testing"
)

func TestSimulationTrace_RecordAllocation_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an allocation record is recorded
	st.RecordAllocation(AllocationRecord{
		CallID:    1,
		Clock:     2.5,
		Assigned:  true,
		Processor: 3,
		Probes:    2,
		Reason:    "power-of-2 (load=0.000)",
	})

	// THEN the trace contains one allocation record with correct data
	if len(st.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(st.Allocations))
	}
	if st.Allocations[0].CallID != 1 {
		t.Errorf("expected call ID 1, got %d", st.Allocations[0].CallID)
	}
	if !st.Allocations[0].Assigned {
		t.Error("expected assigned=true")
	}
	if st.Allocations[0].Processor != 3 {
		t.Errorf("expected processor 3, got %d", st.Allocations[0].Processor)
	}
}

func TestSimulationTrace_RecordRelease_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a release is recorded
	st.RecordRelease(ReleaseRecord{CallID: 7, Clock: 130.2, Processor: 0, Counted: true})

	// THEN it is kept in order
	if len(st.Releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(st.Releases))
	}
	if st.Releases[0].CallID != 7 || !st.Releases[0].Counted {
		t.Errorf("unexpected release record %+v", st.Releases[0])
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"", true},
		{"none", true},
		{"decisions", true},
		{"verbose", false},
	}
	for _, tc := range tests {
		if got := IsValidTraceLevel(tc.level); got != tc.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tc.level, got, tc.valid)
		}
	}
}

func TestTraceLevel_Enabled(t *testing.T) {
	if TraceLevelNone.Enabled() {
		t.Error("none must not record")
	}
	if TraceLevel("").Enabled() {
		t.Error("empty level must not record")
	}
	if !TraceLevelDecisions.Enabled() {
		t.Error("decisions must record")
	}
}
