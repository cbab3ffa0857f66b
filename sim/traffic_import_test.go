package sim_test

// Blank import triggers sim/workload's init(), which registers NewTrafficSourceFunc.
// This allows package sim's internal test files to build simulators fed by the
// real traffic generator without importing sim/workload (an import cycle).
import _ "github.com/pcs-sim/pcs-sim/sim/workload"
