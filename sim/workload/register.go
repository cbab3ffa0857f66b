// register.go wires the workload generator into the sim package's registration
// variable (NewTrafficSourceFunc). This init() runs when any package imports
// sim/workload, breaking the import cycle between sim/ (engine, interface owner)
// and sim/workload/ (implementation). Production code imports sim/workload
// directly; test code in package sim uses traffic_import_test.go for the blank import.
package workload

import "github.com/pcs-sim/pcs-sim/sim"

func init() {
	sim.NewTrafficSourceFunc = func(cfg sim.RunConfig, rng *sim.PartitionedRNG) (sim.TrafficSource, error) {
		return NewGenerator(cfg, rng)
	}
}
