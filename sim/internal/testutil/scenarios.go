// Package testutil provides shared test infrastructure for pcs-sim.
// It holds the reference scenario dataset and assertion helpers used across
// the sim/ test packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"
)

// ScenarioDataset represents the structure of testdata/scenarios.yaml.
type ScenarioDataset struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one reference run: configurator settings applied in order after a
// reset, and the outcomes every correct engine must produce for them.
type Scenario struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Settings    []Setting            `yaml:"settings"`
	Expect      ScenarioExpectations `yaml:"expect"`
}

// Setting is a single configurator key with an optional value.
type Setting struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ScenarioExpectations lists the checked outcomes. Zero values are unchecked
// except Completed, which every scenario sets.
type ScenarioExpectations struct {
	Completed              int     `yaml:"completed"`
	Arrivals               int     `yaml:"arrivals"`
	MaxBlockingProbability float64 `yaml:"max_blocking_probability"`
}

// LoadScenarios loads the scenario dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadScenarios(t *testing.T) *ScenarioDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "scenarios.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read scenario dataset: %v", err)
	}

	var dataset ScenarioDataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse scenario dataset: %v", err)
	}
	return &dataset
}

// Find returns the named scenario, failing the test if it is missing.
func (d *ScenarioDataset) Find(t *testing.T, name string) Scenario {
	t.Helper()
	for _, s := range d.Scenarios {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("scenario %q not found in dataset", name)
	return Scenario{}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
