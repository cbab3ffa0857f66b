package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcs-sim/pcs-sim/sim"
)

func TestParseScript_DirectivesAndComments(t *testing.T) {
	// GIVEN a script with comments, blank lines and every directive
	script := `# header

reset
set ta 1.4
set A
   run pcs
`
	// WHEN parsed
	dirs, err := ParseScript(strings.NewReader(script))

	// THEN comments and blanks are skipped and line numbers are kept
	require.NoError(t, err)
	require.Len(t, dirs, 4)
	assert.Equal(t, Directive{Line: 3, Op: "reset", Args: []string{}}, dirs[0])
	assert.Equal(t, []string{"ta", "1.4"}, dirs[1].Args)
	assert.Equal(t, []string{"A"}, dirs[2].Args)
	assert.Equal(t, Directive{Line: 6, Op: "run", Args: []string{"pcs"}}, dirs[3])
}

func TestParseScript_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown directive", "reset\nstart pcs\n", "line 2"},
		{"reset with args", "reset now\n", "reset takes no arguments"},
		{"set without key", "set\n", "usage: set"},
		{"set with extra value", "set ta 1 2\n", "usage: set"},
		{"run without model", "run\n", "usage: run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(strings.NewReader(tt.script))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestPlanScript_BenchmarkScript(t *testing.T) {
	// GIVEN the shipped benchmark script
	f, err := os.Open(filepath.Join("..", "examples", "traffic-benchmark.script"))
	require.NoError(t, err)
	defer f.Close()
	dirs, err := ParseScript(f)
	require.NoError(t, err)

	// WHEN planned
	runs := PlanScript(dirs)

	// THEN the forced blocks are configuration errors and the rest are valid
	require.Len(t, runs, 5)
	wantModes := []sim.Mode{sim.ModeAutonomic, "", "", sim.ModeIncremental, sim.ModeFull}
	for i, pr := range runs {
		if wantModes[i] == "" {
			var cfgErr *sim.ConfigurationError
			assert.True(t, errors.As(pr.Err, &cfgErr), "run %d: got %v", i, pr.Err)
			continue
		}
		require.NoError(t, pr.Err, "run %d", i)
		assert.Equal(t, wantModes[i], pr.Config.Mode)
		assert.Equal(t, 1.4, pr.Config.TA)
		assert.Equal(t, 20000, pr.Config.CompleteCalls)
		assert.Equal(t, 10, pr.Config.P)
		assert.Equal(t, 24, pr.Config.NP)
		assert.Equal(t, 1024, pr.Config.NPRC)
	}
	assert.Equal(t, filepath.Join("results", "auto"), runs[0].Config.OutputDir)
}

func TestPlanScript_BadSetPoisonsBlockUntilReset(t *testing.T) {
	dirs, err := ParseScript(strings.NewReader(`reset
set np many
set A
run pcs
run pcs
reset
set full
run pcs
`))
	require.NoError(t, err)

	runs := PlanScript(dirs)

	require.Len(t, runs, 3)
	assert.ErrorContains(t, runs[0].Err, "line 2")
	assert.ErrorContains(t, runs[1].Err, "line 2")
	require.NoError(t, runs[2].Err)
	assert.Equal(t, sim.ModeFull, runs[2].Config.Mode)
}

func TestPlanScript_UnknownModel(t *testing.T) {
	dirs, err := ParseScript(strings.NewReader("set A\nrun phold\n"))
	require.NoError(t, err)

	runs := PlanScript(dirs)

	var cfgErr *sim.ConfigurationError
	require.True(t, errors.As(runs[0].Err, &cfgErr))
	assert.Equal(t, "model", cfgErr.Field)
}

func TestPlanScript_RunWithoutResetKeepsConfiguration(t *testing.T) {
	dirs, err := ParseScript(strings.NewReader("set inc\nset np 4\nrun pcs\nset np 8\nrun pcs\n"))
	require.NoError(t, err)

	runs := PlanScript(dirs)

	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Config.NP)
	assert.Equal(t, 8, runs[1].Config.NP)
	assert.Equal(t, sim.ModeIncremental, runs[1].Config.Mode)
}

func TestRunScript_RecordsEachOutputDir(t *testing.T) {
	// GIVEN a small script with two valid blocks and one contradictory block
	dir := t.TempDir()
	block := func(flags, out string) string {
		return fmt.Sprintf("reset\nset ta 1\nset service-mean 10\nset complete-calls 100\nset np 4\nset nprc 16\n%sset output-dir %s\nrun pcs\n",
			flags, filepath.Join(dir, out))
	}
	script := block("set A\n", "auto") + block("set A\nset full\n", "forced") + block("set full\n", "full")

	// WHEN run
	var out bytes.Buffer
	failed, err := runScript(context.Background(), strings.NewReader(script), 2, &out)

	// THEN the contradictory block is the only failure
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "skipped")

	// AND each valid block has its results
	for _, sub := range []string{"auto", "full"} {
		assert.FileExists(t, filepath.Join(dir, sub, resultsDBName))
		assert.FileExists(t, filepath.Join(dir, sub, summaryFileName))
	}
	assert.NoDirExists(t, filepath.Join(dir, "forced"))
}

func TestRunScript_TracedRunReportsDecisions(t *testing.T) {
	// GIVEN a script block that turns on the decision trace
	dir := filepath.Join(t.TempDir(), "traced")
	script := "reset\nset inc\nset ta 1\nset service-mean 10\nset complete-calls 100\n" +
		"set np 4\nset nprc 16\nset trace decisions\nset output-dir " + dir + "\nrun pcs\n"

	// WHEN run
	var out bytes.Buffer
	failed, err := runScript(context.Background(), strings.NewReader(script), 1, &out)

	// THEN the report shows the decision line and summary.yaml stores the trace
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Contains(t, out.String(), "decisions=")

	summary := readSummaryFile(t, dir)
	require.Len(t, summary, 1)
	require.NotNil(t, summary[0].Trace)
	assert.Equal(t, summary[0].Metrics.Arrivals, summary[0].Trace.TotalDecisions)
	assert.Equal(t, 4, summary[0].Trace.UniqueTargets)
}

func TestRunScript_SyntaxErrorRunsNothing(t *testing.T) {
	var out bytes.Buffer
	_, err := runScript(context.Background(), strings.NewReader("set A\nlaunch pcs\n"), 1, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
