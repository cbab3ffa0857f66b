package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pcs-sim/pcs-sim/sim"
	"github.com/pcs-sim/pcs-sim/sim/sweep"
)

// ModelPCS is the only model a run directive accepts.
const ModelPCS = "pcs"

// Directive is one parsed line of a driver script.
type Directive struct {
	Line int
	Op   string // reset, set or run
	Args []string
}

// PlannedRun is a run directive resolved against the configuration built by the
// directives before it. Err is set when that configuration is unusable.
type PlannedRun struct {
	Line   int
	Model  string
	Config sim.RunConfig
	Err    error
}

var scriptWorkers int

// scriptCmd interprets a driver script of reset / set / run directives
var scriptCmd = &cobra.Command{
	Use:   "script FILE",
	Short: "Run every configuration of a driver script",
	Long: `Interprets a driver script line by line:

  reset            restore all parameters to their defaults
  set KEY [VALUE]  set a parameter or a mode flag (A, inc, full)
  run pcs          run the configuration built so far

Lines starting with # are comments. A block whose configuration is invalid is
reported and skipped; the remaining runs execute in parallel.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			logrus.Fatalf("Cannot open script: %v", err)
		}
		defer f.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		failed, err := runScript(ctx, f, scriptWorkers, cmd.OutOrStdout())
		if err != nil {
			logrus.Fatalf("Script %s: %v", args[0], err)
		}
		if failed > 0 {
			logrus.Fatalf("Script %s: %d run(s) failed", args[0], failed)
		}
	},
}

func init() {
	scriptCmd.Flags().IntVarP(&scriptWorkers, "workers", "w", 0, "Runs executed in parallel (0 = GOMAXPROCS)")
}

// ParseScript reads driver-script directives. Syntax errors stop parsing; they
// name the offending line.
func ParseScript(r io.Reader) ([]Directive, error) {
	var out []Directive
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		d := Directive{Line: line, Op: fields[0], Args: fields[1:]}
		switch d.Op {
		case "reset":
			if len(d.Args) != 0 {
				return nil, fmt.Errorf("line %d: reset takes no arguments", line)
			}
		case "set":
			if len(d.Args) < 1 || len(d.Args) > 2 {
				return nil, fmt.Errorf("line %d: usage: set KEY [VALUE]", line)
			}
		case "run":
			if len(d.Args) != 1 {
				return nil, fmt.Errorf("line %d: usage: run MODEL", line)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown directive %q", line, d.Op)
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return out, nil
}

// PlanScript replays the directives through one Configurator and returns a
// PlannedRun per run directive. The first failing set of a block poisons that
// block's runs until the next reset.
func PlanScript(dirs []Directive) []PlannedRun {
	c := sim.NewConfigurator()
	var blockErr error
	var runs []PlannedRun
	for _, d := range dirs {
		switch d.Op {
		case "reset":
			c.Reset()
			blockErr = nil
		case "set":
			value := ""
			if len(d.Args) == 2 {
				value = d.Args[1]
			}
			if err := c.Set(d.Args[0], value); err != nil && blockErr == nil {
				blockErr = fmt.Errorf("line %d: %w", d.Line, err)
			}
		case "run":
			pr := PlannedRun{Line: d.Line, Model: d.Args[0]}
			switch {
			case pr.Model != ModelPCS:
				pr.Err = &sim.ConfigurationError{Field: "model", Reason: fmt.Sprintf("unknown model %q (only %q is supported)", pr.Model, ModelPCS)}
			case blockErr != nil:
				pr.Err = blockErr
			default:
				pr.Config, pr.Err = c.Build()
			}
			runs = append(runs, pr)
		}
	}
	return runs
}

// runScript plans, executes and records a script. It returns the number of
// runs that could not be configured or failed while running.
func runScript(ctx context.Context, r io.Reader, workers int, out io.Writer) (int, error) {
	dirs, err := ParseScript(r)
	if err != nil {
		return 0, err
	}
	planned := PlanScript(dirs)

	failed := 0
	var cfgs []sim.RunConfig
	for _, pr := range planned {
		if pr.Err != nil {
			failed++
			logrus.Errorf("run at line %d skipped: %v", pr.Line, pr.Err)
			fmt.Fprintf(out, "line %-4d %-12s skipped: %v\n", pr.Line, "-", pr.Err)
			continue
		}
		cfgs = append(cfgs, pr.Config)
	}
	logrus.Infof("Script planned %d run(s), %d skipped", len(cfgs), failed)

	results, sweepErr := sweep.Run(ctx, cfgs, workers)

	recorders := newRecorderSet()
	for _, res := range results {
		rec, err := recorders.get(res.Config.OutputDir)
		if err != nil {
			logrus.Errorf("run %s: %v", res.RunID, err)
		} else if err := rec.Record(res); err != nil {
			logrus.Errorf("run %s: %v", res.RunID, err)
		}

		if res.Err != nil {
			failed++
			fmt.Fprintf(out, "%-20s %-12s failed: %v\n", res.RunID, res.Config.Mode, res.Err)
			continue
		}
		m := res.Metrics
		fmt.Fprintf(out, "%-20s %-12s completed=%d blocked=%d p_block=%.4f util=%.4f var=%.3e -> %s\n",
			res.RunID, res.Config.Mode, m.Completed, m.Blocked, m.BlockingProbability(),
			m.MeanUtilization, m.UtilizationVariance, res.Config.OutputDir)
		if ts := res.Trace; ts != nil {
			fmt.Fprintf(out, "%-20s %-12s decisions=%d rejected=%d mean_probes=%.3f targets=%d\n",
				"", "", ts.TotalDecisions, ts.RejectedCount, ts.MeanProbes, ts.UniqueTargets)
		}
	}
	if err := recorders.closeAll(); err != nil {
		logrus.Errorf("%v", err)
	}
	return failed, sweepErr
}
