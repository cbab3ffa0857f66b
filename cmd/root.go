package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/pcs-sim/pcs-sim/sim"
	"github.com/pcs-sim/pcs-sim/sim/sweep"
)

var (
	// CLI flags for the run command. Flag names match Configurator keys.
	logLevel       string  // Log verbosity level
	configPath     string  // YAML run file applied before flags
	mode           string  // Allocation strategy
	ta             float64 // Mean inter-arrival time
	completeCalls  int     // Completed-call target
	classes        int     // Priority classes (p)
	processors     int     // Processors (np)
	slots          int     // Slots per processor (nprc)
	outputDir      string  // Results directory
	seed           int64   // Seed for the partitioned RNG
	serviceMean    float64 // Mean call duration
	arrivalDist    string  // Inter-arrival distribution
	serviceDist    string  // Service-time distribution
	variableTA     bool    // Diurnal arrival-rate profile
	probes         int     // Autonomic sample size
	recomputeEvery int     // Full recomputation period
	probeCost      float64 // Simulated time per processor inspected
	maxEvents      int64   // Event budget
	traceLevel     string  // Decision trace verbosity
)

// nonConfigFlags are run flags that do not map onto a Configurator key.
var nonConfigFlags = map[string]bool{"log": true, "config": true, "mode": true}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pcs-sim",
	Short: "Discrete-event simulator of call traffic on a processor pool",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// runCmd executes one simulation using parameters from a run file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := buildRunConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		results, err := sweep.Run(ctx, []sim.RunConfig{cfg}, 1)
		if err != nil {
			logrus.Fatalf("Simulation interrupted: %v", err)
		}
		res := results[0]

		rec, err := NewRecorder(cfg.OutputDir)
		if err != nil {
			logrus.Fatalf("Cannot open results directory: %v", err)
		}
		if err := rec.Record(res); err != nil {
			logrus.Errorf("Recording run %s: %v", res.RunID, err)
		}
		if err := rec.Close(); err != nil {
			logrus.Errorf("Closing recorder: %v", err)
		}

		if res.Err != nil {
			logrus.Fatalf("Run %s failed: %v", res.RunID, res.Err)
		}
		res.Metrics.Print(cmd.OutOrStdout())
		if res.Trace != nil {
			res.Trace.Print(cmd.OutOrStdout())
		}
		logrus.Infof("Simulation complete. Results in %s", cfg.OutputDir)
	},
}

// buildRunConfig layers the run file (if any) and every explicitly set flag
// through a Configurator, then validates.
func buildRunConfig(flags *pflag.FlagSet) (sim.RunConfig, error) {
	c := sim.NewConfigurator()
	if configPath != "" {
		base, err := sim.ReadRunConfig(configPath)
		if err != nil {
			return sim.RunConfig{}, err
		}
		c.Apply(base)
	}
	if flags.Changed("mode") {
		m, err := sim.ParseMode(mode)
		if err != nil {
			return sim.RunConfig{}, err
		}
		c.SelectMode(m)
	}

	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if setErr != nil || nonConfigFlags[f.Name] {
			return
		}
		setErr = c.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return sim.RunConfig{}, setErr
	}
	return c.Build()
}

// addRunFlags registers the run parameters on fs, bound to the package-level flag variables.
func addRunFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "YAML run file; explicitly set flags override it")
	fs.StringVar(&mode, "mode", "", "Allocation strategy: autonomic (A), incremental (inc) or full")
	fs.Float64Var(&ta, "ta", sim.DefaultTA, "Mean inter-arrival time")
	fs.IntVar(&completeCalls, "complete-calls", sim.DefaultCompleteCalls, "Completed calls to reach before draining")
	fs.IntVar(&classes, "p", 0, "Number of priority classes")
	fs.IntVar(&processors, "np", sim.DefaultNP, "Number of processors")
	fs.IntVar(&slots, "nprc", sim.DefaultNPRC, "Process slots per processor")
	fs.StringVar(&outputDir, "output-dir", sim.DefaultOutputDirectory, "Directory receiving results.sqlite3 and summary.yaml")
	fs.Int64Var(&seed, "seed", sim.DefaultSeed, "Seed for all random streams")
	fs.Float64Var(&serviceMean, "service-mean", sim.DefaultServiceMean, "Mean call duration")
	fs.StringVar(&arrivalDist, "arrival-dist", sim.DistExponential, "Inter-arrival distribution (exponential, uniform)")
	fs.StringVar(&serviceDist, "service-dist", sim.DistExponential, "Call duration distribution (exponential, uniform)")
	fs.BoolVar(&variableTA, "variable-ta", false, "Scale inter-arrival times by a weekly time-of-day profile")
	fs.IntVar(&probes, "probes", sim.DefaultProbes, "Processors sampled per autonomic decision")
	fs.IntVar(&recomputeEvery, "recompute-every", sim.DefaultRecomputeEvery, "Arrivals between full recomputations")
	fs.Float64Var(&probeCost, "probe-cost", 0, "Simulated decision time per processor inspected")
	fs.Int64Var(&maxEvents, "max-events", 0, "Abort after this many events (0 = unlimited)")
	fs.StringVar(&traceLevel, "trace", "", "Decision trace level (none, decisions)")
}

// Execute runs the CLI root command
func Execute() {
	logrus.StandardLogger().ExitFunc = atexit.Exit
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log", "l", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addRunFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scriptCmd)
}
