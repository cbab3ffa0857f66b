package sim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// modeFlags maps the accepted flag spellings to strategy modes.
var modeFlags = map[string]Mode{
	"A":           ModeAutonomic,
	"autonomic":   ModeAutonomic,
	"inc":         ModeIncremental,
	"incremental": ModeIncremental,
	"full":        ModeFull,
}

// ParseMode resolves any accepted mode flag spelling to its Mode.
func ParseMode(name string) (Mode, error) {
	m, ok := modeFlags[name]
	if !ok {
		return "", &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown strategy %q", name)}
	}
	return m, nil
}

// Configurator is the reset/set surface used by drivers.
// Each Build returns an independent RunConfig; nothing is shared with
// previously built configs or with the runs that consume them.
type Configurator struct {
	cfg   RunConfig
	modes map[Mode]bool
}

// NewConfigurator returns a Configurator in the reset state.
func NewConfigurator() *Configurator {
	c := &Configurator{}
	c.Reset()
	return c
}

// Reset restores every parameter to its default and clears mode flags.
// Calling it repeatedly is the same as calling it once.
func (c *Configurator) Reset() {
	c.cfg = DefaultRunConfig()
	c.modes = make(map[Mode]bool)
}

// Apply replaces every parameter with cfg's and selects cfg.Mode, if any, as the
// only mode flag. Later Set calls refine it.
func (c *Configurator) Apply(cfg RunConfig) {
	c.cfg = cfg
	c.cfg.Mode = ""
	c.modes = make(map[Mode]bool)
	if cfg.Mode != "" {
		c.modes[cfg.Mode] = true
	}
}

// SelectMode makes m the only selected strategy, clearing any other flag.
func (c *Configurator) SelectMode(m Mode) {
	c.modes = map[Mode]bool{m: true}
}

// Set assigns one parameter. Mode flags (A, inc, full and their long forms) take
// no value, or a boolean value to clear them. A value that does not parse leaves
// the configurator unchanged.
func (c *Configurator) Set(key, value string) error {
	if mode, ok := modeFlags[key]; ok {
		on := true
		if value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return &ConfigurationError{Field: key, Reason: fmt.Sprintf("flag value %q is not a boolean", value)}
			}
			on = b
		}
		if on {
			c.modes[mode] = true
		} else {
			delete(c.modes, mode)
		}
		return nil
	}

	next := c.cfg
	var err error
	switch key {
	case "ta":
		next.TA, err = parseFloat(key, value)
	case "complete-calls":
		next.CompleteCalls, err = parseInt(key, value)
	case "p":
		next.P, err = parseInt(key, value)
	case "np":
		next.NP, err = parseInt(key, value)
	case "nprc":
		next.NPRC, err = parseInt(key, value)
	case "output-dir":
		if value == "" {
			return &ConfigurationError{Field: key, Reason: "empty path"}
		}
		next.OutputDir = value
	case "seed":
		next.Seed, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			err = &ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", value)}
		}
	case "service-mean", "ta-duration":
		next.ServiceMean, err = parseFloat(key, value)
	case "arrival-dist":
		next.ArrivalDist = value
	case "service-dist":
		next.ServiceDist = value
	case "variable-ta":
		next.VariableTA = true
		if value != "" {
			next.VariableTA, err = strconv.ParseBool(value)
			if err != nil {
				err = &ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not a boolean", value)}
			}
		}
	case "probes":
		next.AutonomicProbes, err = parseInt(key, value)
	case "recompute-every":
		next.FullRecomputeEvery, err = parseInt(key, value)
	case "probe-cost":
		next.ProbeCost, err = parseFloat(key, value)
	case "max-events":
		var n int
		n, err = parseInt(key, value)
		next.MaxEvents = int64(n)
	case "trace":
		next.TraceLevel = value
	default:
		return &ConfigurationError{Field: key, Reason: "unknown parameter"}
	}
	if err != nil {
		return err
	}
	c.cfg = next
	return nil
}

// Build validates the current parameters and returns a RunConfig snapshot.
// Zero or several mode flags yield *ConfigurationError.
func (c *Configurator) Build() (RunConfig, error) {
	cfg := c.cfg
	switch len(c.modes) {
	case 0:
		return RunConfig{}, &ConfigurationError{Field: "mode", Reason: "no allocation strategy selected (set one of A, inc, full)"}
	case 1:
		for m := range c.modes {
			cfg.Mode = m
		}
	default:
		names := make([]string, 0, len(c.modes))
		for m := range c.modes {
			names = append(names, string(m))
		}
		sort.Strings(names)
		return RunConfig{}, &ConfigurationError{Field: "mode", Reason: "mutually exclusive strategies selected: " + strings.Join(names, ", ")}
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", value)}
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not a number", value)}
	}
	return f, nil
}
