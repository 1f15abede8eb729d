package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/rfielding/kripke-regions/elimination"
	"github.com/rfielding/kripke-regions/numeric"
)

// Config holds every setting of a run. Values come from the environment,
// then the YAML file named by -config, then the remaining flags.
type Config struct {
	ConfigFile string `yaml:"-"`

	Model       string `yaml:"model"`
	Property    string `yaml:"property"`
	Regions     string `yaml:"regions"`
	RegionsFile string `yaml:"regions_file"`

	Method            string  `yaml:"method"`
	Priority          string  `yaml:"priority"`
	MaxSCCSize        int     `yaml:"max_scc_size"`
	EntryStatesLast   bool    `yaml:"entry_states_last"`
	SampleViaFunction bool    `yaml:"sample_via_function"`
	Precision         float64 `yaml:"precision"`

	Solver        string `yaml:"solver"`
	SolverCommand string `yaml:"solver_command"`
	MaxBoxes      int    `yaml:"max_boxes"`

	Cache    string `yaml:"cache"`
	JSON     bool   `yaml:"json"`
	Diagram  string `yaml:"diagram"`
	LogLevel string `yaml:"log_level"`
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return b
	}
	return def
}

func defaultConfig() Config {
	b := elimination.NewBuilder()
	return Config{
		Model:           getenv("KREG_MODEL", "twostate"),
		Method:          getenv("KREG_METHOD", b.Method.String()),
		Priority:        getenv("KREG_PRIORITY", b.Priority.String()),
		MaxSCCSize:      getenvInt("KREG_MAX_SCC_SIZE", b.MaxSCCSize),
		EntryStatesLast: getenvBool("KREG_ENTRY_STATES_LAST", false),
		Precision:       numeric.DefaultPrecision,
		Solver:          getenv("KREG_SOLVER", "interval"),
		SolverCommand:   getenv("KREG_SOLVER_COMMAND", "z3 -in -smt2"),
		MaxBoxes:        getenvInt("KREG_MAX_BOXES", 0),
		Cache:           os.Getenv("KREG_CACHE"),
		LogLevel:        getenv("KREG_LOG_LEVEL", "info"),
	}
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")
	fs.StringVar(&c.Model, "model", c.Model, "built-in model name or YAML model file")
	fs.StringVar(&c.Property, "prop", c.Property, `property, e.g. P>=0.5 [F "target"]`)
	fs.StringVar(&c.Regions, "regions", c.Regions, "regions separated by ';', e.g. 0.3<=p<=0.6,0.1<=q<=0.2")
	fs.StringVar(&c.RegionsFile, "regions-file", c.RegionsFile, "YAML region list")
	fs.StringVar(&c.Method, "method", c.Method, "elimination method: state or hybrid")
	fs.StringVar(&c.Priority, "priority", c.Priority, "elimination order")
	fs.IntVar(&c.MaxSCCSize, "max-scc-size", c.MaxSCCSize, "largest component the hybrid method eliminates directly")
	fs.BoolVar(&c.EntryStatesLast, "entry-states-last", c.EntryStatesLast, "eliminate entry states after all components")
	fs.BoolVar(&c.SampleViaFunction, "sample-via-function", c.SampleViaFunction, "evaluate vertices on the reachability function")
	fs.Float64Var(&c.Precision, "precision", c.Precision, "numeric tolerance")
	fs.StringVar(&c.Solver, "solver", c.Solver, "solver backend: interval or smtlib")
	fs.StringVar(&c.SolverCommand, "solver-command", c.SolverCommand, "command of the smtlib backend")
	fs.IntVar(&c.MaxBoxes, "max-boxes", c.MaxBoxes, "box budget of the interval backend (0 for the default)")
	fs.StringVar(&c.Cache, "cache", c.Cache, "reachability function cache file")
	fs.BoolVar(&c.JSON, "json", c.JSON, "print a JSON report")
	fs.StringVar(&c.Diagram, "diagram", c.Diagram, "print the model as mermaid or dot and exit")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

// loadConfig parses args. Flags are parsed twice so that they win over the
// config file.
func loadConfig(args []string, stderr io.Writer) (Config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("kripke-regions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.bind(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", cfg.ConfigFile, err)
		}
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}

func (c Config) builder() (elimination.Builder, error) {
	b := elimination.NewBuilder()
	var err error
	if b.Method, err = elimination.ParseMethod(c.Method); err != nil {
		return b, err
	}
	if b.Priority, err = elimination.ParsePriority(c.Priority); err != nil {
		return b, err
	}
	b.MaxSCCSize = c.MaxSCCSize
	b.EliminateEntryStatesLast = c.EntryStatesLast
	return b, nil
}
