// Command kripke-regions checks parameter regions of a parametric Markov
// chain against a bounded reachability property.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/cache"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/models"
	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/region"
	"github.com/rfielding/kripke-regions/smt"
	"github.com/rfielding/kripke-regions/smt/interval"
	"github.com/rfielding/kripke-regions/smt/smtlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger(), nil
}

// input is the system to check together with its fallback property and
// regions.
type input struct {
	name       string
	sys        *model.System
	properties []model.PropertySpec
	regions    []string
}

func loadInput(name string) (*input, error) {
	if spec, err := models.Lookup(name); err == nil {
		sys, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		return &input{name: spec.Name(), sys: sys, properties: spec.Properties(), regions: spec.Regions()}, nil
	}
	sys, err := model.LoadFile(name)
	if err != nil {
		return nil, err
	}
	return &input{name: sys.Name, sys: sys}, nil
}

func (in *input) property(text string) (prop.Property, error) {
	if text == "" {
		if len(in.properties) == 0 {
			return prop.Property{}, fmt.Errorf("model %s has no default property; use -prop", in.name)
		}
		text = in.properties[0].Formula
	}
	return prop.Parse(text)
}

func (in *input) loadRegions(cfg Config) ([]*region.Region, error) {
	switch {
	case cfg.Regions != "":
		return region.Parse(cfg.Regions)
	case cfg.RegionsFile != "":
		return region.LoadFile(cfg.RegionsFile)
	}
	if len(in.regions) == 0 {
		return nil, fmt.Errorf("model %s has no default regions; use -regions", in.name)
	}
	return region.Parse(strings.Join(in.regions, ";"))
}

func solverFactory(cfg Config, log zerolog.Logger) (smt.Factory, error) {
	switch cfg.Solver {
	case "interval":
		return interval.Factory(cfg.MaxBoxes, log), nil
	case "smtlib":
		return smtlib.Factory(strings.Fields(cfg.SolverCommand), log), nil
	}
	return nil, fmt.Errorf("unknown solver backend %q", cfg.Solver)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}

	in, err := loadInput(cfg.Model)
	if err != nil {
		return err
	}
	switch cfg.Diagram {
	case "":
	case "mermaid":
		return in.sys.WriteMermaid(stdout)
	case "dot":
		return in.sys.WriteDOT(stdout)
	default:
		return fmt.Errorf("unknown diagram format %q", cfg.Diagram)
	}

	property, err := in.property(cfg.Property)
	if err != nil {
		return err
	}
	regions, err := in.loadRegions(cfg)
	if err != nil {
		return err
	}
	builder, err := cfg.builder()
	if err != nil {
		return err
	}
	factory, err := solverFactory(cfg, log)
	if err != nil {
		return err
	}

	opts := []region.Option{
		region.WithBuilder(builder),
		region.WithSolver(factory),
		region.WithPrecision(cfg.Precision),
		region.WithSampleViaFunction(cfg.SampleViaFunction),
		region.WithLogger(log),
	}
	if cfg.Cache != "" {
		fc, err := cache.Open(cfg.Cache)
		if err != nil {
			return err
		}
		defer fc.Close()
		key, err := cache.Key(in.sys, property.Target)
		if err != nil {
			return err
		}
		opts = append(opts, region.WithCache(fc, key))
	}

	checker, err := region.NewChecker[float64](ctx, in.sys, property, opts...)
	if err != nil {
		return err
	}
	defer checker.Close()

	if err := checker.CheckRegions(ctx, regions); err != nil {
		return err
	}
	rep := newReport(in.name, checker, property.String(), regions)
	if cfg.JSON {
		return rep.WriteJSON(stdout)
	}
	return rep.WriteText(stdout)
}
