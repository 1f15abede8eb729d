package region

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"

	"github.com/rfielding/kripke-regions/concrete"
	"github.com/rfielding/kripke-regions/elimination"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/numeric"
	"github.com/rfielding/kripke-regions/prop"
	"github.com/rfielding/kripke-regions/ratfunc"
	"github.com/rfielding/kripke-regions/shadow"
	"github.com/rfielding/kripke-regions/smt"
	"github.com/rfielding/kripke-regions/smt/interval"
)

// FunctionCache stores reachability functions between runs.
type FunctionCache interface {
	Get(key string) (ratfunc.Func, bool, error)
	Put(key string, f ratfunc.Func) error
}

type options struct {
	builder           elimination.Builder
	solver            smt.Factory
	precision         float64
	sampleViaFunction bool
	cache             FunctionCache
	cacheKey          string
	log               zerolog.Logger
}

// Option configures a Checker.
type Option func(*options)

// WithBuilder sets the elimination order used to compute the reachability
// function.
func WithBuilder(b elimination.Builder) Option { return func(o *options) { o.builder = b } }

// WithSolver sets the solver backend. The default is the interval solver.
func WithSolver(f smt.Factory) Option { return func(o *options) { o.solver = f } }

// WithPrecision sets the tolerance of numeric computations.
func WithPrecision(eps float64) Option { return func(o *options) { o.precision = eps } }

// WithSampleViaFunction evaluates vertices on the reachability function
// instead of the sample model.
func WithSampleViaFunction(on bool) Option { return func(o *options) { o.sampleViaFunction = on } }

// WithCache reads and stores the reachability function under key.
func WithCache(c FunctionCache, key string) Option {
	return func(o *options) { o.cache, o.cacheKey = c, key }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option { return func(o *options) { o.log = log } }

// Checker decides regions for one system and property. Calls are serialized:
// all queries overwrite the same shadow model values and solver stack.
type Checker[C constraints.Float] struct {
	mu sync.Mutex

	property  prop.Property
	params    []ratfunc.Var
	function  ratfunc.Func
	allLinear bool

	shadow  *shadow.Models[C]
	adapter numeric.Adapter[C]
	numeric concrete.Checker[C]
	session *smt.Session
	opts    options
	stats   Statistics
	log     zerolog.Logger
}

// NewChecker preprocesses sys for property: it reduces the system to its
// maybe states, computes the reachability function, builds the shadow models
// and initializes the solver session.
func NewChecker[C constraints.Float](ctx context.Context, sys *model.System, property prop.Property, opts ...Option) (*Checker[C], error) {
	o := options{
		builder:   elimination.NewBuilder(),
		precision: numeric.DefaultPrecision,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.solver == nil {
		o.solver = interval.Factory(0, o.log)
	}
	adapter := numeric.Float[C]{Eps: C(o.precision)}
	o.builder.Log = o.log
	o.builder.Symbolic = adapter

	c := &Checker[C]{
		property: property,
		adapter:  adapter,
		numeric:  concrete.NewChecker(C(o.precision)),
		opts:     o,
		log:      o.log.With().Str("component", "region").Logger(),
	}
	c.stats.Property = property.String()

	start := time.Now()
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	prepared, err := model.Prepare(sys, property.Target, o.log)
	if err != nil {
		return nil, err
	}
	c.params = prepared.Params
	c.stats.ModelStates = prepared.Stats.States
	c.stats.ModelTransitions = prepared.Stats.Transitions

	reduced := prepared
	cached := false
	if o.cache != nil {
		c.function, cached, err = o.cache.Get(o.cacheKey)
		if err != nil {
			c.log.Warn().Err(err).Msg("reading function cache")
			cached = false
		}
	}
	if cached {
		c.allLinear = prepared.AllLinear(adapter)
		c.stats.CachedFunction = true
	} else {
		res := o.builder.Build(prepared)
		c.function, c.allLinear, reduced = res.Function, res.AllLinear, res.Reduced
		c.stats.Elimination = res.Stats.PrepassTime + res.Stats.EliminationTime
		if o.cache != nil {
			if err := o.cache.Put(o.cacheKey, c.function); err != nil {
				c.log.Warn().Err(err).Msg("writing function cache")
			}
		}
	}
	c.stats.AllLinear = c.allLinear
	c.stats.FunctionSize = c.function.Size()
	c.stats.ReducedStates = reduced.N()
	for s, row := range reduced.Rows {
		c.stats.ReducedTransitions += len(row)
		if !adapter.IsZero(reduced.OneStep[s]) {
			c.stats.ReducedTransitions++
		}
	}

	shadowStart := time.Now()
	c.shadow = shadow.Build[C](reduced, adapter)
	c.stats.ShadowBuild = time.Since(shadowStart)

	c.session, err = smt.NewSession(ctx, o.solver, c.function, property, o.log)
	if err != nil {
		return nil, err
	}
	c.stats.Preprocessing = time.Since(start)

	c.log.Info().
		Str("property", property.String()).
		Str("function", c.function.String()).
		Bool("linear", c.allLinear).
		Bool("cached", cached).
		Dur("elapsed", c.stats.Preprocessing).
		Msg("checker ready")
	return c, nil
}

// Function returns the reachability function.
func (c *Checker[C]) Function() ratfunc.Func { return c.function }

// AllLinear reports whether every weight is affine in the parameters.
func (c *Checker[C]) AllLinear() bool { return c.allLinear }

// Property returns the property the checker was built for.
func (c *Checker[C]) Property() prop.Property { return c.property }

// Params returns the declared parameters of the system.
func (c *Checker[C]) Params() []ratfunc.Var { return append([]ratfunc.Var(nil), c.params...) }

// Statistics returns a copy of the counters and timings so far.
func (c *Checker[C]) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// WriteStatistics writes the statistics block to w.
func (c *Checker[C]) WriteStatistics(w io.Writer) error {
	_, err := c.Statistics().WriteTo(w)
	return err
}

// Close releases the solver session.
func (c *Checker[C]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Close()
}

func (c *Checker[C]) covers(r *Region) error {
	for _, v := range c.params {
		if _, ok := r.lower[v]; !ok {
			return fmt.Errorf("%w: region %s has no bounds for %s", ErrMissingBound, r, v)
		}
	}
	return nil
}

// CheckRegion refines the result of r by approximation, vertex sampling and
// SMT solving, stopping at the first conclusive tier.
func (c *Checker[C]) CheckRegion(ctx context.Context, r *Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkRegion(ctx, r)
}

func (c *Checker[C]) checkRegion(ctx context.Context, r *Region) error {
	if err := c.covers(r); err != nil {
		return err
	}
	log := c.log.With().Stringer("region", r).Logger()
	if r.result.Conclusive() {
		log.Debug().Stringer("result", r.result).Msg("already conclusive")
		return nil
	}

	start := time.Now()
	c.stats.CheckedRegions++
	defer func() {
		c.stats.CheckRegion += time.Since(start)
		switch r.result {
		case AllSat:
			c.stats.AllSat++
		case AllViolated:
			c.stats.AllViolated++
		case ExistsBoth:
			c.stats.ExistsBoth++
		}
	}()

	if c.approximationApplies() {
		t := time.Now()
		done, err := c.checkApproximation(r)
		c.stats.Approximation += time.Since(t)
		if err != nil {
			return err
		}
		if done {
			c.stats.SolvedByApproximation++
			log.Debug().Stringer("result", r.result).Msg("solved by approximation")
			return nil
		}
	}

	t := time.Now()
	done, err := c.checkSamplePoints(r)
	c.stats.Sampling += time.Since(t)
	if err != nil {
		return err
	}
	if done {
		c.stats.SolvedBySampling++
		log.Debug().Stringer("result", r.result).Msg("solved by sampling")
		return nil
	}

	t = time.Now()
	done, err = c.checkSmt(ctx, r)
	c.stats.Smt += time.Since(t)
	if err != nil {
		return err
	}
	if done {
		c.stats.SolvedBySmt++
		log.Debug().Stringer("result", r.result).Msg("solved by SMT")
	}
	return nil
}

// CheckRegions checks regions in order and logs progress in tenths.
func (c *Checker[C]) CheckRegions(ctx context.Context, regions []*Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Info().Int("regions", len(regions)).Msg("checking regions")
	progress := 0
	for i, r := range regions {
		if err := c.checkRegion(ctx, r); err != nil {
			return fmt.Errorf("region %d (%s): %w", i, r, err)
		}
		if (i+1)*10/len(regions) > progress {
			progress = (i + 1) * 10 / len(regions)
			c.log.Info().Int("checked", i+1).Int("total", len(regions)).Msgf("%d%%", progress*10)
		}
	}
	return nil
}

// approximationApplies reports whether the bound model yields sound
// probability bounds. Without parameters or with a constant function a single
// vertex already decides the region.
func (c *Checker[C]) approximationApplies() bool {
	return c.allLinear && len(c.params) > 0 && !c.adapter.IsConstant(c.function)
}

func (c *Checker[C]) holds(v C) bool {
	return c.property.Op.HoldsFloat(float64(v), c.property.BoundFloat())
}

// nearBound reports whether v is too close to the bound for a floating point
// comparison to be trusted.
func (c *Checker[C]) nearBound(v C) bool {
	return math.Abs(float64(v)-c.property.BoundFloat()) <= float64(c.adapter.Precision())
}

// checkApproximation bounds the probability over r with the bound model. The
// direction more likely to close the region is tried first.
func (c *Checker[C]) checkApproximation(r *Region) (bool, error) {
	if !c.allLinear {
		return false, ErrNotLinear
	}
	upper := c.property.Op.Upper()
	first := concrete.Minimize
	if upper != (r.result == ExistsViolated) {
		first = concrete.Maximize
	}
	dirs := []concrete.Direction{first, 1 - first}

	lower, up := r.lower, r.upper
	for _, dir := range dirs {
		lo, hi, err := c.shadow.BoundProbability(c.numeric, lower, up, dir)
		if err != nil {
			return false, err
		}
		lower, up = nil, nil
		// The minimum is only used from below and the maximum from above.
		v := lo
		if dir == concrete.Maximize {
			v = hi
			f := float64(hi)
			r.probHi = &f
		} else {
			f := float64(lo)
			r.probLo = &f
		}
		if c.nearBound(v) {
			continue
		}
		// The maximum decides upper-bounded properties when it holds and
		// lower-bounded ones when it fails; the minimum the other way round.
		sat := c.holds(v)
		if upper == (dir == concrete.Maximize) && sat {
			return true, r.setResult(AllSat)
		}
		if upper != (dir == concrete.Maximize) && !sat {
			return true, r.setResult(AllViolated)
		}
	}
	return false, nil
}

// checkSamplePoints evaluates the property at every vertex of r and stops as
// soon as both outcomes were seen.
func (c *Checker[C]) checkSamplePoints(r *Region) (bool, error) {
	for _, pt := range r.Vertices() {
		_, done, err := c.checkPoint(r, pt, c.opts.sampleViaFunction)
		if err != nil || done {
			return done, err
		}
	}
	if c.adapter.IsConstant(c.function) {
		switch r.result {
		case ExistsSat:
			return true, r.setResult(AllSat)
		case ExistsViolated:
			return true, r.setResult(AllViolated)
		}
	}
	return false, nil
}

// CheckPoint evaluates the property at pt, records pt as a witness of r and
// reports whether the property holds there.
func (c *Checker[C]) CheckPoint(r *Region, pt ratfunc.Point, viaFunction bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sat, _, err := c.checkPoint(r, pt, viaFunction)
	return sat, err
}

func (c *Checker[C]) checkPoint(r *Region, pt ratfunc.Point, viaFunction bool) (sat, done bool, err error) {
	if viaFunction {
		v, err := c.function.Evaluate(pt)
		if err != nil {
			return false, false, err
		}
		sat = c.property.Op.Holds(v, c.property.Bound)
	} else {
		v, err := c.shadow.SampleProbability(c.numeric, pt)
		if err != nil {
			return false, false, err
		}
		if c.nearBound(v) {
			return c.checkPoint(r, pt, true)
		}
		sat = c.holds(v)
	}
	done, err = c.record(r, pt, sat)
	return sat, done, err
}

// record feeds one witness into the lattice. done is set once both outcomes
// were observed.
func (c *Checker[C]) record(r *Region, pt ratfunc.Point, sat bool) (bool, error) {
	same, opposite, exists := AllSat, ExistsViolated, ExistsSat
	if !sat {
		same, opposite, exists = AllViolated, ExistsSat, ExistsViolated
	}
	switch r.result {
	case same, exists:
		return false, nil
	case Unknown:
		c.witness(r, pt, sat)
		return false, r.setResult(exists)
	case opposite, ExistsBoth:
		c.witness(r, pt, sat)
		return true, r.setResult(ExistsBoth)
	}
	// A witness contradicting ALLSAT or ALLVIOLATED.
	return true, r.setResult(ExistsBoth)
}

func (c *Checker[C]) witness(r *Region, pt ratfunc.Point, sat bool) {
	if sat && r.satPoint == nil {
		r.setSatPoint(pt)
	}
	if !sat && r.violatedPoint == nil {
		r.setViolatedPoint(pt)
	}
}

// checkSmt asks the solver for a point of the opposite kind of the current
// result. Unknown answers leave r unchanged.
func (c *Checker[C]) checkSmt(ctx context.Context, r *Region) (bool, error) {
	if r.result == Unknown {
		if _, _, err := c.checkPoint(r, r.lower, true); err != nil {
			return false, err
		}
	}
	var mode smt.Mode
	switch r.result {
	case ExistsSat:
		mode = smt.ProveAllSat
	case ExistsViolated:
		mode = smt.ProveAllViolated
	default:
		return r.result.Conclusive(), nil
	}

	st, err := c.session.CheckRegion(ctx, r.vars, r.lower, r.upper, mode)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		c.log.Warn().Err(err).Stringer("region", r).Msg("solver failed")
		st = smt.Unknown
	}

	switch st {
	case smt.Sat:
		c.stats.MissingWitnesses++
		c.log.Warn().Stringer("region", r).Stringer("mode", mode).
			Msg("solver found a witness of the opposite kind; extracting the point is not supported")
		return true, r.setResult(ExistsBoth)
	case smt.Unsat:
		if mode == smt.ProveAllSat {
			return true, r.setResult(AllSat)
		}
		return true, r.setResult(AllViolated)
	}

	c.log.Warn().Stringer("region", r).Msg("solver could not decide the region")
	if c.session.NeedsRestart() {
		c.stats.SolverRestarts++
		if err := c.session.Restart(ctx); err != nil {
			return false, fmt.Errorf("restarting solver: %w", err)
		}
	}
	return false, nil
}
