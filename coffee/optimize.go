// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coffee computes the equilibrium composition of a polymerizing
// mixture. Given M monomer species with fixed total concentrations and N
// polymer species with stoichiometry A (N×M) and free energies ΔG, it
// finds the monomer chemical potentials λ minimising the dual
//
//	L(λ) = ln( Σⱼ qⱼ·exp(Aⱼλ) - λᵀm ),   qⱼ = exp(-ΔGⱼ/kT)
//
// whose stationary point satisfies mass conservation Aᵀx = m with
// xⱼ = qⱼ·exp(Aⱼλ). The minimisation uses a trust-region Newton method
// whose subproblem is solved by truncated conjugate gradients.
package coffee

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/coffee/steihaug"
)

var (
	// ErrInvalidProblem reports dimension, option or radius validation failures.
	ErrInvalidProblem = errors.New("coffee: invalid problem")
	// ErrSubproblem reports a failure of the trust-region subproblem solver.
	ErrSubproblem = errors.New("coffee: steihaug optimization did not succeed")
	// ErrDegenerate reports a non-finite Lagrangian at the current iterate.
	ErrDegenerate = errors.New("coffee: lagrangian is not finite")
)

const (
	// Exponent arguments are clamped to [smallestExp, largestExp] so that
	// the Boltzmann weights never underflow to 0 and their sum keeps about
	// 10²⁰⁸ of headroom below +Inf. Energies below -largestExp·kT all map to
	// the same weight, so the solution of such a problem depends on the cap.
	smallestExp = -230.0
	largestExp  = 230.0
	// Gas constant in kcal/(mol·K).
	gasConstant = 0.00198717
	kelvin      = 273.15
)

// Options collects the tunable parameters of the trust-region iteration.
type Options struct {
	// The outer loop stops after MaxIterations iterations.
	MaxIterations int `mapstructure:"max_iterations" json:"max_iterations" yaml:"max_iterations"`
	// Upper bound of the trust-region radius Δ.
	MaxDelta float64 `mapstructure:"max_delta" json:"max_delta" yaml:"max_delta"`
	// A step is rejected when the reduction ratio ρ ≤ Eta.
	Eta float64 `mapstructure:"eta" json:"eta" yaml:"eta"`
	// The radius only grows when ‖ p ‖ ≥ NormRatioThreshold × Δ.
	NormRatioThreshold float64 `mapstructure:"norm_ratio_threshold" json:"norm_ratio_threshold" yaml:"norm_ratio_threshold"`
	// Δ shrinks when ρ < RhoThresholds[0] and grows when ρ > RhoThresholds[1].
	RhoThresholds [2]float64 `mapstructure:"rho_thresholds" json:"rho_thresholds" yaml:"rho_thresholds"`
	// Δ is multiplied by ScaleFactors[0] when shrinking and ScaleFactors[1] when growing.
	ScaleFactors [2]float64 `mapstructure:"scale_factors" json:"scale_factors" yaml:"scale_factors"`
	// Scaling measures concentrations in units of the molarity of water and
	// energies in kcal/mol at TempCelsius. Without it kT = 1.
	Scaling     bool    `mapstructure:"scaling" json:"scaling" yaml:"scaling"`
	TempCelsius float64 `mapstructure:"temp_celsius" json:"temp_celsius" yaml:"temp_celsius"`
	// Verbose adds the elapsed time to the concluding message.
	Verbose bool `mapstructure:"verbose" json:"verbose" yaml:"verbose"`
}

// DefaultOptions returns the standard parameter set.
func DefaultOptions() Options {
	return Options{
		MaxIterations:      250,
		MaxDelta:           1000,
		Eta:                0.15,
		NormRatioThreshold: 0.95,
		RhoThresholds:      [2]float64{0.25, 0.75},
		ScaleFactors:       [2]float64{0.25, 2.0},
		Scaling:            true,
		TempCelsius:        37,
	}
}

// Validate reports the first parameter that would make the iteration ill-posed.
func (opts *Options) Validate() error {
	switch {
	case opts.MaxIterations <= 0:
		return errors.New("max iteration must greater than 0")
	case !(opts.MaxDelta > 0) || math.IsInf(opts.MaxDelta, 1):
		return errors.New("max delta must be positive and finite")
	case !(opts.Eta >= 0 && opts.Eta < 1):
		return errors.New("eta must lie in [0, 1)")
	case !(opts.NormRatioThreshold > 0 && opts.NormRatioThreshold <= 1):
		return errors.New("norm ratio threshold must lie in (0, 1]")
	case !(opts.RhoThresholds[0] >= 0 && opts.RhoThresholds[0] <= opts.RhoThresholds[1]):
		return errors.New("rho thresholds must satisfy 0 ≤ shrink ≤ grow")
	case !(opts.ScaleFactors[0] > 0 && opts.ScaleFactors[0] < 1):
		return errors.New("shrink factor must lie in (0, 1)")
	case !(opts.ScaleFactors[1] > 1) || math.IsInf(opts.ScaleFactors[1], 1):
		return errors.New("grow factor must be greater than 1")
	case opts.Scaling && !(opts.TempCelsius > -kelvin):
		return errors.New("temperature must be above absolute zero")
	}
	return nil
}

// Problem specifies an equilibrium problem.
type Problem struct {
	Monomers []float64  // Total concentration of each monomer (length M)
	Polymers mat.Matrix // Monomer stoichiometry of each polymer (N×M)
	Energies []float64  // Free energy of each polymer (length N)
	Options  Options    // Iteration parameters, see DefaultOptions
}

// New validates the problem and creates an optimizer for it.
// Progress messages go to sink; a nil sink collects them in Result.Log.
func (p *Problem) New(sink Sink) (optimizer *Optimizer, err error) {

	m := len(p.Monomers)
	n, cols := 0, 0
	if p.Polymers != nil {
		n, cols = p.Polymers.Dims()
	}
	opts := p.Options

	switch {
	case m == 0:
		err = errors.New("monomers array is empty")
	case n == 0:
		err = errors.New("polymers array is empty")
	case n < m:
		err = errors.New("number of polymers is less than number of monomers")
	case cols != m:
		err = errors.New("monomers and polymer compositions inconsistent")
	case len(p.Energies) != n:
		err = errors.New("polymers and polymer energies have different sizes")
	default:
		err = opts.Validate()
	}

	if err == nil {
		for j, e := range p.Energies {
			if math.IsNaN(e) {
				err = fmt.Errorf("polymer energy at %d is NaN", j)
				break
			}
		}
	}
	if err == nil {
	scan:
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				if v := p.Polymers.At(j, i); !(v >= 0) || math.IsInf(v, 1) {
					err = fmt.Errorf("polymer composition at (%d,%d) must be non-negative and finite", j, i)
					break scan
				}
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProblem, err)
	}

	kT, molarity := 1.0, 1.0
	if opts.Scaling {
		kT = gasConstant * (opts.TempCelsius + kelvin)
		molarity = WaterMolarity(opts.TempCelsius)
	}

	monomers := slices.Clone(p.Monomers)
	if opts.Scaling {
		for i := range monomers {
			monomers[i] /= molarity
		}
	}

	q := make([]float64, n)
	for j, e := range p.Energies {
		q[j] = math.Exp(clampExp(-e / kT))
	}

	o := &Optimizer{
		m: m, n: n,
		opts:     opts,
		sink:     sink,
		monomers: monomers,
		polymers: mat.DenseCopyOf(p.Polymers),
		q:        q,
		molarity: molarity,
		solver:   steihaug.New(m, opts.MaxIterations),
		delta:    1,
		lambda:   mat.NewVecDense(m, nil),
		prev:     mat.NewVecDense(m, nil),
		grad:     mat.NewVecDense(m, nil),
		hp:       mat.NewVecDense(m, nil),
		hess:     mat.NewSymDense(m, nil),
		x:        make([]float64, n),
		w:        make([]float64, n),
		qw:       make([]float64, n),
	}
	o.wv = mat.NewVecDense(n, o.w)
	o.qwv = mat.NewVecDense(n, o.qw)

	return o, nil
}

func clampExp(v float64) float64 {
	return math.Min(math.Max(v, smallestExp), largestExp)
}

// Optimizer runs the trust-region Newton iteration on one Problem.
// It holds the iterate state and is not safe for concurrent use.
type Optimizer struct {
	m, n int
	opts Options
	sink Sink

	monomers []float64  // m, divided by the water molarity when scaling
	polymers *mat.Dense // n×m
	q        []float64  // n, exp(-ΔG/kT)
	molarity float64    // 1 without scaling

	solver *steihaug.Solver

	delta      float64
	lambda     *mat.VecDense // m
	x          []float64     // n
	lagrangian float64
	part       float64 // s(λ) = exp(L)
	iter       int
	elapsed    time.Duration
	log        []string

	// working space
	prev  *mat.VecDense // λ before the tentative step
	grad  *mat.VecDense // ∇L
	hp    *mat.VecDense // ∇²L·p
	hess  *mat.SymDense // ∇²L
	rootW mat.Dense     // diag(√qw)·A
	w     []float64     // exp(Aλ)
	qw    []float64     // q ⊙ exp(Aλ)
	wv    *mat.VecDense // view of w
	qwv   *mat.VecDense // view of qw
}

// Result is a snapshot of the optimizer state. It shares no memory with
// the optimizer.
type Result struct {
	X          []float64     // Equilibrium polymer concentrations (length N)
	Lambda     []float64     // Monomer chemical potentials (length M)
	Lagrangian float64       // Dual objective at Lambda
	Error      float64       // Mass-conservation error ‖ m - Aᵀx ‖∞
	Log        []string      // Collected progress messages
	Elapsed    time.Duration // Wall time of the last Optimize call
}

// ElapsedMicros reports the elapsed time in microseconds.
func (r *Result) ElapsedMicros() uint64 {
	return uint64(r.Elapsed.Microseconds())
}

// Summary describes how an Optimize call ended.
type Summary struct {
	OK      bool // Whether the iteration ended without a solver failure.
	NumIter int  // Index of the last iteration performed.
}

// Optimize runs the trust-region iteration from λ = 0 with initial radius
// initialDelta. Reaching the iteration limit is not an error; the final
// iterate is kept. On a solver failure the state of the last completed
// iteration stays available through Results.
func (o *Optimizer) Optimize(initialDelta float64) (Summary, error) {

	if !(initialDelta > 0) || math.IsInf(initialDelta, 1) {
		return Summary{}, fmt.Errorf("%w: initial delta %g is not valid", ErrInvalidProblem, initialDelta)
	}

	o.Reset()
	o.print(StartMessage())
	o.delta = initialDelta
	start := time.Now()

	final := 0
	for it := 0; it < o.opts.MaxIterations; it++ {
		done, err := o.iterate()
		if err != nil {
			o.updateX()
			o.elapsed = time.Since(start)
			o.print(ConcludeMessage(it, false, o.elapsed, o.opts.Verbose, nil))
			return Summary{NumIter: it}, fmt.Errorf("iteration %d: %w", it, err)
		}
		final = it
		if done {
			break
		}
		o.print(ProgressMessage(it, o.lagrangian, o.concError()))
		o.iter++
	}

	o.updateX()
	o.elapsed = time.Since(start)

	res := o.Results()
	o.print(ConcludeMessage(final, true, o.elapsed, o.opts.Verbose, &res))
	return Summary{OK: true, NumIter: final}, nil
}

// iterate performs one trust-region step. It reports done when the step
// produced no change of the Lagrangian.
func (o *Optimizer) iterate() (done bool, err error) {

	f := o.evaluate()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false, fmt.Errorf("%w: L = %g", ErrDegenerate, f)
	}
	o.jacobian()
	o.hessian()

	// Forcing sequence ηₖ = min(‖ gₖ ‖, ½) for superlinear convergence.
	gNorm := mat.Norm(o.grad, 2)
	tol := math.Min(gNorm, 0.5) * gNorm

	if err = o.solver.Iterate(o.grad, o.hess, tol, o.delta); err != nil {
		return false, fmt.Errorf("%w: %w", ErrSubproblem, err)
	}
	step := o.solver.View()

	o.prev.CopyVec(o.lambda)
	o.lambda.AddVec(o.lambda, step)
	trial := o.evaluate()

	// pred = -(gᵀp + ½pᵀHp), actual = L(λ) - L(λ + p)
	o.hp.MulVec(o.hess, step)
	pred := -(mat.Dot(o.grad, step) + 0.5*mat.Dot(step, o.hp))
	actual := f - trial

	if actual == 0 {
		return true, nil
	}

	rho := 0.0
	if pred != 0 && !math.IsNaN(trial) && !math.IsInf(trial, 0) {
		rho = actual / pred
	}

	// The radius is adapted before the acceptance test.
	if rho < o.opts.RhoThresholds[0] {
		o.delta *= o.opts.ScaleFactors[0]
	} else if rho > o.opts.RhoThresholds[1] && mat.Norm(step, 2) >= o.opts.NormRatioThreshold*o.delta {
		o.delta = math.Min(o.opts.MaxDelta, o.opts.ScaleFactors[1]*o.delta)
	}

	if rho <= o.opts.Eta {
		o.lambda.CopyVec(o.prev)
		o.evaluate()
	}

	o.updateX()
	return false, nil
}

// Reset clears the iterate state so that the next Optimize starts afresh.
func (o *Optimizer) Reset() {
	o.iter = 0
	o.elapsed = 0
	o.lambda.Zero()
	clear(o.x)
	o.lagrangian = 0
	o.part = 0
	o.log = o.log[:0]
	o.solver.Reset()
}

// Results returns a snapshot of the current state.
func (o *Optimizer) Results() Result {
	return Result{
		X:          slices.Clone(o.x),
		Lambda:     slices.Clone(o.lambda.RawVector().Data),
		Lagrangian: o.lagrangian,
		Error:      o.concError(),
		Log:        slices.Clone(o.log),
		Elapsed:    o.elapsed,
	}
}

// Elapsed reports the wall time of the last Optimize call.
func (o *Optimizer) Elapsed() time.Duration {
	return o.elapsed
}

func (o *Optimizer) print(msg string) {
	if o.sink != nil {
		o.sink.Emit(time.Now(), msg)
	} else {
		o.log = append(o.log, msg)
	}
}
