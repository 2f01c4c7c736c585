// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package steihaug solves the trust-region subproblem
//
//	minimize   m(p) = gᵀp + ½pᵀHp
//	subject to ‖ p ‖₂ ≤ Δ
//
// with the truncated conjugate gradient method of Steihaug and Toint.
// The iteration stops at the first of: the residual falls below the
// tolerance, a direction of non-positive curvature is met, or the next
// iterate would leave the trust region. In the last two cases the step is
// extended along the current direction up to the boundary.
//
// # Reference:
//
//   - T. Steihaug, The conjugate gradient method and trust regions in large
//     scale optimization, SIAM J. Numer. Anal. 20 (1983) 626-637.
//   - J. Nocedal, S. Wright, Numerical Optimization, 2nd ed., Algorithm 7.2.
package steihaug

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrIterationLimit is returned once the solver has been called more
	// times than its lifetime limit allows.
	ErrIterationLimit = errors.New("steihaug: exceeded maximum iterations")
	// ErrBoundaryRoot is returned when the step to the trust-region
	// boundary has no finite non-negative solution.
	ErrBoundaryRoot = errors.New("steihaug: no finite root for boundary step")
)

// Solver holds the scratch vectors of the truncated CG iteration.
// A Solver is not safe for concurrent use.
type Solver struct {
	n       int
	maxIter int
	iter    int

	z  *mat.VecDense // current iterate
	r  *mat.VecDense // residual rⱼ = Hzⱼ + g
	d  *mat.VecDense // search direction
	hd *mat.VecDense // Hdⱼ
	zn *mat.VecDense // candidate zⱼ₊₁
}

// New creates a solver for n-dimensional problems that accepts at most
// maxIter calls to Iterate over its lifetime (until Reset).
func New(n, maxIter int) *Solver {
	if n <= 0 {
		panic("steihaug: dimension must greater than 0")
	}
	return &Solver{
		n:       n,
		maxIter: maxIter,
		z:       mat.NewVecDense(n, nil),
		r:       mat.NewVecDense(n, nil),
		d:       mat.NewVecDense(n, nil),
		hd:      mat.NewVecDense(n, nil),
		zn:      mat.NewVecDense(n, nil),
	}
}

// Iterate computes an approximate minimizer of the quadratic model with
// gradient g and Hessian h inside the ball of radius delta. The residual
// tolerance tol controls interior convergence.
//
// The step is available through Result or View afterwards.
// It panics if g or h do not match the solver dimension.
func (s *Solver) Iterate(g mat.Vector, h mat.Symmetric, tol, delta float64) error {

	if s.iter >= s.maxIter {
		return ErrIterationLimit
	}
	s.iter++

	if g.Len() != s.n || h.SymmetricDim() != s.n {
		panic("steihaug: gradient or hessian dimension not match solver")
	}

	z, r, d, hd, zn := s.z, s.r, s.d, s.hd, s.zn

	// z₀ = 0, r₀ = g, d₀ = -g
	z.Zero()
	r.CopyVec(g)
	d.ScaleVec(-1, g)

	if rNorm := mat.Norm(r, 2); rNorm == 0 || rNorm < tol {
		return nil
	}

	for j := 0; j < s.n; j++ {

		hd.MulVec(h, d)
		curv := mat.Dot(d, hd) // dⱼᵀHdⱼ
		rr := mat.Dot(r, r)

		if curv <= 0 || math.IsNaN(curv) {
			// Non-positive curvature: follow dⱼ to the boundary.
			return s.toBoundary(delta)
		}

		alpha := rr / curv
		zn.AddScaledVec(z, alpha, d)
		if mat.Norm(zn, 2) >= delta {
			return s.toBoundary(delta)
		}
		z.CopyVec(zn)

		r.AddScaledVec(r, alpha, hd) // rⱼ₊₁ = rⱼ + αⱼHdⱼ
		rn := mat.Dot(r, r)
		if math.Sqrt(rn) < tol {
			return nil
		}

		beta := rn / rr
		d.ScaleVec(beta, d)
		d.SubVec(d, r) // dⱼ₊₁ = βⱼ₊₁dⱼ - rⱼ₊₁
	}

	return nil
}

// toBoundary moves z along d to the boundary point z + τd with ‖ z + τd ‖ = Δ, τ ≥ 0.
func (s *Solver) toBoundary(delta float64) error {
	tau, ok := boundaryRoot(s.z, s.d, delta)
	if !ok {
		return ErrBoundaryRoot
	}
	s.z.AddScaledVec(s.z, tau, s.d)
	return nil
}

// boundaryRoot solves ‖ z + τd ‖² = Δ² for the non-negative root:
//
//	(dᵀd)τ² + 2(zᵀd)τ + (zᵀz - Δ²) = 0
func boundaryRoot(z, d mat.Vector, delta float64) (tau float64, ok bool) {
	a := mat.Dot(d, d)
	b := 2 * mat.Dot(z, d)
	c := mat.Dot(z, z) - delta*delta
	tau = (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	ok = !math.IsNaN(tau) && !math.IsInf(tau, 0)
	return
}

// Result returns a copy of the latest step.
func (s *Solver) Result() []float64 {
	out := make([]float64, s.n)
	for i := range out {
		out[i] = s.z.AtVec(i)
	}
	return out
}

// View returns the latest step without copying.
// The vector is overwritten by the next call to Iterate.
func (s *Solver) View() mat.Vector {
	return s.z
}

// Iterations reports how many times Iterate has been called since the
// solver was created or last reset.
func (s *Solver) Iterations() int {
	return s.iter
}

// Reset clears the call counter and the latest step.
func (s *Solver) Reset() {
	s.iter = 0
	s.z.Zero()
}
