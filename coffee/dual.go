// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffee

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// weights computes w = exp(Aλ) and qw = q ⊙ w.
func (o *Optimizer) weights() {
	o.wv.MulVec(o.polymers, o.lambda)
	for j, v := range o.w {
		o.w[j] = math.Exp(v)
	}
	floats.MulTo(o.qw, o.q, o.w)
}

// partition returns the argument of the logarithm in the Lagrangian:
//
//	s(λ) = qᵀexp(Aλ) - λᵀm
//
// It must be called after weights.
func (o *Optimizer) partition() float64 {
	return floats.Sum(o.qw) - floats.Dot(o.lambda.RawVector().Data, o.monomers)
}

// evaluate refreshes the weights and stores L(λ) = ln s(λ) for the current λ.
func (o *Optimizer) evaluate() float64 {
	o.weights()
	o.part = o.partition()
	o.lagrangian = math.Log(o.part)
	return o.lagrangian
}

// jacobian computes ∇L = (Aᵀ(q ⊙ w) - m) / s at the point of the last evaluate.
func (o *Optimizer) jacobian() {
	s := o.part
	g := o.grad
	g.MulVec(o.polymers.T(), o.qwv)
	for i, v := range o.monomers {
		g.SetVec(i, (g.AtVec(i)-v)/s)
	}
}

// hessian computes ∇²L = Aᵀdiag(q ⊙ w)A / s - ∇L∇Lᵀ at the point of the
// last evaluate and jacobian. The first term is formed as BᵀB with
// B = diag(√(q ⊙ w))A so that it stays exactly symmetric.
func (o *Optimizer) hessian() {
	s := o.part
	qw := o.qw
	o.rootW.Apply(func(j, _ int, v float64) float64 {
		return v * math.Sqrt(qw[j])
	}, o.polymers)
	o.hess.SymOuterK(1/s, o.rootW.T())
	o.hess.SymRankOne(o.hess, -1, o.grad)
}

// updateX recomputes the polymer concentrations x = q ⊙ exp(Aλ) for the
// current λ, in the caller's concentration unit.
func (o *Optimizer) updateX() {
	o.weights()
	copy(o.x, o.qw)
	if o.opts.Scaling {
		floats.Scale(o.molarity, o.x)
	}
}

// concError returns the mass-conservation error ‖ m - Aᵀx ‖∞ of the current x.
func (o *Optimizer) concError() float64 {
	var conc mat.VecDense
	conc.MulVec(o.polymers.T(), mat.NewVecDense(o.n, o.x))
	e := 0.0
	for i, v := range o.monomers {
		e = math.Max(e, math.Abs(v*o.molarity-conc.AtVec(i)))
	}
	return e
}
