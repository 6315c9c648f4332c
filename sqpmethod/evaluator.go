// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import (
	"github.com/curioloop/sqp/numdiff"
)

// Evaluator supplies function and first-derivative evaluations of the NLP
//   - 𝒇(𝐱) : ℝⁿ → ℝ
//   - 𝒄(𝐱) : ℝⁿ → ℝᵐ
//   - 𝜵𝒇(𝐱) : ℝⁿ → ℝⁿ
//   - 𝜵𝒄(𝐱) : ℝⁿ → ℝᵐˣⁿ (row-major)
//
// The solver calls these at arbitrary trial points; an evaluator must not
// carry iteration-dependent state, so evaluating twice at the same point
// yields identical values. Constraints and Jacobian are never called when m = 0.
type Evaluator interface {
	Objective(x []float64) float64
	Gradient(x, grad []float64)
	Constraints(x, c []float64)
	Jacobian(x, jac []float64)
}

// HessianEvaluator is the optional exact Hessian of the Lagrangian
// 𝜵²[σ𝒇(𝐱) + 𝛌ᵀ𝒄(𝐱)], required by the exact Hessian mode.
type HessianEvaluator interface {
	Evaluator
	Hessian(x, mu []float64, sigmaF float64, hess []float64)
}

// DirectionalEvaluator is an optional forward sensitivity 𝜵𝒇(𝐱)ᵀ𝐝.
// When absent the solver falls back to a dot product with the gradient.
type DirectionalEvaluator interface {
	Directional(x, dir []float64) float64
}

// FuncEvaluator adapts plain Go functions to the Evaluator interface.
// Missing derivative callables fall back to finite differences.
type FuncEvaluator struct {
	N, M int
	// Objective function, required.
	F func(x []float64) float64
	// Constraint functions, required when M > 0.
	G func(x, c []float64)
	// Analytic objective gradient, optional.
	Grad func(x, grad []float64)
	// Analytic constraint Jacobian (row-major m×n), optional.
	Jac func(x, jac []float64)
	// Finite-difference settings for the fallbacks.
	Diff numdiff.Spec
}

func (e *FuncEvaluator) Objective(x []float64) float64 { return e.F(x) }

func (e *FuncEvaluator) Gradient(x, grad []float64) {
	if e.Grad != nil {
		e.Grad(x, grad)
		return
	}
	if err := e.Diff.Gradient(e.F, x, grad); err != nil {
		panic(err)
	}
}

func (e *FuncEvaluator) Constraints(x, c []float64) { e.G(x, c) }

func (e *FuncEvaluator) Jacobian(x, jac []float64) {
	if e.Jac != nil {
		e.Jac(x, jac)
		return
	}
	if err := e.Diff.Jacobian(e.M, e.G, x, jac); err != nil {
		panic(err)
	}
}

// HessFuncEvaluator extends FuncEvaluator with an analytic Lagrangian
// Hessian, satisfying HessianEvaluator for the exact Hessian mode.
type HessFuncEvaluator struct {
	FuncEvaluator
	// Hessian of σ𝒇(𝐱) + 𝛌ᵀ𝒄(𝐱), required.
	Hess func(x, mu []float64, sigmaF float64, hess []float64)
}

func (e *HessFuncEvaluator) Hessian(x, mu []float64, sigmaF float64, hess []float64) {
	e.Hess(x, mu, sigmaF, hess)
}
