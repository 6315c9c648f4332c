// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import "math"

// Subproblem is the quadratic program formed at one linearization point
//
//	minimize ½ 𝐩ᵀ𝐇𝐩 + 𝐠ᵀ𝐩 subject to
//	  - 𝚕𝚋𝙰 ≤ 𝐀𝐩 ≤ 𝚞𝚋𝙰
//	  - 𝚕𝚋𝚇 ≤ 𝐩 ≤ 𝚞𝚋𝚇
//
// where 𝐇 is the symmetric Hessian approximation, 𝐠 the objective gradient,
// 𝐀 the constraint Jacobian and the bounds are shifted by the current iterate.
// Absent bounds are ±Inf. The solver must treat all fields as read-only.
type Subproblem struct {
	N, M int
	H    []float64 // n×n row-major symmetric
	G    []float64 // n
	A    []float64 // m×n row-major
	LbA  []float64 // m
	UbA  []float64 // m
	LbX  []float64 // n
	UbX  []float64 // n
	// Warm-start primal guess, nil when unavailable.
	X0 []float64
}

// Solution receives the QP solver output. The buffers are allocated by the
// caller and sized N and M; the solver fills them in place.
type Solution struct {
	X    []float64 // n : primal step 𝐩
	LamA []float64 // m : duals of the linear constraints
	LamX []float64 // n : duals of the variable bounds
}

// QPSolver solves one quadratic subproblem per outer iteration.
//
// For a convex (positive semidefinite 𝐇) instance the solver must return a
// feasible, at least locally optimal solution. Behavior on indefinite input
// is solver-defined and must be documented by the adapter. A returned error
// ends the surrounding SQP run with status QPFault.
type QPSolver interface {
	SolveQP(qp *Subproblem, sol *Solution) error
}

// formulate builds the subproblem from the current linearization:
// constraint bounds shifted by 𝒄(𝐱) and variable bounds shifted by 𝐱.
// The quadratic term, linear term and constraint matrix alias the
// workspace buffers directly.
func (d *sqpDriver) formulate() *Subproblem {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location

	qp := &ctx.qp
	qp.H = ctx.bk
	qp.G = loc.g
	qp.A = loc.a

	for j := 0; j < spec.m; j++ {
		b := spec.BndG[j]
		qp.LbA[j] = b.Lower - loc.c[j]
		qp.UbA[j] = b.Upper - loc.c[j]
	}
	for i := 0; i < spec.n; i++ {
		l, u := math.Inf(-1), math.Inf(1)
		if spec.BndX != nil {
			l, u = spec.BndX[i].Lower, spec.BndX[i].Upper
		}
		qp.LbX[i] = l - loc.x[i]
		qp.UbX[i] = u - loc.x[i]
	}

	// Hot-start from the previously accepted step when available.
	if ctx.warm {
		qp.X0 = ctx.p
	} else {
		qp.X0 = nil
	}
	return qp
}
