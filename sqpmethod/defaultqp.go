// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import "github.com/curioloop/sqp/denseqp"

// denseQP adapts the bundled dense splitting solver to the QPSolver
// interface. Subproblems from a damped BFGS approximation are positive
// definite; an exact-mode Hessian without regularization may not be, in
// which case the backend reports a factorization error.
type denseQP struct {
	solver denseqp.Solver
}

// DefaultQP returns the bundled dense QP backend with active-set polish
// enabled. Each returned backend keeps private scratch and must not be
// shared between concurrently running workspaces.
func DefaultQP() QPSolver {
	qp := &denseQP{}
	qp.solver.Opts.Polish = true
	return qp
}

func (q *denseQP) SolveQP(qp *Subproblem, sol *Solution) error {
	prob := denseqp.Problem{
		N: qp.N, M: qp.M,
		P: qp.H, Q: qp.G,
		A:   qp.A,
		LbA: qp.LbA, UbA: qp.UbA,
		LbX: qp.LbX, UbX: qp.UbX,
	}
	res, err := q.solver.Solve(&prob, qp.X0)
	if err != nil {
		return err
	}
	copy(sol.X, res.X)
	copy(sol.LamA, res.LamA)
	copy(sol.LamX, res.LamX)
	return nil
}
