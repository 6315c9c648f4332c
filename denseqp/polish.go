// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denseqp

import "math"

// Regularization of the polish KKT system, removed again by
// iterative refinement against the unregularized matrix.
const polishDelta = 1e-8

// polish re-solves the converged instance on the active set guessed from
// the dual signs: rows with negative duals are pinned at their lower
// bound, rows with positive duals at their upper bound. The equality
// KKT system
//
//	┌ 𝐏   𝐌ᴀᵀ ┐┌ 𝐱 ┐   ┌ -𝐪 ┐
//	└ 𝐌ᴀ  0   ┘└ 𝛎 ┘ = └  𝐛 ┘
//
// is regularized by ±δ𝐈 for factorization and sharpened back by iterative
// refinement. The polished point replaces the result only when it improves
// both residuals; any failure leaves the splitting solution untouched.
func (s *Solver) polish(p *Problem, res *Result) {
	n, mt, ws := p.N, s.ws.mt, &s.ws

	var lower, upper []int
	for r := 0; r < mt; r++ {
		// a row cannot be active at an infinite bound
		switch {
		case ws.y[r] < zero && !math.IsInf(ws.lb[r], -1):
			lower = append(lower, r)
		case ws.y[r] > zero && !math.IsInf(ws.ub[r], 1):
			upper = append(upper, r)
		}
	}
	na := len(lower) + len(upper)
	nk := n + na

	active := append(lower, upper...)
	kkt := make([]float64, nk*nk)
	reg := make([]float64, nk*nk)
	rhs := make([]float64, nk)
	sol := make([]float64, nk)
	piv := make([]int, nk)

	row := func(r int, dst []float64) {
		// One row of the stacked matrix 𝐌 = [𝐀;𝐈].
		dzero(dst)
		if r < p.M {
			copy(dst, p.A[r*n:(r+1)*n])
		} else {
			dst[r-p.M] = one
		}
	}

	for i := 0; i < n; i++ {
		copy(kkt[i*nk:i*nk+n], p.P[i*n:(i+1)*n])
	}
	scratch := make([]float64, n)
	for k, r := range active {
		row(r, scratch)
		for i := 0; i < n; i++ {
			kkt[i*nk+n+k] = scratch[i]
			kkt[(n+k)*nk+i] = scratch[i]
		}
	}

	copy(reg, kkt)
	for i := 0; i < n; i++ {
		reg[i*nk+i] += polishDelta
	}
	for k := 0; k < na; k++ {
		reg[(n+k)*nk+n+k] -= polishDelta
	}
	if !luFactor(nk, reg, piv) {
		return
	}

	for i := 0; i < n; i++ {
		rhs[i] = -p.Q[i]
	}
	for k, r := range lower {
		rhs[n+k] = ws.lb[r]
	}
	for k, r := range upper {
		rhs[n+len(lower)+k] = ws.ub[r]
	}

	copy(sol, rhs)
	luSolve(nk, reg, piv, sol)
	resid := make([]float64, nk)
	for step := 0; step < 3; step++ {
		for i := 0; i < nk; i++ {
			resid[i] = rhs[i] - ddot(nk, kkt[i*nk:(i+1)*nk], sol)
		}
		luSolve(nk, reg, piv, resid)
		for i := 0; i < nk; i++ {
			sol[i] += resid[i]
		}
	}

	xp := sol[:n]
	yp := make([]float64, mt)
	for k, r := range active {
		yp[r] = sol[n+k]
	}

	// Adopt the polished point only when both residuals improve.
	var primRes float64
	s.stackMul(p, xp, ws.mx)
	for r := 0; r < mt; r++ {
		v := math.Max(ws.lb[r]-ws.mx[r], ws.mx[r]-ws.ub[r])
		if v > primRes {
			primRes = v
		}
	}
	var dualRes float64
	symMul(n, p.P, xp, ws.px)
	dzero(ws.mty)
	s.stackTMulAdd(p, yp, ws.mty)
	for i := 0; i < n; i++ {
		if d := math.Abs(ws.px[i] + p.Q[i] + ws.mty[i]); d > dualRes {
			dualRes = d
		}
	}
	if !(primRes <= res.PrimRes && dualRes <= res.DualRes) {
		return
	}

	copy(res.X, xp)
	copy(res.LamA, yp[:p.M])
	copy(res.LamX, yp[p.M:])
	res.PrimRes = math.Max(primRes, zero)
	res.DualRes = dualRes
	res.Polished = true
}
