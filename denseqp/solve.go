// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package denseqp implements a dense convex quadratic program solver
//
//	minimize ½ 𝐱ᵀ𝐏𝐱 + 𝐪ᵀ𝐱 subject to
//	  - 𝚕𝚋𝙰 ≤ 𝐀𝐱 ≤ 𝚞𝚋𝙰
//	  - 𝚕𝚋𝚇 ≤ 𝐱 ≤ 𝚞𝚋𝚇
//
// based on the operator-splitting (ADMM) scheme of OSQP. The linear
// constraints and the variable bounds are stacked into one set of rows
// 𝐥 ≤ [𝐀;𝐈]𝐱 ≤ 𝐮 and each iteration solves a single positive definite
// system with a cached Cholesky factorization. On convergence the solution
// is optionally polished by solving the KKT system of the detected active
// set to full accuracy.
//
// The solver requires 𝐏 positive definite on the reduced system; an
// indefinite quadratic term surfaces as a factorization error.
package denseqp

import (
	"errors"
	"fmt"
	"math"
)

const (
	zero = 0.0
	one  = 1.0
)

// Rows whose bound range is narrower than eqTol are handled as equalities
// and receive a stiffer penalty weight.
const eqTol = 1e-12

// Penalty scaling of equality rows and clamping range of the
// per-row penalty after adaptation.
const (
	rhoEqScale = 1e3
	rhoMin     = 1e-6
	rhoMax     = 1e6
)

// Termination specifies the stopping criteria of the splitting iteration.
type Termination struct {
	// The iteration fails when the number of iterations exceeds limit.
	MaxIterations int
	// Absolute and relative residual tolerances.
	AbsTolerance float64
	RelTolerance float64
}

// Options specifies the solver parameters.
type Options struct {
	Stop Termination
	// Initial penalty weight ρ of the constraint rows.
	Rho float64
	// Primal regularization σ of the splitting step.
	Sigma float64
	// Over-relaxation coefficient α ∈ (1,2).
	Alpha float64
	// Solve the active-set KKT system after convergence.
	Polish bool
}

// Problem specifies one dense QP instance. Nil bound slices mean
// unbounded; absent single bounds are ±Inf. All fields are read-only
// to the solver.
type Problem struct {
	N, M int
	P    []float64 // n×n row-major symmetric
	Q    []float64 // n
	A    []float64 // m×n row-major
	LbA  []float64 // m
	UbA  []float64 // m
	LbX  []float64 // n
	UbX  []float64 // n
}

// Result contains the solution of one solve.
type Result struct {
	X    []float64 // primal solution
	LamA []float64 // duals of the linear constraints
	LamX []float64 // duals of the variable bounds
	// Iterations spent and final residuals of the splitting phase.
	NumIter  int
	PrimRes  float64
	DualRes  float64
	Polished bool
}

// Solver solves dense QP instances, reusing its workspace across calls.
// A solver must not be shared between goroutines.
type Solver struct {
	Opts Options
	ws   workspace
}

type workspace struct {
	n, mt int
	kkt   []float64 // n×n Cholesky factor of 𝐏 + σ𝐈 + 𝐌ᵀdiag(ρ)𝐌
	rho   []float64 // mt : per-row penalty
	lb    []float64 // mt : stacked lower bounds
	ub    []float64 // mt : stacked upper bounds
	x     []float64 // n
	z     []float64 // mt
	y     []float64 // mt
	xt    []float64 // n : splitting-step solution
	zt    []float64 // mt : 𝐌𝐱̃
	mx    []float64 // mt : scratch 𝐌𝐱
	px    []float64 // n : scratch 𝐏𝐱
	mty   []float64 // n : scratch 𝐌ᵀ𝐲
}

func (w *workspace) init(n, mt int) {
	if w.n == n && w.mt == mt {
		return
	}
	w.n, w.mt = n, mt
	w.kkt = make([]float64, n*n)
	w.rho = make([]float64, mt)
	w.lb = make([]float64, mt)
	w.ub = make([]float64, mt)
	w.x = make([]float64, n)
	w.z = make([]float64, mt)
	w.y = make([]float64, mt)
	w.xt = make([]float64, n)
	w.zt = make([]float64, mt)
	w.mx = make([]float64, mt)
	w.px = make([]float64, n)
	w.mty = make([]float64, n)
}

// fill normalizes the options, applying defaults for zero values.
func (o Options) fill() Options {
	if o.Stop.MaxIterations == 0 {
		o.Stop.MaxIterations = 20000
	}
	if o.Stop.AbsTolerance == 0 {
		o.Stop.AbsTolerance = 1e-9
	}
	if o.Stop.RelTolerance == 0 {
		o.Stop.RelTolerance = 1e-9
	}
	if o.Rho == 0 {
		o.Rho = 0.1
	}
	if o.Sigma == 0 {
		o.Sigma = 1e-6
	}
	if o.Alpha == 0 {
		o.Alpha = 1.6
	}
	return o
}

// Solve solves the QP, warm-starting the primal iterate from x0 when
// given. A nil error guarantees residuals below tolerance; exceeding the
// iteration limit or meeting an indefinite quadratic term is an error.
func (s *Solver) Solve(p *Problem, x0 []float64) (*Result, error) {

	opts := s.Opts.fill()
	n, m := p.N, p.M
	mt := m + n
	ws := &s.ws
	ws.init(n, mt)

	if err := s.stackBounds(p); err != nil {
		return nil, err
	}

	// Wholly unconstrained instances reduce to one linear solve.
	free := true
	for r := 0; r < mt; r++ {
		if !math.IsInf(ws.lb[r], -1) || !math.IsInf(ws.ub[r], 1) {
			free = false
			break
		}
	}
	if free {
		return s.solveFree(p)
	}

	s.initRho(opts.Rho)
	if err := s.factorKKT(p, opts.Sigma); err != nil {
		return nil, err
	}

	dzero(ws.y)
	if x0 != nil {
		copy(ws.x, x0)
	} else {
		dzero(ws.x)
	}
	s.stackMul(p, ws.x, ws.z)
	for r := 0; r < mt; r++ {
		ws.z[r] = clamp(ws.z[r], ws.lb[r], ws.ub[r])
	}

	var primRes, dualRes float64
	for iter := 1; iter <= opts.Stop.MaxIterations; iter++ {
		s.iterate(p, &opts)

		// Residual checks and penalty adaptation are amortized.
		if iter%25 != 0 && iter != opts.Stop.MaxIterations {
			continue
		}

		var epsPrim, epsDual float64
		primRes, dualRes, epsPrim, epsDual = s.residuals(p, &opts)
		if primRes <= epsPrim && dualRes <= epsDual {
			res := s.extract(p, iter, primRes, dualRes)
			if opts.Polish {
				s.polish(p, res)
			}
			return res, nil
		}

		if err := s.adaptRho(p, &opts, primRes, dualRes, epsPrim, epsDual); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("dense QP not converged: residual %e/%e after %d iterations",
		primRes, dualRes, opts.Stop.MaxIterations)
}

// stackBounds gathers the constraint-row and variable bounds into one
// stacked vector pair, rejecting crossed bounds.
func (s *Solver) stackBounds(p *Problem) error {
	ws := &s.ws
	ninf, pinf := math.Inf(-1), math.Inf(1)
	for j := 0; j < p.M; j++ {
		ws.lb[j], ws.ub[j] = p.LbA[j], p.UbA[j]
	}
	for i := 0; i < p.N; i++ {
		l, u := ninf, pinf
		if p.LbX != nil {
			l = p.LbX[i]
		}
		if p.UbX != nil {
			u = p.UbX[i]
		}
		ws.lb[p.M+i], ws.ub[p.M+i] = l, u
	}
	for r := 0; r < ws.mt; r++ {
		if ws.lb[r] > ws.ub[r] {
			return errors.New("dense QP bounds crossed")
		}
	}
	return nil
}

// initRho seeds the per-row penalty: equality rows are weighted rhoEqScale
// times stiffer and fully free rows get the minimum weight so they barely
// perturb the splitting system.
func (s *Solver) initRho(rho float64) {
	ws := &s.ws
	for r := 0; r < ws.mt; r++ {
		switch {
		case ws.ub[r]-ws.lb[r] < eqTol:
			ws.rho[r] = rhoEqScale * rho
		case math.IsInf(ws.lb[r], -1) && math.IsInf(ws.ub[r], 1):
			ws.rho[r] = rhoMin
		default:
			ws.rho[r] = rho
		}
	}
}

// solveFree handles the unconstrained fast path 𝐏𝐱 = -𝐪 directly.
func (s *Solver) solveFree(p *Problem) (*Result, error) {
	n, ws := p.N, &s.ws
	copy(ws.kkt, p.P)
	if !cholFactor(n, ws.kkt) {
		return nil, errors.New("dense QP quadratic term not positive definite")
	}
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = -p.Q[i]
	}
	cholSolve(n, ws.kkt, x)
	return &Result{
		X:    x,
		LamA: make([]float64, p.M),
		LamX: make([]float64, n),
	}, nil
}

// extract copies the iterates into a fresh result, splitting the stacked
// duals back into constraint-row and bound multipliers.
func (s *Solver) extract(p *Problem, iter int, primRes, dualRes float64) *Result {
	ws := &s.ws
	res := &Result{
		X:       make([]float64, p.N),
		LamA:    make([]float64, p.M),
		LamX:    make([]float64, p.N),
		NumIter: iter,
		PrimRes: primRes,
		DualRes: dualRes,
	}
	copy(res.X, ws.x)
	copy(res.LamA, ws.y[:p.M])
	copy(res.LamX, ws.y[p.M:])
	return res
}
