// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqpmethod implements the iteration core of a Sequential Quadratic
// Programming solver for smooth constrained nonlinear programs
//
//	minimize 𝒇(𝐱) subject to
//	  - 𝚕𝚋ɢ ≤ 𝒄(𝐱) ≤ 𝚞𝚋ɢ
//	  - 𝚕𝚋x ≤ 𝐱 ≤ 𝚞𝚋x
//
// Each outer iteration linearizes the problem at the current iterate, hands
// a quadratic subproblem to a QP backend, searches a step length over an L1
// merit function with a non-monotone Armijo condition and updates iterate
// and multipliers until primal and dual infeasibility drop below tolerance.
// Function and derivative evaluations are consumed through the Evaluator
// interface; the QP backend through QPSolver.
package sqpmethod

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
)

// Bound represents the bounds for a variable or a general constraint.
// Absent sides are ±Inf; Lower == Upper declares an equality.
type Bound struct {
	Lower, Upper float64
}

// Termination specifies the stopping criteria for the SQP iteration.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// Stopping tolerance for primal infeasibility.
	PrimalTolerance float64
	// Stopping tolerance for dual infeasibility ‖𝜵ℒ‖₁.
	DualTolerance float64
}

// Iteration is the per-iteration callback payload.
// The slices alias solver state and must not be retained or modified.
type Iteration struct {
	Iter int
	F    float64
	X    []float64
	C    []float64
	MuG  []float64
	MuX  []float64
}

// Callback is invoked once per accepted iteration.
// Returning true aborts the run; the last iterate is still returned.
type Callback func(it *Iteration) (abort bool)

// Problem specifies the NLP for the SQP solver.
type Problem struct {
	N int // The number of variables
	M int // The number of general constraints
	// Function and derivative evaluations.
	Eval Evaluator
	// QP backend for the per-iteration subproblem.
	// When nil the bundled dense solver is used.
	QP QPSolver
	// Stop condition.
	Stop Termination
	// Line-search options.
	Line LineSearch
	// Hessian approximation options.
	Hess Hessian
	// Optional variable bounds, length N. Nil means unbounded.
	BndX []Bound
	// Constraint bounds, length M. Required when M > 0.
	BndG []Bound
	// Optional per-iteration callback.
	Callback Callback
}

// New validates the problem and creates an SQP optimizer.
// Configuration errors are reported here; Fit never fails on them.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = &Logger{Level: LogNoop}
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	stop, line, hess := p.Stop, p.Line, p.Hess
	if stop.MaxIterations == 0 {
		stop.MaxIterations = 50
	}
	if stop.PrimalTolerance == 0 {
		stop.PrimalTolerance = 1e-6
	}
	if stop.DualTolerance == 0 {
		stop.DualTolerance = 1e-6
	}
	if line.MaxTrials == 0 {
		line.MaxTrials = 3
	}
	if line.Armijo == 0 {
		line.Armijo = 1e-4
	}
	if line.Backtrack == 0 {
		line.Backtrack = 0.8
	}
	if line.MeritWindow == 0 {
		line.MeritWindow = 4
	}
	if hess.MemoryCycle == 0 {
		hess.MemoryCycle = 10
	}

	switch {
	case p.N <= 0:
		err = errors.New("problem dimension must greater than 0")
	case p.M < 0:
		err = errors.New("constraint number must not less than 0")
	case p.Eval == nil:
		err = errors.New("evaluator is required")
	case stop.MaxIterations < 0:
		err = errors.New("max iteration must greater than 0")
	case stop.PrimalTolerance < zero || stop.DualTolerance < zero:
		err = errors.New("stopping tolerance must not less than 0")
	case line.MaxTrials < 1:
		err = errors.New("line-search trial budget must greater than 0")
	case line.Armijo <= zero || line.Armijo >= one:
		err = errors.New("armijo coefficient must lie in (0,1)")
	case line.Backtrack <= zero || line.Backtrack >= one:
		err = errors.New("backtrack factor must lie in (0,1)")
	case line.MeritWindow < 1:
		err = errors.New("merit window size must greater than 0")
	case hess.MemoryCycle < 1:
		err = errors.New("hessian memory cycle must greater than 0")
	case p.M > 0 && len(p.BndG) != p.M:
		err = errors.New("constraint bound size must equal to m")
	case p.BndX != nil && len(p.BndX) != p.N:
		err = errors.New("variable bound size must equal to n")
	}
	if err != nil {
		return
	}

	if hess.Mode == Exact {
		if _, ok := p.Eval.(HessianEvaluator); !ok {
			return nil, errors.New("hessian mode is exact, but the evaluator supplies no hessian")
		}
	}

	check := func(bnd []Bound, kind string) error {
		for k, b := range bnd {
			if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
				return fmt.Errorf("%s bound error at %d", kind, k)
			}
		}
		return nil
	}
	if err = check(p.BndG, "constraint"); err != nil {
		return nil, err
	}
	if err = check(p.BndX, "variable"); err != nil {
		return nil, err
	}

	qp := p.QP
	if qp == nil {
		qp = DefaultQP()
	}

	optimizer = &Optimizer{
		sqpSpec{
			n: p.N, m: p.M,
			Problem: Problem{
				N: p.N, M: p.M,
				Eval:     p.Eval,
				Stop:     stop,
				Line:     line,
				Hess:     hess,
				BndX:     slices.Clone(p.BndX),
				BndG:     slices.Clone(p.BndG),
				Callback: p.Callback,
			},
			qpSolver: qp,
			logger:   *logger,
		},
	}
	return
}

// Optimizer drives the SQP iteration for one problem specification.
type Optimizer struct {
	sqpSpec
}

// Workspace contains the mutable state of one solve: iterate scratch,
// multipliers, Hessian approximation, merit window and QP buffers.
// To avoid race conditions, separate workspaces need to be created for
// each goroutine. But multiple workspaces could share one optimizer as
// long as the QP backend and evaluator are stateless or per-workspace.
type Workspace struct {
	n, m int
	sqpCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK   bool      // Whether the optimization was converged.
	F    float64   // Final objective value.
	X    []float64 // Final iterate.
	C    []float64 // Final constraint values.
	MuG  []float64 // Final constraint multipliers.
	MuX  []float64 // Final bound multipliers.
	Err  error     // QP backend error, set when Status is QPFault.
	Summary
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status Status // Final status after optimization.
	// Number of iterations performed.
	NumIter int
	// Number of line searches ended by the trial budget (forced acceptance).
	NumForced int
	// Number of iterations with negative curvature along the step.
	NumIndef int
}

// Init allocate the workspace for the SQP optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m = o.n, o.m
	w.sqpCtx.init(o.n, o.m)
	return w
}

// Fit runs the optimization process using the initial guess x and workspace w.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}
	if w.n != o.n || w.m != o.m {
		panic("workspace dimension not match spec")
	}

	loc := sqpLoc{
		x: slices.Clone(x),
		c: make([]float64, o.m),
		g: make([]float64, o.n),
		a: make([]float64, o.m*o.n),
	}

	driver := sqpDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	res := driver.mainLoop()
	return &Result{
		OK: res == Converged,
		F:  loc.f, X: loc.x, C: loc.c,
		MuG: slices.Clone(w.mu),
		MuX: slices.Clone(w.muX),
		Err: w.err,
		Summary: Summary{
			Status:    res,
			NumIter:   w.iter,
			NumForced: w.forced,
			NumIndef:  w.indef,
		},
	}
}
