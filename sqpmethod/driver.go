// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

// sqpDriver orchestrates one solve: linearize the NLP at the current
// iterate, dispatch the QP subproblem, search a step over the L1 merit
// function, update iterate and multipliers and test convergence.
//
// The driver owns the workspace exclusively for the duration of the run;
// no other component retains a reference across iterations.
type sqpDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *sqpLoc
}

// guard runs an evaluation phase, recovering panics from user callables.
func (d *sqpDriver) guard(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	fn()
	return true
}

func (d *sqpDriver) initCtx() {
	spec, ctx := &d.optimizer.sqpSpec, &d.workspace.sqpCtx
	ctx.sigma = zero
	ctx.merit = ctx.merit[:0]
	ctx.iter = 0
	ctx.forced = 0
	ctx.indef = 0
	ctx.warm = false
	ctx.err = nil
	dzero(ctx.mu)
	dzero(ctx.muX)
	dzero(ctx.gLag)
	identity(spec.n, ctx.bk)
}

// linearize evaluates 𝒇, 𝜵𝒇, 𝒄 and 𝜵𝒄 at the current iterate.
func (d *sqpDriver) linearize() {
	spec, loc := &d.optimizer.sqpSpec, d.location
	if spec.m > 0 {
		spec.Eval.Constraints(loc.x, loc.c)
		spec.Eval.Jacobian(loc.x, loc.a)
	}
	loc.f = spec.Eval.Objective(loc.x)
	spec.Eval.Gradient(loc.x, loc.g)
}

// directional is the objective term 𝜵𝒇(𝐱)ᵀ𝐩 of the merit derivative,
// via forward sensitivity when the evaluator provides one.
func (d *sqpDriver) directional() float64 {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location
	if de, ok := spec.Eval.(DirectionalEvaluator); ok {
		return de.Directional(loc.x, ctx.sol.X)
	}
	return ddot(spec.n, loc.g, 1, ctx.sol.X, 1)
}

// acceptStep installs the line-search candidate as the new iterate and
// moves the multipliers by a convex combination weighted by the accepted
// step length, damping multiplier oscillation:
//
//	𝛌 ← 𝐭·𝛌ǫᴘ + (1-𝐭)·𝛌
func (d *sqpDriver) acceptStep(t float64) {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location

	dcopy(spec.n, loc.x, 1, ctx.xOld, 1)
	dcopy(spec.n, ctx.xCand, 1, loc.x, 1)
	loc.f = ctx.fCand
	dcopy(spec.m, ctx.cCand, 1, loc.c, 1)

	// Keep the full QP step for hot-starting the next subproblem.
	dcopy(spec.n, ctx.sol.X, 1, ctx.p, 1)
	ctx.warm = true

	dscal(spec.m, one-t, ctx.mu, 1)
	daxpy(spec.m, t, ctx.sol.LamA, 1, ctx.mu, 1)
	dscal(spec.n, one-t, ctx.muX, 1)
	daxpy(spec.n, t, ctx.sol.LamX, 1, ctx.muX, 1)
}

// updateLagrangian recomputes 𝜵ℒ = 𝜵𝒇 + 𝜵𝒄ᵀ𝛌 + 𝛌ₓ at the new iterate for
// the dual stopping test, and at the previous iterate (whose linearization
// is still in loc) for the BFGS curvature pair.
func (d *sqpDriver) updateLagrangian() {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location
	n, m := spec.n, spec.m

	for i := 0; i < n; i++ {
		g := loc.g[i]
		if m > 0 {
			g += ddot(m, loc.a[i:], n, ctx.mu, 1)
		}
		ctx.gLagOld[i] = g + ctx.muX[i]
	}

	spec.Eval.Gradient(loc.x, loc.g)
	if m > 0 {
		spec.Eval.Jacobian(loc.x, loc.a)
	}
	for i := 0; i < n; i++ {
		g := loc.g[i]
		if m > 0 {
			g += ddot(m, loc.a[i:], n, ctx.mu, 1)
		}
		ctx.gLag[i] = g + ctx.muX[i]
	}
}

func (d *sqpDriver) mainLoop() (status Status) {
	spec := &d.optimizer.sqpSpec
	ctx := &d.workspace.sqpCtx
	loc := d.location
	log := &spec.logger

	d.initCtx()
	if log.enable(LogEval) {
		d.printHeader()
	}

	for {
		ctx.iter++
		if log.enable(LogEval) && ctx.iter%10 == 0 {
			d.printHeader()
		}

		if !d.guard(d.refreshHessian) {
			return BadArgument
		}
		if !d.guard(d.linearize) {
			return BadArgument
		}
		if log.enable(LogVerbose) {
			log.vec(" x", loc.x)
			log.vec(" g", loc.g)
		}

		qp := d.formulate()
		if err := spec.qpSolver.SolveQP(qp, &ctx.sol); err != nil {
			ctx.err = err
			if log.enable(LogLast) {
				log.log("SQP: QP subproblem failed: %v\n", err)
			}
			return QPFault
		}
		if log.enable(LogVerbose) {
			log.vec(" p", ctx.sol.X)
		}

		d.checkCurvature()
		d.updatePenalty()

		var t float64
		var trials int
		var forced bool
		ok := d.guard(func() {
			infeas := zero
			if spec.m > 0 {
				infeas = l1Infeas(loc.c, spec.BndG)
			}
			// Directional derivative of the exact penalty under the QP
			// linearization: the infeasibility term enters at the current
			// point, not along the trial step.
			l1dir := d.directional() - ctx.sigma*infeas
			ctx.pushMerit(loc.f+ctx.sigma*infeas, spec.Line.MeritWindow)
			t, trials, forced = d.lineSearch(l1dir)
		})
		if !ok {
			return BadArgument
		}
		if forced {
			ctx.forced++
		}

		d.acceptStep(t)
		if !d.guard(d.updateLagrangian) {
			return BadArgument
		}
		if spec.Hess.Mode == LimitedMemory {
			d.updateBFGS()
		}

		prInf := d.primalInfeas()
		duInf := dasum(spec.n, ctx.gLag, 1)

		if log.enable(LogEval) {
			d.printIter(prInf, duInf, t, trials, forced)
		}

		if cb := spec.Callback; cb != nil {
			it := Iteration{
				Iter: ctx.iter,
				F:    loc.f,
				X:    loc.x, C: loc.c,
				MuG: ctx.mu, MuX: ctx.muX,
			}
			if cb(&it) {
				if log.enable(LogLast) {
					log.log("SQP: aborted by callback\n")
				}
				return Aborted
			}
		}

		if prInf < spec.Stop.PrimalTolerance && duInf < spec.Stop.DualTolerance {
			if log.enable(LogLast) {
				log.log("SQP: convergence achieved after %d iterations\n", ctx.iter)
			}
			return Converged
		}
		if ctx.iter >= spec.Stop.MaxIterations {
			if log.enable(LogLast) {
				log.log("SQP: maximum number of iterations reached\n")
			}
			return ExceedMaxIter
		}
	}
}

func (d *sqpDriver) printHeader() {
	d.optimizer.logger.log("   It.            obj        pr_inf        du_inf     corr_norm      stepsize  ls\n")
}

func (d *sqpDriver) printIter(prInf, duInf, t float64, trials int, forced bool) {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location
	flag := ' '
	if forced {
		flag = 'F'
	}
	spec.logger.log("%5d  %13.6e  %12.5e  %12.5e  %12.5e  %12.5e  %2d%c\n",
		ctx.iter, loc.f, prInf, duInf, dasum(spec.n, ctx.p, 1), t, trials, flag)
}
