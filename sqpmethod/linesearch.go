// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

// LineSearch specifies the options for the non-monotone Armijo backtracking.
type LineSearch struct {
	// The maximum number of trial evaluations per search.
	MaxTrials int
	// Armijo condition coefficient c₁ of decrease in merit.
	Armijo float64
	// Restoration factor β applied to the step length on rejection.
	Backtrack float64
	// Number of past merit values kept as the non-monotone reference.
	MeritWindow int
}

// lineSearch backtracks along the QP step until the candidate merit
// satisfies the non-monotone Armijo condition
//
//	𝞥(𝐱+𝐭𝐩) ≤ 𝚖𝚊𝚡(𝞥ₖ₋ⱼ) + 𝐭·c₁·𝜵𝞥
//
// comparing against the worst of the recent merit window rather than only
// the previous value. When no trial within the budget satisfies the
// condition the last trial is accepted unconditionally and flagged, so the
// iteration keeps making progress. The accepted candidate is left in
// ctx.xCand/fCand/cCand.
func (d *sqpDriver) lineSearch(l1dir float64) (t float64, trials int, forced bool) {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location

	ref := ctx.maxMerit()
	t = one
	for trials = 1; ; trials++ {
		for i := 0; i < spec.n; i++ {
			ctx.xCand[i] = loc.x[i] + t*ctx.sol.X[i]
		}
		ctx.fCand = spec.Eval.Objective(ctx.xCand)
		infeas := zero
		if spec.m > 0 {
			spec.Eval.Constraints(ctx.xCand, ctx.cCand)
			infeas = l1Infeas(ctx.cCand, spec.BndG)
		}
		cand := ctx.fCand + ctx.sigma*infeas

		if log := &spec.logger; log.enable(LogTrace) {
			log.log("LS trial %d: t = %e merit = %e ref = %e\n", trials, t, cand, ref)
		}

		if cand <= ref+t*spec.Line.Armijo*l1dir {
			return t, trials, false
		}
		if trials == spec.Line.MaxTrials {
			return t, trials, true
		}
		t *= spec.Line.Backtrack
	}
}
