// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import "math"

// l1Infeas measures the L1 constraint violation ∑ⱼ‖𝒄ⱼ(𝐱)‖₁ where each term
// is 𝚖𝚊𝚡(0, 𝚕𝚋ⱼ-𝒄ⱼ) + 𝚖𝚊𝚡(0, 𝒄ⱼ-𝚞𝚋ⱼ).
func l1Infeas(c []float64, bnd []Bound) float64 {
	infeas := zero
	for j, v := range c {
		if d := bnd[j].Lower - v; d > zero {
			infeas += d
		} else if d := v - bnd[j].Upper; d > zero {
			infeas += d
		}
	}
	return infeas
}

// updatePenalty raises σ so the L1 penalty dominates the largest active
// constraint multiplier of the QP, a sufficient condition for local
// exactness of the merit function. σ never decreases.
func (d *sqpDriver) updatePenalty() {
	ctx := &d.workspace.sqpCtx
	for _, lam := range ctx.sol.LamA {
		if a := math.Abs(lam); a > ctx.sigma {
			ctx.sigma = 1.01 * a
		}
	}
}

// primalInfeas measures primal infeasibility of the accepted candidate:
// general constraints treated as equalities when their range is below eqTol,
// plus violations of the variable box.
func (d *sqpDriver) primalInfeas() float64 {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location

	inf := zero
	for j := 0; j < spec.m; j++ {
		b, v := spec.BndG[j], ctx.cCand[j]
		if b.Upper-b.Lower < eqTol {
			inf += math.Abs(v - b.Lower)
		} else if d := b.Lower - v; d > zero {
			inf += d
		} else if d := v - b.Upper; d > zero {
			inf += d
		}
	}
	if spec.BndX != nil {
		for i := 0; i < spec.n; i++ {
			b, v := spec.BndX[i], loc.x[i]
			if b.Upper-b.Lower < eqTol {
				inf += math.Abs(v - b.Lower)
			} else if d := b.Lower - v; d > zero {
				inf += d
			} else if d := v - b.Upper; d > zero {
				inf += d
			}
		}
	}
	return inf
}
