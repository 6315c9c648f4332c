// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import "math"

// HessianMode selects the Hessian approximation strategy.
type HessianMode int

const (
	// LimitedMemory maintain a damped BFGS approximation across iterations.
	LimitedMemory HessianMode = iota
	// Exact evaluate the Lagrangian Hessian every iteration.
	Exact
)

// Hessian specifies the Hessian approximation options.
type Hessian struct {
	Mode HessianMode
	// Reset the BFGS approximation to its diagonal every MemoryCycle
	// iterations, bounding drift of the accumulated corrections.
	MemoryCycle int
	// Shift the exact Hessian by a Gershgorin eigenvalue bound so the
	// QP solver always receives a matrix with non-negative worst-case
	// eigenvalue estimate.
	Regularize bool
}

// identity resets 𝐁 = 𝐈.
func identity(n int, b []float64) {
	dzero(b)
	for i := 0; i < n; i++ {
		b[i*n+i] = one
	}
}

// gershgorin estimates a regularization shift from the Gershgorin circle
// theorem: every eigenvalue of 𝐁 lies within radius ∑ⱼ≠ᵢ|𝐁ᵢⱼ| of some
// diagonal element, so 𝚖𝚒𝚗ᵢ(𝐁ᵢᵢ - 𝚛ᵢ) bounds the spectrum from below.
// The returned shift is 0 when that bound is already non-negative.
func gershgorin(n int, b []float64) float64 {
	bound := zero
	for i := 0; i < n; i++ {
		radius := zero
		for j := 0; j < n; j++ {
			if i != j {
				radius += math.Abs(b[i*n+j])
			}
		}
		if low := b[i*n+i] - radius; low < bound {
			bound = low
		}
	}
	return -bound
}

// refreshHessian recomputes 𝐁ᵏ in exact mode: the Lagrangian Hessian at
// the current iterate with objective weight 1, shifted by the Gershgorin
// bound when regularization is enabled. In limited-memory mode 𝐁ᵏ persists
// between iterations and nothing happens here.
func (d *sqpDriver) refreshHessian() {
	spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location
	if spec.Hess.Mode != Exact {
		return
	}

	he := spec.Eval.(HessianEvaluator) // checked in New
	he.Hessian(loc.x, ctx.mu, one, ctx.bk)

	if spec.Hess.Regularize {
		if reg := gershgorin(spec.n, ctx.bk); reg > zero {
			if log := &spec.logger; log.enable(LogTrace) {
				log.log("Regularization parameter: %e\n", reg)
			}
			for i := 0; i < spec.n; i++ {
				ctx.bk[i*spec.n+i] += reg
			}
		}
	}
}

// checkCurvature flags an indefinite Hessian when the curvature along the
// just-computed step direction is negative. The step is kept as is: the QP
// solver's handling of a non-convex objective governs behavior.
func (d *sqpDriver) checkCurvature() {
	spec, ctx := &d.optimizer.sqpSpec, &d.workspace.sqpCtx
	n := spec.n
	for i := 0; i < n; i++ {
		ctx.qk[i] = ddot(n, ctx.bk[i*n:(i+1)*n], 1, ctx.sol.X, 1)
	}
	if gain := ddot(n, ctx.sol.X, 1, ctx.qk, 1); gain < zero {
		ctx.indef++
		if log := &spec.logger; log.enable(LogLast) {
			log.log("Warning: indefinite Hessian detected (p'Bp = %e)\n", gain)
		}
	}
}

// updateBFGS applies the damped rank-2 BFGS correction
//
//	𝐁ᵏ⁺¹ = 𝐁ᵏ + 𝛉𝐲𝐲ᵀ - 𝛗𝐪𝐪ᵀ
//	  - 𝐬 = 𝐱ᵏ⁺¹ - 𝐱ᵏ
//	  - 𝐲 = 𝜵ℒ(𝐱ᵏ⁺¹,𝛌) - 𝜵ℒ(𝐱ᵏ,𝛌)
//	  - 𝐪 = 𝐁ᵏ𝐬 , 𝛉 = 1/𝐬ᵀ𝐲 , 𝛗 = 1/𝐪ᵀ𝐬
//
// with Powell damping when the curvature condition 𝐬ᵀ𝐲 ≥ ⅕𝐬ᵀ𝐪 fails:
//
//	𝛚 = ⅘𝐬ᵀ𝐪 / (𝐬ᵀ𝐪 - 𝐬ᵀ𝐲) , 𝐲 ← 𝛚𝐲 + (1-𝛚)𝐪
//
// which keeps the update well-defined at the cost of biasing it toward the
// previous approximation. Every MemoryCycle iterations the approximation is
// first reset to its diagonal. The update preserves symmetry exactly by
// mirroring each accumulated element.
func (d *sqpDriver) updateBFGS() {
	spec, ctx := &d.optimizer.sqpSpec, &d.workspace.sqpCtx
	n, bk := spec.n, ctx.bk

	if cyc := spec.Hess.MemoryCycle; cyc > 0 && ctx.iter%cyc == 0 {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					bk[i*n+j] = zero
				}
			}
		}
	}

	sk, yk, qk := ctx.sk, ctx.yk, ctx.qk
	for i := 0; i < n; i++ {
		sk[i] = d.location.x[i] - ctx.xOld[i]
		yk[i] = ctx.gLag[i] - ctx.gLagOld[i]
	}
	for i := 0; i < n; i++ {
		qk[i] = ddot(n, bk[i*n:(i+1)*n], 1, sk, 1)
	}

	sy := ddot(n, sk, 1, yk, 1) // 𝐬ᵀ𝐲
	sq := ddot(n, sk, 1, qk, 1) // 𝐬ᵀ𝐁ᵏ𝐬
	if sy < 0.2*sq {
		omega := 0.8 * sq / (sq - sy)
		for i := 0; i < n; i++ {
			yk[i] = omega*yk[i] + (one-omega)*qk[i]
		}
		sy = ddot(n, sk, 1, yk, 1)
	}

	// A degenerate step carries no curvature information.
	if sy == zero || sq == zero {
		if log := &spec.logger; log.enable(LogTrace) {
			log.log("Skipping BFGS update: no curvature in step\n")
		}
		return
	}

	theta, phi := one/sy, one/sq
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := bk[i*n+j] + theta*yk[i]*yk[j] - phi*qk[i]*qk[j]
			bk[i*n+j] = v
			bk[j*n+i] = v
		}
	}
}
