// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denseqp

import (
	"errors"
	"math"
)

// stackMul computes out = 𝐌x for the stacked matrix 𝐌 = [𝐀;𝐈].
func (s *Solver) stackMul(p *Problem, x, out []float64) {
	n := p.N
	for j := 0; j < p.M; j++ {
		out[j] = ddot(n, p.A[j*n:(j+1)*n], x)
	}
	copy(out[p.M:], x[:n])
}

// stackTMulAdd accumulates out += 𝐌ᵀw.
func (s *Solver) stackTMulAdd(p *Problem, w, out []float64) {
	n := p.N
	for j := 0; j < p.M; j++ {
		if v := w[j]; v != zero {
			row := p.A[j*n : (j+1)*n]
			for i := 0; i < n; i++ {
				out[i] += v * row[i]
			}
		}
	}
	for i := 0; i < n; i++ {
		out[i] += w[p.M+i]
	}
}

// factorKKT builds and factorizes the splitting system matrix
//
//	𝐊 = 𝐏 + σ𝐈 + 𝐌ᵀdiag(ρ)𝐌
//
// which stays fixed until the penalty is adapted. A failed factorization
// reveals an indefinite quadratic term.
func (s *Solver) factorKKT(p *Problem, sigma float64) error {
	n, ws := p.N, &s.ws
	copy(ws.kkt, p.P)
	for i := 0; i < n; i++ {
		ws.kkt[i*n+i] += sigma + ws.rho[p.M+i]
	}
	for j := 0; j < p.M; j++ {
		row, r := p.A[j*n:(j+1)*n], ws.rho[j]
		for i := 0; i < n; i++ {
			if v := r * row[i]; v != zero {
				for k := 0; k <= i; k++ {
					ws.kkt[i*n+k] += v * row[k]
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		for k := 0; k < i; k++ {
			ws.kkt[k*n+i] = ws.kkt[i*n+k]
		}
	}
	if !cholFactor(n, ws.kkt) {
		return errors.New("dense QP quadratic term not positive definite")
	}
	return nil
}

// iterate performs one over-relaxed splitting step:
//
//	𝐱̃ = 𝐊⁻¹(σ𝐱 - 𝐪 + 𝐌ᵀ(ρ∘𝐳 - 𝐲))
//	𝐱 ← α𝐱̃ + (1-α)𝐱
//	𝐳 ← 𝚷[α𝐌𝐱̃ + (1-α)𝐳 + 𝐲/ρ]
//	𝐲 ← 𝐲 + ρ∘(α𝐌𝐱̃ + (1-α)𝐳ᵒˡᵈ - 𝐳)
//
// where 𝚷 projects onto the stacked bound interval.
func (s *Solver) iterate(p *Problem, opts *Options) {
	n, mt, ws := p.N, s.ws.mt, &s.ws
	alpha, sigma := opts.Alpha, opts.Sigma

	for i := 0; i < n; i++ {
		ws.xt[i] = sigma*ws.x[i] - p.Q[i]
	}
	for r := 0; r < mt; r++ {
		ws.mx[r] = ws.rho[r]*ws.z[r] - ws.y[r]
	}
	s.stackTMulAdd(p, ws.mx, ws.xt)
	cholSolve(n, ws.kkt, ws.xt)

	s.stackMul(p, ws.xt, ws.zt)
	for i := 0; i < n; i++ {
		ws.x[i] = alpha*ws.xt[i] + (one-alpha)*ws.x[i]
	}
	for r := 0; r < mt; r++ {
		zr := alpha*ws.zt[r] + (one-alpha)*ws.z[r]
		znew := clamp(zr+ws.y[r]/ws.rho[r], ws.lb[r], ws.ub[r])
		ws.y[r] += ws.rho[r] * (zr - znew)
		ws.z[r] = znew
	}
}

// residuals computes the primal and dual residual infinity norms
//
//	𝚛ᴘ = ‖𝐌𝐱 - 𝐳‖∞ , 𝚛ᴅ = ‖𝐏𝐱 + 𝐪 + 𝐌ᵀ𝐲‖∞
//
// along with the corresponding scaled tolerances.
func (s *Solver) residuals(p *Problem, opts *Options) (primRes, dualRes, epsPrim, epsDual float64) {
	n, mt, ws := p.N, s.ws.mt, &s.ws

	s.stackMul(p, ws.x, ws.mx)
	for r := 0; r < mt; r++ {
		if d := math.Abs(ws.mx[r] - ws.z[r]); d > primRes {
			primRes = d
		}
	}

	symMul(n, p.P, ws.x, ws.px)
	dzero(ws.mty)
	s.stackTMulAdd(p, ws.y, ws.mty)
	for i := 0; i < n; i++ {
		if d := math.Abs(ws.px[i] + p.Q[i] + ws.mty[i]); d > dualRes {
			dualRes = d
		}
	}

	abs, rel := opts.Stop.AbsTolerance, opts.Stop.RelTolerance
	epsPrim = abs + rel*math.Max(infNorm(ws.mx), infNorm(ws.z))
	epsDual = abs + rel*math.Max(infNorm(ws.px), math.Max(infNorm(p.Q), infNorm(ws.mty)))
	return
}

// adaptRho rescales the per-row penalty toward the ratio of the scaled
// primal and dual residuals and refactorizes the splitting system when
// the change is substantial. Mild imbalance leaves the factor untouched.
func (s *Solver) adaptRho(p *Problem, opts *Options, primRes, dualRes, epsPrim, epsDual float64) error {
	const tiny = 1e-30
	scale := math.Sqrt((primRes / math.Max(epsPrim, tiny)) /
		math.Max(dualRes/math.Max(epsDual, tiny), tiny))
	if scale < 5 && scale > 0.2 {
		return nil
	}
	ws := &s.ws
	for r := 0; r < ws.mt; r++ {
		ws.rho[r] = clamp(ws.rho[r]*scale, rhoMin, rhoMax)
	}
	return s.factorKKT(p, opts.Sigma)
}
