// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func newTestDriver(n, m int) *sqpDriver {
	opt := &Optimizer{sqpSpec{
		n: n, m: m,
		Problem: Problem{
			N: n, M: m,
			Line: LineSearch{MaxTrials: 3, Armijo: 1e-4, Backtrack: 0.8, MeritWindow: 4},
			Hess: Hessian{MemoryCycle: 10},
		},
		logger: Logger{Level: LogNoop},
	}}
	w := opt.Init()
	loc := &sqpLoc{
		x: make([]float64, n),
		c: make([]float64, m),
		g: make([]float64, n),
		a: make([]float64, m*n),
	}
	return &sqpDriver{optimizer: opt, workspace: w, location: loc}
}

func drawVec(t *rapid.T, n int, label string) []float64 {
	gen := rapid.Float64Range(-10, 10)
	v := make([]float64, n)
	for i := range v {
		v[i] = gen.Draw(t, label)
	}
	return v
}

// The merit window never exceeds its size and its reference value is the
// maximum over the most recent entries.
func TestMeritWindowProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 8).Draw(t, "size")
		values := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 50).Draw(t, "values")

		ctx := new(sqpCtx)
		for _, v := range values {
			ctx.pushMerit(v, size)
		}
		if len(ctx.merit) > size {
			t.Fatalf("window overflow: %d > %d", len(ctx.merit), size)
		}

		lo := len(values) - size
		if lo < 0 {
			lo = 0
		}
		want := values[lo]
		for _, v := range values[lo:] {
			if v > want {
				want = v
			}
		}
		if got := ctx.maxMerit(); got != want {
			t.Fatalf("reference mismatch: %e != %e", got, want)
		}
	})
}

// Shifting the diagonal by the Gershgorin estimate drives the worst-case
// eigenvalue bound to zero.
func TestGershgorinProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		b := make([]float64, n*n)
		gen := rapid.Float64Range(-10, 10)
		for i := 0; i < n; i++ {
			for j := 0; j <= i; j++ {
				v := gen.Draw(t, "elem")
				b[i*n+j], b[j*n+i] = v, v
			}
		}

		reg := gershgorin(n, b)
		if reg < 0 {
			t.Fatalf("negative shift %e", reg)
		}
		for i := 0; i < n; i++ {
			b[i*n+i] += reg
		}
		if rest := gershgorin(n, b); rest > 1e-9 {
			t.Fatalf("bound still negative after shift: %e", rest)
		}
	})
}

// The damped BFGS update preserves exact symmetry and keeps positive
// curvature along the step: 𝐬ᵀ𝐁⁺𝐬 = 𝐬ᵀ𝐲' > 0 after damping.
func TestBFGSUpdateProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		d := newTestDriver(n, 0)
		ctx := &d.workspace.sqpCtx
		ctx.iter = 1

		// 𝐁 = 𝐌ᵀ𝐌 + 𝐈 is symmetric positive definite
		m := drawVec(t, n*n, "m")
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				var s float64
				for k := 0; k < n; k++ {
					s += m[k*n+i] * m[k*n+j]
				}
				if i == j {
					s += one
				}
				ctx.bk[i*n+j] = s
			}
		}

		sign := rapid.Float64Range(0.2, 5)
		for i := 0; i < n; i++ {
			step := sign.Draw(t, "step")
			if rapid.Bool().Draw(t, "neg") {
				step = -step
			}
			d.location.x[i] = step
		}
		copy(ctx.gLag, drawVec(t, n, "glag"))

		sBs := zero
		for i := 0; i < n; i++ {
			sBs += d.location.x[i] * ddot(n, ctx.bk[i*n:(i+1)*n], 1, d.location.x, 1)
		}

		d.updateBFGS()

		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if ctx.bk[i*n+j] != ctx.bk[j*n+i] {
					t.Fatalf("asymmetry at (%d,%d)", i, j)
				}
			}
		}

		sB2s := zero
		for i := 0; i < n; i++ {
			sB2s += d.location.x[i] * ddot(n, ctx.bk[i*n:(i+1)*n], 1, d.location.x, 1)
		}
		// damping guarantees at least a fifth of the previous curvature
		if sB2s < 0.2*sBs*(1-1e-9)-1e-9 {
			t.Fatalf("curvature lost: %e < 0.2 * %e", sB2s, sBs)
		}
	})
}

// The penalty weight never decreases and dominates every multiplier of the
// subproblem that triggered its update.
func TestPenaltyProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.IntRange(1, 5).Draw(t, "m")
		d := newTestDriver(2, m)
		ctx := &d.workspace.sqpCtx

		rounds := rapid.IntRange(1, 10).Draw(t, "rounds")
		for r := 0; r < rounds; r++ {
			copy(ctx.sol.LamA, drawVec(t, m, "lam"))
			before := ctx.sigma
			d.updatePenalty()
			if ctx.sigma < before {
				t.Fatalf("penalty decreased: %e < %e", ctx.sigma, before)
			}
			for _, lam := range ctx.sol.LamA {
				if math.Abs(lam) > ctx.sigma {
					t.Fatalf("penalty %e below multiplier %e", ctx.sigma, lam)
				}
			}
		}
	})
}

// Accepted step lengths are always powers of the backtracking factor, and
// an unforced acceptance satisfies the non-monotone Armijo condition.
func TestLineSearchProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(t, "n")
		d := newTestDriver(n, 0)
		spec, ctx, loc := &d.optimizer.sqpSpec, &d.workspace.sqpCtx, d.location

		spec.Eval = &FuncEvaluator{
			N: n,
			F: func(x []float64) float64 {
				return ddot(n, x, 1, x, 1)
			},
		}

		copy(loc.x, drawVec(t, n, "x"))
		copy(ctx.sol.X, drawVec(t, n, "p"))
		loc.f = spec.Eval.Objective(loc.x)
		ctx.pushMerit(loc.f, spec.Line.MeritWindow)

		// merit gradient term 𝜵𝒇ᵀ𝐩 of f = ‖x‖²
		l1dir := 2 * ddot(n, loc.x, 1, ctx.sol.X, 1)

		tt, trials, forced := d.lineSearch(l1dir)

		want := math.Pow(spec.Line.Backtrack, float64(trials-1))
		if math.Abs(tt-want) > 1e-15 {
			t.Fatalf("step %e is not a backtracking power %e", tt, want)
		}
		if trials > spec.Line.MaxTrials {
			t.Fatalf("trial budget exceeded: %d", trials)
		}
		if !forced {
			if ctx.fCand > ctx.maxMerit()+tt*spec.Line.Armijo*l1dir+1e-12 {
				t.Fatal("accepted step violates the descent condition")
			}
		}
	})
}

// Multipliers move by a convex combination toward the subproblem duals,
// so each coordinate stays within the interval spanned by old and new.
func TestMultiplierUpdateProp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(t, "n")
		m := rapid.IntRange(1, 4).Draw(t, "m")
		d := newTestDriver(n, m)
		ctx := &d.workspace.sqpCtx

		copy(ctx.mu, drawVec(t, m, "mu"))
		copy(ctx.muX, drawVec(t, n, "mux"))
		copy(ctx.sol.LamA, drawVec(t, m, "lamA"))
		copy(ctx.sol.LamX, drawVec(t, n, "lamX"))
		muOld := append([]float64(nil), ctx.mu...)

		tt := rapid.Float64Range(0, 1).Draw(t, "t")
		d.acceptStep(tt)

		for j := 0; j < m; j++ {
			lo := math.Min(muOld[j], ctx.sol.LamA[j])
			hi := math.Max(muOld[j], ctx.sol.LamA[j])
			if ctx.mu[j] < lo-1e-12 || ctx.mu[j] > hi+1e-12 {
				t.Fatalf("multiplier %d escaped [%e,%e]: %e", j, lo, hi, ctx.mu[j])
			}
		}
	})
}
