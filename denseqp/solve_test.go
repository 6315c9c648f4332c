// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denseqp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func inf() float64 { return math.Inf(1) }

func TestUnconstrainedFastPath(t *testing.T) {

	// minimize ½‖x‖² - x₁ - 2x₂ → x = (1, 2)
	p := &Problem{
		N: 2, M: 0,
		P: []float64{1, 0, 0, 1},
		Q: []float64{-1, -2},
	}

	s := new(Solver)
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.X[0], 1e-12)
	require.InDelta(t, 2.0, res.X[1], 1e-12)
	require.Zero(t, res.NumIter)
}

func TestEqualityConstrained(t *testing.T) {

	// minimize ½‖x‖² subject to x₁ + x₂ = 1 → x = (½, ½), dual ν = -½
	p := &Problem{
		N: 2, M: 1,
		P:   []float64{1, 0, 0, 1},
		Q:   []float64{0, 0},
		A:   []float64{1, 1},
		LbA: []float64{1},
		UbA: []float64{1},
	}

	s := new(Solver)
	s.Opts.Polish = true
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.InDelta(t, 0.5, res.X[0], 1e-8)
	require.InDelta(t, 0.5, res.X[1], 1e-8)
	require.InDelta(t, -0.5, res.LamA[0], 1e-8)
}

func TestBoxConstrained(t *testing.T) {

	// minimize ½‖x‖² - 3x₁ - 3x₂ with x ≤ (1, 5):
	// x₁ pins at its upper bound, x₂ stays interior.
	p := &Problem{
		N: 2, M: 0,
		P:   []float64{1, 0, 0, 1},
		Q:   []float64{-3, -3},
		LbX: []float64{math.Inf(-1), math.Inf(-1)},
		UbX: []float64{1, 5},
	}

	s := new(Solver)
	s.Opts.Polish = true
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.X[0], 1e-8)
	require.InDelta(t, 3.0, res.X[1], 1e-8)
	// stationarity: x₁ - 3 + λ = 0 at x₁ = 1 gives λ = 2, positive at an upper bound
	require.InDelta(t, 2.0, res.LamX[0], 1e-8)
	require.InDelta(t, 0.0, res.LamX[1], 1e-8)
}

func TestLowerActiveDualSign(t *testing.T) {

	// minimize ½(x-2)² with x ≥ 3: lower-active duals are negative.
	p := &Problem{
		N: 1, M: 0,
		P:   []float64{1},
		Q:   []float64{-2},
		LbX: []float64{3},
		UbX: []float64{inf()},
	}

	s := new(Solver)
	s.Opts.Polish = true
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.InDelta(t, 3.0, res.X[0], 1e-8)
	require.InDelta(t, -1.0, res.LamX[0], 1e-8)
}

func TestInequalityInactive(t *testing.T) {

	// loose constraint rows leave the unconstrained minimizer untouched
	p := &Problem{
		N: 2, M: 1,
		P:   []float64{2, 0, 0, 2},
		Q:   []float64{-2, -4},
		A:   []float64{1, 1},
		LbA: []float64{math.Inf(-1)},
		UbA: []float64{100},
	}

	s := new(Solver)
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.X[0], 1e-7)
	require.InDelta(t, 2.0, res.X[1], 1e-7)
	require.InDelta(t, 0.0, res.LamA[0], 1e-7)
}

func TestPolishTightens(t *testing.T) {

	p := &Problem{
		N: 2, M: 1,
		P:   []float64{1, 0, 0, 1},
		Q:   []float64{-1, -1},
		A:   []float64{1, 1},
		LbA: []float64{math.Inf(-1)},
		UbA: []float64{1},
	}

	s := new(Solver)
	s.Opts.Polish = true
	res, err := s.Solve(p, nil)
	require.NoError(t, err)
	require.True(t, res.Polished)
	require.InDelta(t, 0.5, res.X[0], 1e-12)
	require.InDelta(t, 0.5, res.X[1], 1e-12)
	require.InDelta(t, 0.5, res.LamA[0], 1e-12)
}

func TestWarmStart(t *testing.T) {

	p := &Problem{
		N: 2, M: 1,
		P:   []float64{2, 0.5, 0.5, 1},
		Q:   []float64{1, 1},
		A:   []float64{1, -1},
		LbA: []float64{-0.1},
		UbA: []float64{0.1},
	}

	s := new(Solver)
	cold, err := s.Solve(p, nil)
	require.NoError(t, err)

	warm, err := s.Solve(p, cold.X)
	require.NoError(t, err)
	require.InDelta(t, cold.X[0], warm.X[0], 1e-7)
	require.InDelta(t, cold.X[1], warm.X[1], 1e-7)
}

func TestCrossedBounds(t *testing.T) {

	p := &Problem{
		N: 1, M: 1,
		P:   []float64{1},
		Q:   []float64{0},
		A:   []float64{1},
		LbA: []float64{2},
		UbA: []float64{1},
	}

	s := new(Solver)
	_, err := s.Solve(p, nil)
	require.ErrorContains(t, err, "bounds crossed")
}

func TestIndefinite(t *testing.T) {

	p := &Problem{
		N: 2, M: 0,
		P:   []float64{1, 0, 0, -1},
		Q:   []float64{0, 0},
		LbX: []float64{-1, -1},
		UbX: []float64{1, 1},
	}

	s := new(Solver)
	_, err := s.Solve(p, nil)
	require.ErrorContains(t, err, "not positive definite")

	// the unconstrained fast path rejects it as well
	p.LbX, p.UbX = nil, nil
	_, err = s.Solve(p, nil)
	require.ErrorContains(t, err, "not positive definite")
}

func TestEqualityAndBox(t *testing.T) {

	// minimize ½‖x‖² + x₃ subject to x₁+x₂+x₃ = 1, 0 ≤ x ≤ 0.6
	p := &Problem{
		N: 3, M: 1,
		P:   []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Q:   []float64{0, 0, 1},
		A:   []float64{1, 1, 1},
		LbA: []float64{1},
		UbA: []float64{1},
		LbX: []float64{0, 0, 0},
		UbX: []float64{0.6, 0.6, 0.6},
	}

	s := new(Solver)
	s.Opts.Polish = true
	res, err := s.Solve(p, nil)
	require.NoError(t, err)

	// stationarity along the feasible manifold gives x₁ = x₂ = ½, x₃ = 0
	require.InDelta(t, 0.5, res.X[0], 1e-7)
	require.InDelta(t, 0.5, res.X[1], 1e-7)
	require.InDelta(t, 0.0, res.X[2], 1e-7)

	sum := res.X[0] + res.X[1] + res.X[2]
	require.InDelta(t, 1.0, sum, 1e-7)
}
