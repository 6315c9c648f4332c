// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denseqp

import "math"

// ddot computes the dot product of two unit-stride vectors.
func ddot(n int, dx, dy []float64) (dot float64) {
	if uint(n) > uint(len(dx)) || uint(n) > uint(len(dy)) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dot += dx[i] * dy[i]
	}
	return
}

// dzero fills vector x with zero.
func dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}

// infNorm computes the infinity norm of a vector.
func infNorm(x []float64) (norm float64) {
	for _, v := range x {
		if a := math.Abs(v); a > norm {
			norm = a
		}
	}
	return
}

// clamp projects v onto the interval [l, u].
func clamp(v, l, u float64) float64 {
	return math.Min(math.Max(v, l), u)
}

// symMul computes y = 𝐀x for a dense n×n row-major matrix.
func symMul(n int, a, x, y []float64) {
	for i := 0; i < n; i++ {
		y[i] = ddot(n, a[i*n:(i+1)*n], x)
	}
}

// cholFactor computes the lower Cholesky factor of a symmetric positive
// definite n×n row-major matrix in place (lower triangle), returning false
// when a non-positive pivot is met.
func cholFactor(n int, a []float64) bool {
	for j := 0; j < n; j++ {
		d := a[j*n+j] - ddot(j, a[j*n:], a[j*n:])
		if d <= zero {
			return false
		}
		d = math.Sqrt(d)
		a[j*n+j] = d
		inv := one / d
		for i := j + 1; i < n; i++ {
			a[i*n+j] = (a[i*n+j] - ddot(j, a[i*n:], a[j*n:])) * inv
		}
	}
	return true
}

// cholSolve solves 𝐋𝐋ᵀx = b given the factor from cholFactor,
// overwriting b with the solution.
func cholSolve(n int, a, b []float64) {
	for i := 0; i < n; i++ {
		b[i] = (b[i] - ddot(i, a[i*n:], b)) / a[i*n+i]
	}
	for i := n - 1; i >= 0; i-- {
		s := b[i]
		for j := i + 1; j < n; j++ {
			s -= a[j*n+i] * b[j]
		}
		b[i] = s / a[i*n+i]
	}
}

// luFactor computes an LU factorization with partial pivoting of a dense
// n×n row-major matrix in place, returning false on a singular pivot.
func luFactor(n int, a []float64, piv []int) bool {
	for k := 0; k < n; k++ {
		p, best := k, math.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(a[i*n+k]); v > best {
				p, best = i, v
			}
		}
		if best == zero {
			return false
		}
		piv[k] = p
		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
			}
		}
		inv := one / a[k*n+k]
		for i := k + 1; i < n; i++ {
			m := a[i*n+k] * inv
			a[i*n+k] = m
			if m != zero {
				for j := k + 1; j < n; j++ {
					a[i*n+j] -= m * a[k*n+j]
				}
			}
		}
	}
	return true
}

// luSolve solves 𝐀x = b given the factorization from luFactor,
// overwriting b with the solution.
func luSolve(n int, a []float64, piv []int, b []float64) {
	for k := 0; k < n; k++ {
		if p := piv[k]; p != k {
			b[k], b[p] = b[p], b[k]
		}
		for i := k + 1; i < n; i++ {
			b[i] -= a[i*n+k] * b[k]
		}
	}
	for i := n - 1; i >= 0; i-- {
		s := b[i]
		for j := i + 1; j < n; j++ {
			s -= a[i*n+j] * b[j]
		}
		b[i] = s / a[i*n+i]
	}
}
