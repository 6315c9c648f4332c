// Package numdiff estimates derivatives of mathematical functions by
// finite differences, with step sizes adjusted to stay within optional
// variable bounds.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

// Bound limits the evaluation range of one variable. Absent sides are ±Inf.
type Bound struct {
	Lower, Upper float64
}

// Spec configures finite-difference derivative estimation.
// The zero value selects forward differences with automatic step sizes.
type Spec struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute the absolute step size as
	// h = RelStep * sign(x) * abs(x). When neither RelStep nor AbsStep
	// is provided the step is h = eps * sign(x) * max(1, abs(x)) with
	// eps selected per method.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// Takes precedence over RelStep. For Central the sign is ignored.
	AbsStep float64
	// Lower and upper bounds on the variables.
	// Use it to limit the range of function evaluation.
	Bounds []Bound
}

// Gradient estimates 𝜵𝒇(𝐱) of a scalar function into grad, length len(x).
// The argument slice x is restored before returning.
func (s *Spec) Gradient(f func(x []float64) float64, x, grad []float64) error {
	return s.Jacobian(1, func(x, y []float64) { y[0] = f(x) }, x, grad)
}

// Jacobian estimates the m×len(x) row-major Jacobian of a vector function
// into jac: jac[j*n+i] holds ∂𝒇ⱼ/∂𝐱ᵢ. The argument slice x is restored
// before returning.
func (s *Spec) Jacobian(m int, fn func(x, y []float64), x, jac []float64) error {
	n := len(x)

	switch {
	case n <= 0 || m <= 0:
		return errors.New("negative dimensions")
	case s.Method != Forward && s.Method != Central:
		return errors.New("unknown method")
	case fn == nil:
		return errors.New("object function is required")
	case len(jac) != n*m:
		return errors.New("invalid jacobian dimensions")
	}

	bnd := false
	if s.Bounds != nil {
		if len(s.Bounds) != n {
			return errors.New("invalid bound dimension")
		}
		for i, b := range s.Bounds {
			if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
				return errors.New("invalid bound range")
			}
			if x[i] < b.Lower || x[i] > b.Upper {
				return errors.New("x violates bound constraints")
			}
			bnd = bnd || !math.IsInf(b.Lower, -1) || !math.IsInf(b.Upper, 1)
		}
	}

	h := s.absoluteStep(x)
	oneSide := s.adjustToBounds(x, h, bnd)

	if s.Method == Central {
		s.approxCentral(fn, x, h, oneSide, m, jac)
	} else {
		s.approxForward(fn, x, h, m, jac)
	}
	return nil
}

// absoluteStep resolves the per-variable step, falling back to the
// machine-precision based default whenever the configured step vanishes
// in x + h.
func (s *Spec) absoluteStep(x []float64) []float64 {
	var eps float64
	if s.Method == Central {
		eps = cubeEps
	} else {
		eps = sqrtEps
	}

	h := make([]float64, len(x))
	abs, rel := s.AbsStep, s.RelStep
	for i, v := range x {
		step := abs
		if step == 0 && rel != 0 {
			step = math.Copysign(rel, v) * math.Abs(v)
		}
		if step == 0 || (v+step)-v == 0 {
			step = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = step
	}
	return h
}

// adjustToBounds reshapes the steps so every evaluation point stays inside
// the bounds. For Central, variables too close to a bound degrade to a
// one-sided second order scheme.
func (s *Spec) adjustToBounds(x, h []float64, bnd bool) []bool {
	var oneSide []bool
	if s.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
		oneSide = make([]bool, len(x))
	}

	if !bnd {
		return oneSide
	}

	if s.Method == Forward {
		for i, v := range x {
			lb, ub := s.Bounds[i].Lower, s.Bounds[i].Upper
			ld, ud := v-lb, ub-v
			violated := v+h[i] < lb || v+h[i] > ub
			fitting := math.Abs(h[i]) < math.Max(ld, ud)
			if violated && fitting {
				h[i] = -h[i]
			} else if !fitting {
				if ud >= ld {
					h[i] = ud
				} else {
					h[i] = -ld
				}
			}
		}
		return oneSide
	}

	for i, v := range x {
		lb, ub := s.Bounds[i].Lower, s.Bounds[i].Upper
		ld, ud := v-lb, ub-v
		central := ld >= h[i] && ud >= h[i]
		if !central {
			if ud >= ld {
				h[i] = math.Min(h[i], 0.5*ud)
			} else {
				h[i] = -math.Min(h[i], 0.5*ld)
			}
			oneSide[i] = true
			if minDist := math.Min(ud, ld); math.Abs(h[i]) <= minDist {
				h[i] = minDist
				oneSide[i] = false
			}
		}
	}
	return oneSide
}

func (s *Spec) approxForward(fn func(x, y []float64), x, h []float64, m int, jac []float64) {
	n := len(x)
	f0, fx := make([]float64, m), make([]float64, m)
	fn(x, f0)
	for i, step := range h {
		t := x[i]
		x[i] = t + step
		fn(x, fx)
		d := 1.0 / step
		for j := range f0 {
			jac[j*n+i] = (fx[j] - f0[j]) * d
		}
		x[i] = t
	}
}

func (s *Spec) approxCentral(fn func(x, y []float64), x, h []float64, oneSide []bool, m int, jac []float64) {
	n := len(x)
	f0 := make([]float64, m)
	f1, f2 := make([]float64, m), make([]float64, m)
	fn(x, f0)
	for i, step := range h {
		t := x[i]
		d := 1.0 / (2 * step)
		if oneSide[i] {
			x[i] = t + step
			fn(x, f1)
			x[i] = t + 2*step
			fn(x, f2)
			for j := range f0 {
				jac[j*n+i] = (4*f1[j] - 3*f0[j] - f2[j]) * d
			}
		} else {
			x[i] = t - step
			fn(x, f1)
			x[i] = t + step
			fn(x, f2)
			for j := range f0 {
				jac[j*n+i] = (f2[j] - f1[j]) * d
			}
		}
		x[i] = t
	}
}
