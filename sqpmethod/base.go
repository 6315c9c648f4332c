// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

const (
	zero = 0.0
	one  = 1.0
)

// Constraint ranges narrower than eqTol are treated as equalities
// when measuring primal infeasibility.
const eqTol = 1e-20

// Status reports how a solve terminated.
type Status int

const (
	// Converged primal and dual infeasibility dropped below tolerance.
	Converged Status = iota
	// ExceedMaxIter the iteration limit was reached before convergence.
	ExceedMaxIter
	// Aborted the per-iteration callback requested a stop.
	Aborted
	// QPFault the QP solver failed on a subproblem.
	QPFault
	// BadArgument an evaluation panicked or produced unusable values.
	BadArgument
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case ExceedMaxIter:
		return "max iterations"
	case Aborted:
		return "aborted"
	case QPFault:
		return "qp failure"
	case BadArgument:
		return "bad argument"
	}
	return "unknown"
}

type sqpSpec struct {
	// the number of variables
	n int
	// the number of general constraints
	m int
	Problem
	// the resolved QP backend, defaulted in New when Problem.QP is nil.
	qpSolver QPSolver
	logger   Logger
}

// sqpLoc holds the current linearization point.
type sqpLoc struct {
	f float64
	x []float64 // n
	c []float64 // m
	g []float64 // n : ∇𝒇(𝐱)
	a []float64 // m×n : 𝜵𝒄(𝐱) row-major
}

type sqpCtx struct {
	// penalty weight σ of the L1 merit function, non-decreasing.
	sigma float64
	// sliding window of recent merit values, FIFO eviction.
	merit []float64
	// hessian approximation 𝐁ᵏ, n×n dense symmetric.
	bk []float64
	// previous iterate and line-search candidate.
	xOld  []float64 // n
	xCand []float64 // n
	fCand float64
	cCand []float64 // m
	// multipliers of the general constraints and the variable bounds.
	mu  []float64 // m
	muX []float64 // n
	// lagrangian gradient at the current and the previous iterate.
	gLag    []float64 // n
	gLagOld []float64 // n
	// accepted QP step and BFGS scratch.
	p  []float64 // n
	sk []float64 // n
	yk []float64 // n
	qk []float64 // n
	// subproblem buffers, reused across iterations.
	qp  Subproblem
	sol Solution
	// iteration counter.
	iter int
	// number of line searches ended by the trial budget.
	forced int
	// number of negative-curvature detections.
	indef int
	// whether ctx.p holds a previous step usable as QP warm start.
	warm bool
	// QP solver error, set when the run ends with QPFault.
	err error
}

func (c *sqpCtx) init(n, m int) {
	c.merit = make([]float64, 0, 4)
	c.bk = make([]float64, n*n)
	c.xOld = make([]float64, n)
	c.xCand = make([]float64, n)
	c.cCand = make([]float64, m)
	c.mu = make([]float64, m)
	c.muX = make([]float64, n)
	c.gLag = make([]float64, n)
	c.gLagOld = make([]float64, n)
	c.p = make([]float64, n)
	c.sk = make([]float64, n)
	c.yk = make([]float64, n)
	c.qk = make([]float64, n)
	c.qp = Subproblem{
		N: n, M: m,
		G:   make([]float64, n),
		LbA: make([]float64, m),
		UbA: make([]float64, m),
		LbX: make([]float64, n),
		UbX: make([]float64, n),
	}
	c.sol = Solution{
		X:    make([]float64, n),
		LamA: make([]float64, m),
		LamX: make([]float64, n),
	}
}

// pushMerit appends v to the merit window, evicting the oldest value
// once the window reaches its configured size.
func (c *sqpCtx) pushMerit(v float64, size int) {
	if len(c.merit) >= size {
		over := len(c.merit) - size + 1
		copy(c.merit, c.merit[over:])
		c.merit = c.merit[:size-1]
	}
	c.merit = append(c.merit, v)
}

// maxMerit returns the largest value in the window.
func (c *sqpCtx) maxMerit() float64 {
	m := c.merit[0]
	for _, v := range c.merit[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
