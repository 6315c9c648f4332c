package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/curioloop/sqp/numdiff"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const quadProblem = `
variables:
  - name: x
    initial: 2.0
  - name: y
    initial: 2.0
objective: "(x-1)*(x-1) + (y-2)*(y-2)"
`

const constrainedProblem = `
variables:
  - name: x
    initial: 2.0
    lower: 0.0
  - name: y
    initial: 2.0
    lower: 0.0
objective: "x*x + y*y"
constraints:
  - expr: "x + y"
    lower: 1.0
    upper: 1.0
options:
  max_iterations: 100
`

func writeProblem(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestBuildProblem(t *testing.T) {

	pf := new(problemFile)
	require.NoError(t, yaml.Unmarshal([]byte(constrainedProblem), pf))

	prob, x0, err := buildProblem(pf, numdiff.Central)
	require.NoError(t, err)
	require.Equal(t, 2, prob.N)
	require.Equal(t, 1, prob.M)
	require.Equal(t, []float64{2, 2}, x0)
	require.Equal(t, 100, prob.Stop.MaxIterations)

	require.Len(t, prob.BndX, 2)
	require.Equal(t, 0.0, prob.BndX[0].Lower)
	require.True(t, math.IsInf(prob.BndX[0].Upper, 1))
	require.Equal(t, 1.0, prob.BndG[0].Lower)
	require.Equal(t, 1.0, prob.BndG[0].Upper)

	c := make([]float64, 1)
	prob.Eval.Constraints([]float64{0.25, 0.5}, c)
	require.InDelta(t, 0.75, c[0], 1e-15)
}

func TestBuildProblemErrors(t *testing.T) {

	cases := map[string]string{
		"no variables": `
objective: "1"
`,
		"no objective": `
variables:
  - name: x
`,
		"duplicate variable": `
variables:
  - name: x
  - name: x
objective: "x"
`,
		"broken expression": `
variables:
  - name: x
objective: "x +* 1"
`,
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			pf := new(problemFile)
			require.NoError(t, yaml.Unmarshal([]byte(text), pf))
			_, _, err := buildProblem(pf, numdiff.Central)
			require.Error(t, err)
		})
	}
}

func TestSolveUnconstrained(t *testing.T) {

	path := writeProblem(t, quadProblem)

	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"solve", path})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "status     : converged")
	require.Contains(t, out.String(), "x")
}

func TestSolveConstrained(t *testing.T) {

	path := writeProblem(t, constrainedProblem)

	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"solve", path, "-v", "--diff", "central"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "status     : converged")
	// minimizer of x²+y² on x+y=1 is (0.5, 0.5)
	require.Contains(t, out.String(), "5.0000")
}

func TestSolveBadFlags(t *testing.T) {

	path := writeProblem(t, quadProblem)

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"solve", path, "--diff", "complex"})
	require.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"solve", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, cmd.Execute())
}
