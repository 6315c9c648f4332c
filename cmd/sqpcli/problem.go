package main

import (
	"fmt"
	"math"
	"os"

	"github.com/Knetic/govaluate"
	"github.com/curioloop/sqp/numdiff"
	"github.com/curioloop/sqp/sqpmethod"
	"gopkg.in/yaml.v3"
)

// problemFile is the YAML schema of one NLP problem.
type problemFile struct {
	Variables   []variableSpec   `yaml:"variables"`
	Objective   string           `yaml:"objective"`
	Constraints []constraintSpec `yaml:"constraints"`
	Options     optionSpec       `yaml:"options"`
}

// variableSpec declares one variable with its initial value and
// optional bounds. Absent bounds are unbounded.
type variableSpec struct {
	Name    string   `yaml:"name"`
	Initial float64  `yaml:"initial"`
	Lower   *float64 `yaml:"lower"`
	Upper   *float64 `yaml:"upper"`
}

// constraintSpec declares one general constraint expression with its
// bounds. Setting lower == upper declares an equality.
type constraintSpec struct {
	Expr  string   `yaml:"expr"`
	Lower *float64 `yaml:"lower"`
	Upper *float64 `yaml:"upper"`
}

type optionSpec struct {
	MaxIterations   int     `yaml:"max_iterations"`
	PrimalTolerance float64 `yaml:"primal_tolerance"`
	DualTolerance   float64 `yaml:"dual_tolerance"`
}

func loadProblemFile(path string) (*problemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	pf := new(problemFile)
	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("failed to parse problem file: %w", err)
	}
	return pf, nil
}

// exprFuncs extends the govaluate operator set with the usual scalar
// math functions.
var exprFuncs = map[string]govaluate.ExpressionFunction{
	"sin":  func(args ...interface{}) (interface{}, error) { return math.Sin(toFloat(args[0])), nil },
	"cos":  func(args ...interface{}) (interface{}, error) { return math.Cos(toFloat(args[0])), nil },
	"tan":  func(args ...interface{}) (interface{}, error) { return math.Tan(toFloat(args[0])), nil },
	"exp":  func(args ...interface{}) (interface{}, error) { return math.Exp(toFloat(args[0])), nil },
	"log":  func(args ...interface{}) (interface{}, error) { return math.Log(toFloat(args[0])), nil },
	"sqrt": func(args ...interface{}) (interface{}, error) { return math.Sqrt(toFloat(args[0])), nil },
	"abs":  func(args ...interface{}) (interface{}, error) { return math.Abs(toFloat(args[0])), nil },
	"pow": func(args ...interface{}) (interface{}, error) {
		return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
	},
	"min": func(args ...interface{}) (interface{}, error) {
		return math.Min(toFloat(args[0]), toFloat(args[1])), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		return math.Max(toFloat(args[0]), toFloat(args[1])), nil
	},
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return math.NaN()
	}
}

// exprFunc evaluates one parsed expression over the problem variables.
// The parameter map is reused, so an exprFunc must not be shared between
// goroutines.
type exprFunc struct {
	expr   *govaluate.EvaluableExpression
	names  []string
	params map[string]interface{}
}

func parseExpr(expr string, names []string) (*exprFunc, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, exprFuncs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", expr, err)
	}
	params := make(map[string]interface{}, len(names))
	for _, name := range names {
		params[name] = 0.0
	}
	return &exprFunc{expr: parsed, names: names, params: params}, nil
}

// eval evaluates the expression at x. An evaluation failure or a
// non-numeric result panics; the solver recovers evaluation panics and
// reports them as a bad argument.
func (f *exprFunc) eval(x []float64) float64 {
	for i, name := range f.names {
		f.params[name] = x[i]
	}
	v, err := f.expr.Evaluate(f.params)
	if err != nil {
		panic(err)
	}
	r, ok := v.(float64)
	if !ok {
		panic(fmt.Errorf("expression did not return a number: %T", v))
	}
	return r
}

// buildProblem translates the YAML schema into a solver problem with
// finite-difference derivatives, returning the initial iterate alongside.
func buildProblem(pf *problemFile, method numdiff.Method) (*sqpmethod.Problem, []float64, error) {

	n, m := len(pf.Variables), len(pf.Constraints)
	if n == 0 {
		return nil, nil, fmt.Errorf("problem declares no variables")
	}
	if pf.Objective == "" {
		return nil, nil, fmt.Errorf("problem declares no objective")
	}

	names := make([]string, n)
	x0 := make([]float64, n)
	seen := make(map[string]bool, n)
	for i, v := range pf.Variables {
		if v.Name == "" {
			return nil, nil, fmt.Errorf("variable %d has no name", i)
		}
		if seen[v.Name] {
			return nil, nil, fmt.Errorf("duplicate variable %q", v.Name)
		}
		seen[v.Name] = true
		names[i] = v.Name
		x0[i] = v.Initial
	}

	bound := func(lower, upper *float64) sqpmethod.Bound {
		b := sqpmethod.Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
		if lower != nil {
			b.Lower = *lower
		}
		if upper != nil {
			b.Upper = *upper
		}
		return b
	}

	var bndX []sqpmethod.Bound
	diffBnd := make([]numdiff.Bound, n)
	for i, v := range pf.Variables {
		b := bound(v.Lower, v.Upper)
		diffBnd[i] = numdiff.Bound{Lower: b.Lower, Upper: b.Upper}
		if v.Lower != nil || v.Upper != nil {
			if bndX == nil {
				bndX = make([]sqpmethod.Bound, n)
				for k := range bndX {
					bndX[k] = sqpmethod.Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
				}
			}
			bndX[i] = b
		}
	}

	obj, err := parseExpr(pf.Objective, names)
	if err != nil {
		return nil, nil, err
	}

	bndG := make([]sqpmethod.Bound, m)
	cons := make([]*exprFunc, m)
	for j, c := range pf.Constraints {
		if cons[j], err = parseExpr(c.Expr, names); err != nil {
			return nil, nil, err
		}
		bndG[j] = bound(c.Lower, c.Upper)
	}

	eval := &sqpmethod.FuncEvaluator{
		N: n, M: m,
		F: obj.eval,
		Diff: numdiff.Spec{
			Method: method,
			Bounds: diffBnd,
		},
	}
	if m > 0 {
		eval.G = func(x, c []float64) {
			for j, con := range cons {
				c[j] = con.eval(x)
			}
		}
	}

	prob := &sqpmethod.Problem{
		N: n, M: m,
		Eval: eval,
		Stop: sqpmethod.Termination{
			MaxIterations:   pf.Options.MaxIterations,
			PrimalTolerance: pf.Options.PrimalTolerance,
			DualTolerance:   pf.Options.DualTolerance,
		},
		BndX: bndX,
		BndG: bndG,
	}
	if m == 0 {
		prob.BndG = nil
	}
	return prob, x0, nil
}
