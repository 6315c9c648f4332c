// Package main is the entry point for the sqpcli binary.
// It solves constrained nonlinear programs described by YAML problem files.
package main

import (
	"fmt"
	"os"

	"github.com/curioloop/sqp/numdiff"
	"github.com/curioloop/sqp/sqpmethod"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for sqpcli
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqpcli",
		Short: "Constrained nonlinear optimization from the command line",
		Long: `Solve smooth constrained nonlinear programs with a sequential
quadratic programming method and a dense QP backend.

Problems are described by YAML files holding the variables with their
bounds and initial values, an objective expression and optional
constraint expressions with bounds. Derivatives are estimated by
finite differences.

Example:
  sqpcli solve problem.yaml --maxiter 100 -v`,
	}
	rootCmd.AddCommand(newSolveCmd())
	return rootCmd
}

func newSolveCmd() *cobra.Command {
	solveCmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Solve one NLP problem file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().IntP("maxiter", "i", 0, "Iteration limit override")
	solveCmd.Flags().Float64P("tol", "t", 0, "Primal and dual tolerance override")
	solveCmd.Flags().StringP("diff", "d", "central", "Finite difference method (forward, central)")
	solveCmd.Flags().CountP("verbose", "v", "Increase output (repeat for more)")
	return solveCmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	maxIter, err := cmd.Flags().GetInt("maxiter")
	if err != nil {
		return err
	}
	tol, err := cmd.Flags().GetFloat64("tol")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetString("diff")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return err
	}

	var method numdiff.Method
	switch diff {
	case "forward":
		method = numdiff.Forward
	case "central":
		method = numdiff.Central
	default:
		return fmt.Errorf("unknown finite difference method %q", diff)
	}

	pf, err := loadProblemFile(args[0])
	if err != nil {
		return err
	}
	if maxIter > 0 {
		pf.Options.MaxIterations = maxIter
	}
	if tol > 0 {
		pf.Options.PrimalTolerance = tol
		pf.Options.DualTolerance = tol
	}

	prob, x0, err := buildProblem(pf, method)
	if err != nil {
		return err
	}

	logger := &sqpmethod.Logger{Level: verbosity(verbose), Msg: cmd.OutOrStdout()}
	opt, err := prob.New(logger)
	if err != nil {
		return err
	}

	res := opt.Fit(x0, opt.Init())
	report(cmd, pf, res)
	if !res.OK {
		return fmt.Errorf("solve ended with status %q", res.Status)
	}
	return nil
}

func verbosity(verbose int) sqpmethod.LogLevel {
	switch verbose {
	case 0:
		return sqpmethod.LogLast
	case 1:
		return sqpmethod.LogEval
	case 2:
		return sqpmethod.LogTrace
	}
	return sqpmethod.LogVerbose
}

func report(cmd *cobra.Command, pf *problemFile, res *sqpmethod.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status     : %s\n", res.Status)
	fmt.Fprintf(out, "iterations : %d\n", res.NumIter)
	fmt.Fprintf(out, "objective  : %.9e\n", res.F)
	for i, v := range pf.Variables {
		fmt.Fprintf(out, "  %-12s = %.9e\n", v.Name, res.X[i])
	}
	for j, c := range pf.Constraints {
		fmt.Fprintf(out, "  %-12s = %.9e (mu %.3e)\n", c.Expr, res.C[j], res.MuG[j])
	}
}
