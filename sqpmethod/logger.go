// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqpmethod

import (
	"fmt"
	"io"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the termination message
	LogLast LogLevel = 0
	// LogEval print the iteration table (header plus one row per iteration)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except n-vectors
	LogTrace LogLevel = 99
	// LogVerbose print details of every iteration including x, p and the QP inputs
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solver.
// Note the writer must be thread-safe when workspaces share one logger.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// vec prints an n-vector six entries per line, for verbose dumps.
func (l *Logger) vec(name string, v []float64) {
	l.log("%s = ", name)
	for i, x := range v {
		l.log("%.2e ", x)
		if (i+1)%6 == 0 {
			l.log("\n     ")
		}
	}
	l.log("\n")
}
