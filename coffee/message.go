// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffee

import (
	"fmt"
	"strings"
	"time"
)

// StartMessage marks the beginning of an optimization.
func StartMessage() string {
	return "Starting COFFEE optimization...\n"
}

// ProgressMessage reports the objective value and constraint error of one iteration.
func ProgressMessage(it int, f, err float64) string {
	return fmt.Sprintf("Iteration %d: f = %.12f, error = %.6e\n", it, f, err)
}

// ConcludeMessage summarises an optimization. The result block is omitted
// when res is nil and the elapsed time only appears when showTime is set.
func ConcludeMessage(it int, ok bool, elapsed time.Duration, showTime bool, res *Result) string {
	var sb strings.Builder

	status := "complete"
	if !ok {
		status = "failed"
	}
	_, _ = fmt.Fprintf(&sb, "Optimization %s after %d iterations.\n\n", status, it)

	if res != nil {
		_, _ = fmt.Fprintf(&sb, "Number of monomers: %d\nNumber of polymers: %d\n\n", len(res.Lambda), len(res.X))
		_, _ = fmt.Fprintf(&sb, "Optimal Lagrangian: %.6e\n\n", res.Lagrangian)
		sb.WriteString("Optimal Lambdas:\n")
		for _, l := range res.Lambda {
			_, _ = fmt.Fprintf(&sb, "%.6e ", l)
		}
		sb.WriteString("\n\n")
		_, _ = fmt.Fprintf(&sb, "Concentration Constraint Error: %.6e\n", res.Error)
	}

	if showTime {
		ms := float64(elapsed.Microseconds()) / 1000
		if ms < 1000 {
			_, _ = fmt.Fprintf(&sb, "\nElapsed time: %.2f ms\n", ms)
		} else {
			_, _ = fmt.Fprintf(&sb, "\nElapsed time: %.2f s\n", ms/1000)
		}
	}
	return sb.String()
}

// FormatResult renders the equilibrium concentrations as space separated values.
func FormatResult(res *Result) string {
	var sb strings.Builder
	for _, x := range res.X {
		_, _ = fmt.Fprintf(&sb, "%.2e ", x)
	}
	return sb.String()
}
