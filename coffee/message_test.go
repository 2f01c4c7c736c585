// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffee

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestConcludeMessage(t *testing.T) {

	res := &Result{
		X:          []float64{0.5, 0.25, 1.5e-7},
		Lambda:     []float64{-0.693147, -1.386294},
		Lagrangian: -1.25,
		Error:      3e-17,
	}

	msg := ConcludeMessage(7, true, 1500*time.Microsecond, true, res)
	for _, want := range []string{
		"Optimization complete after 7 iterations.",
		"Number of monomers: 2\nNumber of polymers: 3",
		"Optimal Lagrangian: -1.250000e+00",
		"-6.931470e-01 -1.386294e+00 ",
		"Concentration Constraint Error: 3.000000e-17",
		"Elapsed time: 1.50 ms",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("TestConcludeMessage: %q missing from\n%s", want, msg)
		}
	}

	msg = ConcludeMessage(3, false, 2500*time.Millisecond, true, nil)
	switch {
	case !strings.HasPrefix(msg, "Optimization failed after 3 iterations."):
		t.Fatalf("TestConcludeMessage: unexpected failure summary %q", msg)
	case strings.Contains(msg, "Optimal"):
		t.Fatal("TestConcludeMessage: failure must omit the result block")
	case !strings.Contains(msg, "Elapsed time: 2.50 s"):
		t.Fatalf("TestConcludeMessage: unexpected elapsed %q", msg)
	}

	if msg = ConcludeMessage(3, true, time.Second, false, nil); strings.Contains(msg, "Elapsed") {
		t.Fatal("TestConcludeMessage: elapsed time must be hidden")
	}
}

func TestProgressMessage(t *testing.T) {
	got := ProgressMessage(2, -0.5, 1e-3)
	if want := "Iteration 2: f = -0.500000000000, error = 1.000000e-03\n"; got != want {
		t.Fatalf("TestProgressMessage: got %q want %q", got, want)
	}
}

func TestFormatResult(t *testing.T) {
	got := FormatResult(&Result{X: []float64{8.5308e-7, 1.4692e-7, 0}})
	if want := "8.53e-07 1.47e-07 0.00e+00 "; got != want {
		t.Fatalf("TestFormatResult: got %q want %q", got, want)
	}
}

func TestWriterSink(t *testing.T) {

	var buf bytes.Buffer
	sink := WriterSink(&buf)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sink.Emit(at, StartMessage())
	sink.Emit(at, "plain")

	want := "2024-05-01T12:00:00Z Starting COFFEE optimization...\n" +
		"2024-05-01T12:00:00Z plain\n"
	if buf.String() != want {
		t.Fatalf("TestWriterSink: got %q", buf.String())
	}
}
