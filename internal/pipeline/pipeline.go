// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline turns raw input files into equilibrium concentrations.
package pipeline

import (
	"fmt"

	"github.com/curioloop/coffee/cfe"
	"github.com/curioloop/coffee/coffee"
)

// InitialDelta is the trust-region radius every run starts from.
const InitialDelta = 1.0

// Output is the outcome of one run.
type Output struct {
	Summary coffee.Summary
	Result  coffee.Result
	// Nupack reports whether the composition carried NUPACK index columns.
	Nupack bool
}

// Compute parses the composition and concentration files, builds the
// optimizer and runs it. Progress goes to sink, or into Result.Log when
// sink is nil.
//
// When the iteration fails the partial Output is returned together with
// the error.
func Compute(cfeData, conData []byte, opts coffee.Options, sink coffee.Sink) (*Output, error) {

	in, err := cfe.Read(cfeData, conData)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	o, err := in.Problem(opts).New(sink)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	sum, err := o.Optimize(InitialDelta)
	out := &Output{Summary: sum, Result: o.Results(), Nupack: in.Nupack}
	if err != nil {
		return out, fmt.Errorf("optimize: %w", err)
	}
	return out, nil
}
