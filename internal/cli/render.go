// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/pipeline"
)

// report is the structured form of the results.
type report struct {
	X          []float64 `json:"x" yaml:"x"`
	Lambda     []float64 `json:"lambda" yaml:"lambda"`
	Lagrangian float64   `json:"lagrangian" yaml:"lagrangian"`
	Error      float64   `json:"error" yaml:"error"`
	Iterations int       `json:"iterations" yaml:"iterations"`
	ElapsedUs  uint64    `json:"elapsed_us" yaml:"elapsed_us"`
}

func newReport(out *pipeline.Output) report {
	res := out.Result
	return report{
		X:          res.X,
		Lambda:     res.Lambda,
		Lagrangian: res.Lagrangian,
		Error:      res.Error,
		Iterations: out.Summary.NumIter,
		ElapsedUs:  res.ElapsedMicros(),
	}
}

type renderFunc func(out *pipeline.Output) (string, error)

func renderer(format string) (renderFunc, error) {
	switch format {
	case "text", "":
		return func(out *pipeline.Output) (string, error) {
			return coffee.FormatResult(&out.Result), nil
		}, nil
	case "json":
		return func(out *pipeline.Output) (string, error) {
			b, err := json.MarshalIndent(newReport(out), "", "  ")
			if err != nil {
				return "", fmt.Errorf("render json: %w", err)
			}
			return string(b), nil
		}, nil
	case "yaml":
		return func(out *pipeline.Output) (string, error) {
			b, err := yaml.Marshal(newReport(out))
			if err != nil {
				return "", fmt.Errorf("render yaml: %w", err)
			}
			return string(b), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown format %q (text, json, yaml)", format)
}
