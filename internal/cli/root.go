// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the coffee command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/config"
	"github.com/curioloop/coffee/internal/pipeline"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	cfeExtensions    = []string{".cfe", ".ocx", ".txt", ".csv", ".tsv"}
	conExtensions    = []string{".con", ".txt", ".csv", ".tsv"}
	reportExtensions = []string{".txt", ".log"}
)

// RootOptions holds the flags of the root command.
type RootOptions struct {
	ConfigPath string
	LogPath    string
	OutputPath string
	Format     string
	Verbose    bool
}

// NewRootCommand creates the root command with its subcommands. Regular
// output goes to stdout.
func NewRootCommand(stdout io.Writer) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "coffee <cfe> <con>",
		Short:   "Compute equilibrium concentrations of interacting nucleic acid strands",
		Long:    "coffee computes the equilibrium concentrations of a set of polymers formed\nfrom monomers, given the composition and free energy of every polymer and the\ntotal concentration of every monomer.",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Args:    validateInputs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(stdout, opts, args[0], args[1])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path")

	f := cmd.Flags()
	f.StringVarP(&opts.LogPath, "log", "l", "", "file receiving the log and the results (.txt or .log); stdout when omitted")
	f.StringVarP(&opts.OutputPath, "output", "o", "", "file receiving only the results (.txt or .log)")
	f.StringVar(&opts.Format, "format", "text", "result format (text, json, yaml)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "report the elapsed time")

	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func hasExtension(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func validateInputs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(2)(cmd, args); err != nil {
		return err
	}
	if !hasExtension(args[0], cfeExtensions) {
		return fmt.Errorf("file %q must be a .cfe, .ocx, .txt, .csv, or .tsv file", args[0])
	}
	if !hasExtension(args[1], conExtensions) {
		return fmt.Errorf("file %q must be a .con, .txt, .csv, or .tsv file", args[1])
	}
	return nil
}

func validateReport(flag, path string) error {
	if path != "" && !hasExtension(path, reportExtensions) {
		return fmt.Errorf("--%s %q must be a .txt or .log file", flag, path)
	}
	return nil
}

func runOptimize(stdout io.Writer, opts *RootOptions, cfePath, conPath string) error {

	if err := errors.Join(validateReport("log", opts.LogPath), validateReport("output", opts.OutputPath)); err != nil {
		return err
	}
	render, err := renderer(opts.Format)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Verbose {
		cfg.Optimizer.Verbose = true
	}

	cfeData, err := os.ReadFile(cfePath)
	if err != nil {
		return fmt.Errorf("error reading monomer/polymer file: %w", err)
	}
	conData, err := os.ReadFile(conPath)
	if err != nil {
		return fmt.Errorf("error reading concentration file: %w", err)
	}

	// Without a log file the progress is streamed to the terminal.
	var sink coffee.Sink
	if opts.LogPath == "" {
		sink = coffee.SinkFunc(func(_ time.Time, msg string) {
			_, _ = io.WriteString(stdout, msg)
		})
	}

	out, err := pipeline.Compute(cfeData, conData, cfg.Optimizer, sink)
	if err != nil {
		if out != nil && opts.LogPath != "" {
			if werr := os.WriteFile(opts.LogPath, []byte(strings.Join(out.Result.Log, "")), 0o644); werr != nil {
				err = errors.Join(err, fmt.Errorf("error writing log file: %w", werr))
			}
		}
		return err
	}

	results, err := render(out)
	if err != nil {
		return err
	}

	if opts.LogPath != "" {
		body := strings.Join(out.Result.Log, "") + results
		if err := os.WriteFile(opts.LogPath, []byte(body), 0o644); err != nil {
			return fmt.Errorf("error writing log file: %w", err)
		}
	} else {
		_, _ = fmt.Fprintln(stdout, results)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, []byte(results), 0o644); err != nil {
			return fmt.Errorf("error writing output file: %w", err)
		}
	}
	return nil
}
