// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/curioloop/coffee/internal/config"
	"github.com/curioloop/coffee/internal/logging"
	"github.com/curioloop/coffee/internal/metrics"
	"github.com/curioloop/coffee/internal/server"
)

func newServeCommand(root *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve optimization requests over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.ConfigPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			log, err := logging.New(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	srv := server.New(cfg.Server, cfg.Optimizer, log.Named("http"), metrics.New())
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
