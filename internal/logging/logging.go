// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging builds the zap logger of the command and bridges the
// optimizer progress messages onto it.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/config"
)

// parseLevel converts a level name to a zapcore.Level.
func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// New constructs a logger writing to w according to cfg.
func New(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	case "json", "":
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller()), nil
}

// Sink forwards optimizer progress to l at debug level. Each message is
// reduced to its first line; the full text goes under the "detail" key
// when it spans several lines.
func Sink(l *zap.Logger) coffee.Sink {
	return coffee.SinkFunc(func(at time.Time, msg string) {
		text := strings.TrimSpace(msg)
		head, _, multi := strings.Cut(text, "\n")
		fields := []zap.Field{zap.Time("emitted", at)}
		if multi {
			fields = append(fields, zap.String("detail", text))
		}
		l.Debug(head, fields...)
	})
}
