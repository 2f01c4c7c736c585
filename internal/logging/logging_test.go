// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("optimization finished", zap.Int("iterations", 12))
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "optimization finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 12, entry["iterations"])
	assert.Contains(t, entry, "ts")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := Sink(zap.New(core))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink.Emit(at, coffee.StartMessage())
	sink.Emit(at, coffee.ConcludeMessage(4, true, time.Millisecond, false, &coffee.Result{
		X:      []float64{0.5},
		Lambda: []float64{-0.7},
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "Starting COFFEE optimization...", entries[0].Message)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.NotContains(t, entries[0].ContextMap(), "detail")

	assert.Equal(t, "Optimization complete after 4 iterations.", entries[1].Message)
	assert.Contains(t, entries[1].ContextMap()["detail"], "Optimal Lambdas:")
	emitted, ok := entries[1].ContextMap()["emitted"].(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(emitted))
}
