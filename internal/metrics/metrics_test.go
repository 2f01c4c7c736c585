// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(StatusOK, 3*time.Millisecond, 12)
	m.Observe(StatusOK, time.Millisecond, 5)
	m.Observe(StatusFailed, time.Second, 1)
	m.Observe(StatusInvalid, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Optimizations.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Optimizations.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Optimizations.WithLabelValues(StatusInvalid)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Iterations))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(StatusOK, time.Millisecond, 7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `coffee_optimizations_total{status="ok"} 1`)
	assert.Contains(t, body, "coffee_optimization_iterations_sum 7")
	assert.Contains(t, body, "coffee_optimization_duration_seconds_count 1")
	assert.Contains(t, body, "go_goroutines")
}
