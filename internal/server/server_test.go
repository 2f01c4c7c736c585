// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/config"
	"github.com/curioloop/coffee/internal/metrics"
)

const (
	dimerCfe = "1,0,0\n0,1,0\n1,1,-10\n"
	dimerCon = "1e-6\n1e-6\n"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()
	cfg := config.Default().Server
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, coffee.DefaultOptions(), zap.NewNop(), metrics.New())
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile(name, name+".txt")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func post(t *testing.T, s *Server, files, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(newTestServer(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestOptimize(t *testing.T) {
	s := newTestServer(t, nil)
	rec := post(t, s, map[string]string{"cfe": dimerCfe, "con": dimerCon}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.X, 3)
	require.Len(t, resp.Lambda, 2)
	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Lagrangian)
	assert.Less(t, *resp.Error, 1e-12)
	assert.InDelta(t, 1e-6, resp.X[0]+resp.X[2], 1e-12)
	assert.Positive(t, resp.Iterations)
	assert.False(t, resp.Nupack)
	assert.Empty(t, resp.Failure)
	assert.Len(t, strings.Fields(resp.Result), 3)
	assert.Equal(t, coffee.StartMessage(), resp.Log[0])

	metricsBody := get(s, "/metrics").Body.String()
	assert.Contains(t, metricsBody, `coffee_optimizations_total{status="ok"} 1`)
}

func TestOptimize_Options(t *testing.T) {
	s := newTestServer(t, nil)
	rec := post(t, s,
		map[string]string{"cfe": dimerCfe, "con": dimerCon},
		map[string]string{"options": `{"max_iterations": 2}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Iterations)

	rec = post(t, s,
		map[string]string{"cfe": dimerCfe, "con": dimerCon},
		map[string]string{"options": `{"eta": 3}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "eta")

	rec = post(t, s,
		map[string]string{"cfe": dimerCfe, "con": dimerCon},
		map[string]string{"options": `{not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimize_BadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	rec := post(t, s, map[string]string{"cfe": dimerCfe}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `file \"con\"`)

	rec = post(t, s, map[string]string{"cfe": "1,0,0\n0,1\n", "con": dimerCon}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "parse:")

	assert.Contains(t, get(s, "/metrics").Body.String(), `coffee_optimizations_total{status="invalid"} 2`)
}

func TestOptimize_TooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.ServerConfig) { cfg.MaxUploadBytes = 64 })
	rec := post(t, s, map[string]string{"cfe": strings.Repeat(dimerCfe, 50), "con": dimerCon}, nil)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestOptimize_Failure(t *testing.T) {
	// A NaN total makes the Lagrangian non-finite at the first iterate.
	s := newTestServer(t, nil)
	rec := post(t, s, map[string]string{
		"cfe": dimerCfe,
		"con": "NaN\n1e-6\n",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Failure, "not finite")
	assert.Nil(t, resp.Lagrangian)
	assert.Contains(t, resp.Log[len(resp.Log)-1], "Optimization failed")

	assert.Contains(t, get(s, "/metrics").Body.String(), `coffee_optimizations_total{status="failed"} 1`)
}
