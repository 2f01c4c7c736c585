// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server exposes the optimizer over HTTP.
//
//	POST /v1/optimize   multipart form with files "cfe" and "con" and an
//	                    optional "options" JSON object overriding the
//	                    configured optimizer options
//	GET  /healthz
//	GET  /metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curioloop/coffee/coffee"
	"github.com/curioloop/coffee/internal/config"
	"github.com/curioloop/coffee/internal/metrics"
	"github.com/curioloop/coffee/internal/pipeline"
)

// Response is the body of a successful or failed optimization. On failure
// the fields describe the last completed iteration; values that are not
// finite are omitted.
type Response struct {
	X          []float64 `json:"x"`
	Lambda     []float64 `json:"lambda"`
	Lagrangian *float64  `json:"lagrangian"`
	Error      *float64  `json:"error"`
	Iterations int       `json:"iterations"`
	ElapsedUs  uint64    `json:"elapsed_us"`
	Nupack     bool      `json:"nupack"`
	Log        []string  `json:"log"`
	Result     string    `json:"result"`
	Failure    string    `json:"failure,omitempty"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// finite returns vs, or nil when it holds a value JSON cannot encode.
func finite(vs []float64) []float64 {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	return vs
}

func finiteValue(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Server serves optimization requests.
type Server struct {
	cfg     config.ServerConfig
	opts    coffee.Options
	log     *zap.Logger
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// New builds the routes. Requests are optimized with opts unless they
// carry their own options.
func New(cfg config.ServerConfig, opts coffee.Options, log *zap.Logger, m *metrics.Metrics) *Server {
	s := &Server{cfg: cfg, opts: opts, log: log, metrics: m}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())
	engine.POST("/v1/optimize", s.optimize)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	s.engine = engine
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is cancelled, then
// shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) optimize(c *gin.Context) {

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	cfeData, err := formFile(c, "cfe")
	if err != nil {
		s.reject(c, err)
		return
	}
	conData, err := formFile(c, "con")
	if err != nil {
		s.reject(c, err)
		return
	}

	opts := s.opts
	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			s.reject(c, fmt.Errorf("options: %w", err))
			return
		}
	}

	out, err := pipeline.Compute(cfeData, conData, opts, nil)
	if out == nil {
		s.reject(c, err)
		return
	}

	res := out.Result
	body := Response{
		X:          finite(res.X),
		Lambda:     finite(res.Lambda),
		Lagrangian: finiteValue(res.Lagrangian),
		Error:      finiteValue(res.Error),
		Iterations: out.Summary.NumIter,
		ElapsedUs:  res.ElapsedMicros(),
		Nupack:     out.Nupack,
		Log:        res.Log,
		Result:     coffee.FormatResult(&res),
	}

	if err != nil {
		s.metrics.Observe(metrics.StatusFailed, res.Elapsed, out.Summary.NumIter)
		s.log.Warn("optimization failed", zap.Error(err))
		body.Failure = err.Error()
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	s.metrics.Observe(metrics.StatusOK, res.Elapsed, out.Summary.NumIter)
	c.JSON(http.StatusOK, body)
}

func (s *Server) reject(c *gin.Context, err error) {
	s.metrics.Observe(metrics.StatusInvalid, 0, 0)

	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	s.log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func formFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", field, err)
	}
	return readAll(fh)
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
