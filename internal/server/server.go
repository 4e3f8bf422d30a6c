// Package server exposes resource searches over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gltg/bmp-api/internal/buildinfo"
	"github.com/gltg/bmp-api/internal/logger"
	"github.com/gltg/bmp-api/internal/metrics"
	"github.com/gltg/bmp-api/internal/page"
	"github.com/gltg/bmp-api/internal/resource"
)

// Options configures a Server.
type Options struct {
	// BasePath prefixes resource routes, e.g. "/bmp-api".
	BasePath           string
	RateLimitPerMinute int
	Burst              int
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP requests to a resource.Service.
type Server struct {
	svc    *resource.Service
	opts   Options
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the router.
func New(svc *resource.Service, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{svc: svc, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = logger.Discard()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))
	if opts.Metrics != nil {
		r.Use(instrument(opts.Metrics))
	}
	r.Use(cors())

	r.GET("/healthz", s.health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group(strings.TrimSuffix(opts.BasePath, "/"))
	api.Use(rateLimit(opts.RateLimitPerMinute, opts.Burst))
	api.GET("/", s.listResources)
	api.GET("/:resource", s.search)
	api.GET("/:resource/:id", s.get)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "no route for " + c.Request.URL.Path, Code: CodeNotFound})
	})

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "base_path", s.opts.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logFor(c *gin.Context) *slog.Logger {
	return logger.FromContext(c.Request.Context(), s.logger)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.String()})
}

type resourceInfo struct {
	Name       string   `json:"name"`
	PrimaryKey string   `json:"primary_key"`
	Fields     []string `json:"fields"`
	Filters    []string `json:"filters,omitempty"`
}

func (s *Server) listResources(c *gin.Context) {
	var out []resourceInfo
	for _, d := range s.svc.Resources() {
		info := resourceInfo{Name: d.Name(), PrimaryKey: d.Schema.PrimaryKey, Fields: d.Schema.FieldNames()}
		for _, f := range d.Filters {
			info.Filters = append(info.Filters, f.Name)
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) search(c *gin.Context) {
	res, err := s.svc.Search(c.Request.Context(), c.Param("resource"), c.Request.URL.Query(), linksFor(c.Request))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) get(c *gin.Context) {
	row, err := s.svc.Get(c.Request.Context(), c.Param("resource"), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// linksFor builds absolute page links for r, honoring X-Forwarded-Proto and
// X-Forwarded-Host from a fronting proxy.
func linksFor(r *http.Request) page.Links {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	base := url.URL{Scheme: scheme, Host: host, Path: r.URL.Path}
	return page.Links{Base: base.String(), RawQuery: r.URL.RawQuery}
}
