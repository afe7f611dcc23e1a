// Package server exposes the image updater over HTTP.
//
// Routes:
//
//	POST /update-image   run an update, JSON {"image","version"}
//	GET  /openapi.json   OpenAPI 3 document
//	GET  /docs           Swagger UI over /openapi.json
//	GET  /healthz        liveness check
//	GET  /metrics        Prometheus metrics
//
// Errors are returned as {"detail": "..."} with 404 for the two not-found
// conditions, 422 for an invalid body and 500 for everything else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byte4ever/image_updater/updater"
)

// maxBodyBytes bounds the update request body.
const maxBodyBytes = 1 << 16

// Updater runs one image update.
type Updater interface {
	Update(
		ctx context.Context,
		req updater.Request,
	) (*updater.Result, error)
}

// Config holds the dependencies of the HTTP handler.
type Config struct {
	// Updater serves POST /update-image.
	Updater Updater
	// RateLimit is the number of update requests
	// allowed per client IP and minute. Zero disables
	// limiting.
	RateLimit int
	// Registry receives the server metrics and backs
	// GET /metrics. Defaults to a fresh registry with
	// the process and Go collectors.
	Registry *prometheus.Registry
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New validates cfg and returns the routed handler.
func New(cfg Config) (http.Handler, error) {
	const errCtx = "creating http handler"

	if cfg.Updater == nil {
		return nil, fmt.Errorf(
			"%s: updater must be set", errCtx,
		)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf(
			"%s: rate limit must not be negative", errCtx,
		)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(
				collectors.ProcessCollectorOpts{},
			),
		)
	}

	mt, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: registering metrics: %w", errCtx, err,
		)
	}

	swagger, err := LoadSwagger()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	rawSwagger, err := swagger.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf(
			"%s: marshal openapi document: %w", errCtx, err,
		)
	}

	// Skip server name validation.
	swagger.Servers = nil

	hd := &handler{
		updater: cfg.Updater,
		metrics: mt,
		log:     log,
	}

	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
	)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(rawSwagger)
	})

	router.Get("/docs", serveDocs)

	router.Method(
		http.MethodGet,
		"/metrics",
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	router.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(hd.rateLimited),
			))
		}

		r.Use(
			middleware.RequestSize(maxBodyBytes),
			oapimiddleware.OapiRequestValidatorWithOptions(
				swagger,
				&oapimiddleware.Options{
					ErrorHandler: hd.validationFailed,
				},
			),
		)

		r.Post("/update-image", hd.updateImage)
	})

	return router, nil
}
