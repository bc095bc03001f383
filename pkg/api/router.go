// Package api exposes the broker engine over HTTP. The two wire
// contracts consumed by external verification tooling are the matrix /
// can-i-deploy shape and the pacts-for-verification shape; everything
// else is plain record lookup.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/contractgrid/pact-broker/pkg/broker"
)

// NewRouter creates a chi router with the full broker API.
func NewRouter(b *broker.Broker, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler())

	r.Route("/pacts/provider/{provider}", func(r chi.Router) {
		r.Post("/for-verification", pactsForVerificationHandler(b))

		r.Route("/consumer/{consumer}", func(r chi.Router) {
			r.Put("/version/{version}", publishPactHandler(b))
			r.Get("/version/{version}", fetchPactExactHandler(b))
			r.Get("/latest", fetchPactLatestHandler(b))
			r.Get("/latest/{tag}", fetchPactLatestHandler(b))
			r.Get("/pact-version/{sha}", fetchPactByShaHandler(b))
			r.Post("/pact-version/{sha}/verification-results", recordVerificationHandler(b))
		})
	})

	r.Route("/participants/{participant}", func(r chi.Router) {
		r.Get("/versions", listVersionsHandler(b))
		r.Put("/versions/{version}/tags/{tag}", tagVersionHandler(b))
		r.Post("/versions/{version}/deployments/{environment}", recordDeploymentHandler(b))
		r.Delete("/versions/{version}/deployments/{environment}", recordUndeploymentHandler(b))
	})

	r.Put("/environments/{environment}", ensureEnvironmentHandler(b))

	r.Get("/matrix", matrixHandler(b))
	r.Get("/can-i-deploy", canIDeployHandler(b))

	return r
}

// requestID stamps every request with a UUID, echoed in X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per completed request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", capture.statusCode,
				"duration", time.Since(start),
				"requestId", w.Header().Get("X-Request-Id"),
			)
		})
	}
}

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}
