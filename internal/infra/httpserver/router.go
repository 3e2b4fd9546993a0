package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
	"github.com/bryanwahyu/deadcode-cleaner/internal/middleware"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// Cleaner is what the JSON endpoints call into.
type Cleaner interface {
	Analyze(ctx context.Context, code string) (domain.AnalysisResult, error)
	Clean(ctx context.Context, code string) (string, error)
	LoadCode(ctx context.Context, path string) (string, error)
}

type Deps struct {
	MCP            http.Handler
	Cleaner        Cleaner
	Logger         zerolog.Logger
	AllowedOrigins []string
	Limiter        *middleware.RateLimiter // nil disables rate limiting
	Checkers       map[string]middleware.HealthChecker
}

type Router struct {
	svc Cleaner
}

// NewRouter mounts the MCP transport at /mcp next to the health checks, metrics and
// JSON shortcuts under /v1.
func NewRouter(d Deps) http.Handler {
	r := &Router{svc: d.Cleaner}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(d.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))
	if d.Limiter != nil {
		mux.Use(middleware.RateLimit(d.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	if d.MCP != nil {
		mux.Handle("/mcp", d.MCP)
	}

	if d.Cleaner != nil {
		mux.Route("/v1", func(rt chi.Router) {
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
			rt.Post("/clean", r.wrap(r.handleClean))
			rt.Get("/code", r.wrap(r.handleLoadCode))
		})
	}

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		zerolog.Ctx(req.Context()).Warn().Err(err).Msg("request failed")

		var br badRequest
		switch {
		case errors.As(err, &br):
			http.Error(w, br.msg, http.StatusBadRequest)
		case errors.Is(err, domain.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		case errors.Is(err, fs.ErrNotExist):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, fs.ErrPermission):
			http.Error(w, "forbidden", http.StatusForbidden)
		case domain.KindOf(err) == domain.KindAnalysis, domain.KindOf(err) == domain.KindCleaning:
			http.Error(w, domain.Describe(err), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

type codeBody struct {
	Code string `json:"code"`
}

func decodeCode(w http.ResponseWriter, req *http.Request) (string, error) {
	var body codeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", badRequest{fmt.Sprintf("invalid body: %v", err)}
	}
	if body.Code == "" {
		return "", badRequest{"code is required"}
	}
	return body.Code, nil
}

// POST /v1/analyze
// Body: {"code": "..."}
// Always answers with the analysis record; a failed analysis is the error
// variant, same as the MCP tool.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	code, err := decodeCode(w, req)
	if err != nil {
		return err
	}
	res, _ := r.svc.Analyze(req.Context(), code)

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// POST /v1/clean
// Body: {"code": "..."}
func (r *Router) handleClean(w http.ResponseWriter, req *http.Request) error {
	code, err := decodeCode(w, req)
	if err != nil {
		return err
	}
	out, err := r.svc.Clean(req.Context(), code)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(codeBody{Code: out})
}

// GET /v1/code?path=
func (r *Router) handleLoadCode(w http.ResponseWriter, req *http.Request) error {
	path := req.URL.Query().Get("path")
	if path == "" {
		return badRequest{"path is required"}
	}
	text, err := r.svc.LoadCode(req.Context(), path)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = w.Write([]byte(text))
	return err
}
