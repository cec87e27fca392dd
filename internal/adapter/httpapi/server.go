// Package httpapi exposes table queries, table stats and the MCP endpoint over HTTP.
// Every route except /health requires the bearer token.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Options configures the router.
type Options struct {
	Query       *service.QueryService
	MCP         http.Handler // mounted at /mcp when set
	BearerToken string
	Logger      *slog.Logger
}

type api struct {
	query  *service.QueryService
	logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	a := &api{query: opts.Query, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(func(next http.Handler) http.Handler { return recoveryMiddleware(next, opts.Logger) })

	r.Get("/health", healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return bearerAuthMiddleware(next, opts.BearerToken) })

		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/stats", a.handleStats)
			r.Get("/query", a.handleQueryGet)
			r.Post("/query", a.handleQueryPost)
		})
		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
		}
	})
	return r
}

// NewHTTPServer wraps handler with the timeouts used for serving. WriteTimeout
// stays zero so MCP streams are not cut.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithOperation(r.Context(), "http.stats")
	stats, err := a.query.Stats(ctx, chi.URLParam(r, "table"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleQueryGet reads conditions from repeated where=col=value parameters;
// value "a|b" means IN (a, b).
func (a *api) handleQueryGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	conditions, err := service.ParseConditions(q["where"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidQuery))
			return
		}
	}
	a.runQuery(w, r, queryBody{OrderBy: q.Get("order_by"), Limit: limit}, conditions)
}

type queryBody struct {
	Where   map[string]any `json:"where"`
	OrderBy string         `json:"order_by"`
	Limit   int            `json:"limit"`
}

func (a *api) handleQueryPost(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		a.fail(w, r, fmt.Errorf("%w: decoding body: %w", domain.ErrInvalidQuery, err))
		return
	}
	if body.Limit < 0 {
		a.fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidQuery))
		return
	}
	var where any
	if body.Where != nil {
		where = body.Where
	}
	conditions, err := service.ConditionsFromMap(where)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.runQuery(w, r, body, conditions)
}

func (a *api) runQuery(w http.ResponseWriter, r *http.Request, body queryBody, conditions []port.Condition) {
	ctx := service.WithOperation(r.Context(), "http.query")
	res, err := a.query.Query(ctx, chi.URLParam(r, "table"), conditions, body.OrderBy, body.Limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail maps domain errors onto status codes and logs server-side failures.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("url.path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
