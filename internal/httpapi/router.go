package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slaug/slaug/internal/config"
)

// Expander resolves references in a message and returns the joined response
// lines, or the empty string when there is nothing to announce.
type Expander interface {
	Expand(ctx context.Context, text, channel, source string) string
}

type Dependencies struct {
	Config   config.Config
	Expander Expander
	Logger   *slog.Logger
}

type router struct {
	deps Dependencies
}

// NewRouter builds the webhook handler. The expansion endpoint lives behind
// the shared-secret path segment; an empty secret mounts it at the root.
func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc(rt.endpoint(), rt.handleExpand)
	return rt.instrument(mux)
}

func (r *router) endpoint() string {
	return "/" + r.deps.Config.Secret
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument wraps the mux with request logging, timing, and the recovery
// policy: failures are surfaced with detail in development and the
// connection is closed without a body in production.
func (r *router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			r.deps.Logger.Error("handler panicked",
				"request_id", requestID, "method", req.Method, "path", req.URL.Path, "panic", rec)
			if r.deps.Config.Production() {
				panic(http.ErrAbortHandler)
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprint(rec)})
		}()

		r.deps.Logger.Info("request",
			"request_id", requestID, "method", req.Method, "path", req.URL.Path,
			"content_type", req.Header.Get("Content-Type"))
		next.ServeHTTP(w, req)
		r.deps.Logger.Info("response",
			"request_id", requestID, "duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
