package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
	"github.com/kirillkom/vinuni-assistant/internal/observability/metrics"
)

const maxRequestBodyBytes = 64 << 10

type RouterOptions struct {
	Service string
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics
	// Health returns extra detail for /healthz, such as breaker states.
	Health func() map[string]string
	// MaxInFlight bounds concurrent /v1 requests; zero disables the limit.
	MaxInFlight int
	QueueWait   time.Duration
}

type Router struct {
	answers    ports.AnswerService
	references ports.ReferenceLookup
	opts       RouterOptions
	validator  *requestValidator
}

func NewRouter(answers ports.AnswerService, references ports.ReferenceLookup, opts RouterOptions) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Router{
		answers:    answers,
		references: references,
		opts:       opts,
		validator:  validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/answers", rt.resolveAnswer)
	api.HandleFunc("GET /v1/references/{filename}", rt.getReference)
	api.HandleFunc("POST /v1/references/reload", rt.reloadReferences)

	var apiHandler http.Handler = rt.validator.middleware(api)
	if rt.opts.MaxInFlight > 0 {
		apiHandler = backpressureMiddleware(apiHandler, rt.opts.MaxInFlight, rt.opts.QueueWait)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPISpec)
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.opts.Logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.opts.Health != nil {
		if detail := rt.opts.Health(); len(detail) > 0 {
			payload["breakers"] = detail
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) resolveAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	writeJSON(w, http.StatusOK, rt.answers.Resolve(r.Context(), req.Question))
}

func (rt *Router) getReference(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.PathValue("filename"))
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}

	url, ok := rt.references.Resolve(r.Context(), filename)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reference not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": filename, "url": url})
}

func (rt *Router) reloadReferences(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.references.Reload(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{"entries": entries, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
