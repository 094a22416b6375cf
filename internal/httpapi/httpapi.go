// Package httpapi serves dispatch requests and metrics over HTTP.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the id of the dispatch call that produced a response.
const RequestIDHeader = "X-Request-ID"

// DispatchRequest is the JSON body of POST /dispatch.
type DispatchRequest struct {
	Trigger string `json:"trigger"`
	Date    string `json:"date"` // YYYY-MM-DD
	Clicks  int    `json:"clicks"`
	Metric  string `json:"metric"`
	K       int    `json:"k"`
}

// Handler answers dispatch requests against one shared dataset.
type Handler struct {
	disp *dispatch.Dispatcher
}

// New creates a Handler over disp.
func New(disp *dispatch.Dispatcher) *Handler {
	return &Handler{disp: disp}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/dispatch", h.HandleDispatch)
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return loggingMiddleware(mux)
}

// NewServer wraps the handler routes in an http.Server listening on addr.
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// HandleDispatch resolves the posted control state and returns the bundle.
// POST /dispatch
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := contract.ParseDateFlag("date", body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dispatch.Resolve(dispatch.Inputs{
		Fired:  []schema.Trigger{schema.ParseTrigger(body.Trigger)},
		Date:   date,
		Clicks: body.Clicks,
		Metric: body.Metric,
		K:      body.K,
	})
	result, err := h.disp.Dispatch(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set(RequestIDHeader, result.RequestID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("dispatch %s: encode response: %v", result.RequestID, err)
	}
}

// HandleHealth reports liveness.
// GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func statusFor(err error) int {
	if schema.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with a JSON error object. Failed calls still get a request id.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set(RequestIDHeader, uuid.NewString())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
