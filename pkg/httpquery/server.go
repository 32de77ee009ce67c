// Package httpquery exposes an optional, disabled-by-default read-only HTTP
// surface over the reasoning trace: a single `/traces` endpoint backed by
// trace.Query, plus a Prometheus metrics endpoint counting queries served.
package httpquery

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclaw/aasc/pkg/trace"
)

var queriesServed = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "aasc_trace_queries_total",
	Help: "Number of /traces queries served by the trace query HTTP surface.",
})

func init() {
	prometheus.MustRegister(queriesServed)
}

// Server is the optional trace-query HTTP surface. The zero value is not
// usable; construct with New.
type Server struct {
	addr   string
	query  *trace.Query
	router chi.Router
}

// New constructs a Server that serves addr using query to answer
// /traces requests.
func New(query *trace.Query, addr string) *Server {
	s := &Server{addr: addr, query: query, router: chi.NewRouter()}
	s.router.Get("/traces", s.handleTraces)
	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)
	return s
}

// ListenAndServe blocks serving the trace query surface.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	queriesServed.Inc()

	params := trace.QueryParams{
		Keyword:        r.URL.Query().Get("keyword"),
		Classification: r.URL.Query().Get("classification"),
		SubtaskOf:      r.URL.Query().Get("subtaskOf"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = &t
		}
	}
	if until := r.URL.Query().Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			params.Until = &t
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			params.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			params.Offset = n
		}
	}
	if r.URL.Query().Get("sortBy") == "cost" {
		params.SortBy = trace.SortCost
	} else if r.URL.Query().Get("sortBy") == "duration" {
		params.SortBy = trace.SortDuration
	}
	if descending := r.URL.Query().Get("descending"); descending != "" {
		params.Descending = descending == "true"
	}

	results, err := s.query.Run(r.Context(), params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}
