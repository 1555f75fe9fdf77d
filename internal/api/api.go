// Package api serves attribute lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoattr/internal/resolver"
	"github.com/sells-group/geoattr/internal/resultcache"
)

// Resolver is the lookup surface the handler needs.
type Resolver interface {
	Lookup(ctx context.Context, x, y float64, variable string) (resolver.Result, error)
}

// VariableLister lists resolvable variables. *mapping.Mapping satisfies it.
type VariableLister interface {
	Variables() []string
}

// Handler wires HTTP routes to the resolver and its caches.
type Handler struct {
	resolver  Resolver
	variables VariableLister
	memory    *resultcache.Memory
	store     resultcache.Store
	gatherer  prometheus.Gatherer
}

// NewHandler creates a Handler. memory, store and gatherer may be nil.
func NewHandler(r Resolver, vars VariableLister, memory *resultcache.Memory, store resultcache.Store, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		resolver:  r,
		variables: vars,
		memory:    memory,
		store:     store,
		gatherer:  gatherer,
	}
}

// AttributeResponse is the body of GET /v1/attribute.
type AttributeResponse struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Variable string  `json:"variable"`
	Label    string  `json:"label,omitempty"`
	Found    bool    `json:"found"`
}

// CacheStatsResponse is the body of GET /v1/cache/stats.
type CacheStatsResponse struct {
	Memory       *resultcache.Stats `json:"memory,omitempty"`
	StoreEntries *int64             `json:"store_entries,omitempty"`
}

// Routes returns the router. origins configures CORS.
func (h *Handler) Routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/attribute", h.attribute)
		r.Get("/variables", h.listVariables)
		r.Get("/cache/stats", h.cacheStats)
	})
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) attribute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err := strconv.ParseFloat(q.Get("x"), 64)
	if err != nil {
		http.Error(w, "invalid x coordinate", http.StatusBadRequest)
		return
	}
	y, err := strconv.ParseFloat(q.Get("y"), 64)
	if err != nil {
		http.Error(w, "invalid y coordinate", http.StatusBadRequest)
		return
	}
	variable := q.Get("variable")

	start := time.Now()
	res, err := h.resolver.Lookup(r.Context(), x, y, variable)
	if err != nil {
		if eris.Is(err, resolver.ErrInvalidCoordinate) || eris.Is(err, resolver.ErrEmptyVariable) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		zap.L().Error("api: lookup failed",
			zap.Float64("x", x), zap.Float64("y", y),
			zap.String("variable", variable),
			zap.Error(err),
		)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	zap.L().Debug("api: lookup",
		zap.String("variable", variable),
		zap.String("tier", res.Tier.String()),
		zap.Duration("elapsed", time.Since(start)),
	)

	w.Header().Set("X-Cache", cacheHeader(res.Tier))
	status := http.StatusOK
	if !res.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, AttributeResponse{X: x, Y: y, Variable: variable, Label: res.Label, Found: res.Found})
}

func cacheHeader(t resolver.Tier) string {
	switch t {
	case resolver.TierMemory, resolver.TierStore:
		return "hit-" + t.String()
	default:
		return "miss"
	}
}

func (h *Handler) listVariables(w http.ResponseWriter, _ *http.Request) {
	vars := []string{}
	if h.variables != nil {
		vars = append(vars, h.variables.Variables()...)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"variables": vars})
}

func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	var resp CacheStatsResponse
	if h.memory != nil {
		s := h.memory.Stats()
		resp.Memory = &s
	}
	if h.store != nil {
		n, err := h.store.Count(r.Context())
		if err != nil {
			zap.L().Error("api: count store entries", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		resp.StoreEntries = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}
