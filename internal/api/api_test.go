package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoattr/internal/dataset"
	"github.com/sells-group/geoattr/internal/dataset/shapetest"
	"github.com/sells-group/geoattr/internal/mapping"
	"github.com/sells-group/geoattr/internal/resolver"
	"github.com/sells-group/geoattr/internal/resultcache"
)

type stubResolver struct {
	res resolver.Result
	err error
}

func (s stubResolver) Lookup(context.Context, float64, float64, string) (resolver.Result, error) {
	return s.res, s.err
}

type stubVars []string

func (s stubVars) Variables() []string { return s }

func serve(t *testing.T, h *Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.Routes([]string{"*"}).ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, NewHandler(stubResolver{}, nil, nil, nil, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAttribute_Found(t *testing.T) {
	h := NewHandler(stubResolver{res: resolver.Result{Label: "Sweden", Found: true, Tier: resolver.TierStore}}, nil, nil, nil, nil)

	w := serve(t, h, http.MethodGet, "/v1/attribute?x=12&y=57&variable=location_nation")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit-store", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp AttributeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, AttributeResponse{X: 12, Y: 57, Variable: "location_nation", Label: "Sweden", Found: true}, resp)
}

func TestAttribute_Absent(t *testing.T) {
	h := NewHandler(stubResolver{res: resolver.Result{Tier: resolver.TierNone}}, nil, nil, nil, nil)

	w := serve(t, h, http.MethodGet, "/v1/attribute?x=0&y=0&variable=location_nation")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"x":0,"y":0,"variable":"location_nation","found":false}`, w.Body.String())
}

func TestAttribute_BadRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
	}{
		{name: "missing x", target: "/v1/attribute?y=57&variable=v"},
		{name: "bad y", target: "/v1/attribute?x=12&y=north&variable=v"},
		{name: "invalid coordinate", target: "/v1/attribute?x=NaN&y=57&variable=v", err: resolver.ErrInvalidCoordinate},
		{name: "empty variable", target: "/v1/attribute?x=12&y=57", err: resolver.ErrEmptyVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, NewHandler(stubResolver{err: tt.err}, nil, nil, nil, nil), http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAttribute_InternalError(t *testing.T) {
	h := NewHandler(stubResolver{err: errors.New("disk full")}, nil, nil, nil, nil)

	w := serve(t, h, http.MethodGet, "/v1/attribute?x=12&y=57&variable=v")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestVariables(t *testing.T) {
	h := NewHandler(stubResolver{}, stubVars{"location_county", "location_nation"}, nil, nil, nil)

	w := serve(t, h, http.MethodGet, "/v1/variables")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"variables":["location_county","location_nation"]}`, w.Body.String())

	w = serve(t, NewHandler(stubResolver{}, nil, nil, nil, nil), http.MethodGet, "/v1/variables")
	assert.JSONEq(t, `{"variables":[]}`, w.Body.String())
}

func TestCacheStats(t *testing.T) {
	st, err := resultcache.NewSQLite(filepath.Join(t.TempDir(), "lookup_database.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	_, err = st.Put(context.Background(), resultcache.Key{X: 1, Y: 2, Variable: "v"}, "A")
	require.NoError(t, err)

	mem := resultcache.NewMemory(10, 0)
	mem.Put(resultcache.Key{X: 1, Y: 2, Variable: "v"}, "A")

	w := serve(t, NewHandler(stubResolver{}, nil, mem, st, nil), http.MethodGet, "/v1/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp CacheStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Memory)
	assert.Equal(t, 1, resp.Memory.Entries)
	assert.Equal(t, 10, resp.Memory.Capacity)
	require.NotNil(t, resp.StoreEntries)
	assert.Equal(t, int64(1), *resp.StoreEntries)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	resolver.NewMetrics(reg).Lookups.WithLabelValues("memory").Inc()

	w := serve(t, NewHandler(stubResolver{}, nil, nil, nil, reg), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `geoattr_lookups_total{tier="memory"} 1`)

	w = serve(t, NewHandler(stubResolver{}, nil, nil, nil, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/attribute", nil)
	req.Header.Set("Origin", "https://sharkweb.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()

	NewHandler(stubResolver{}, nil, nil, nil, nil).Routes([]string{"https://sharkweb.example"}).ServeHTTP(w, req)

	assert.Equal(t, "https://sharkweb.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAttribute_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	shapetest.Write(t, dir, "an_riks", []string{"LAND"}, []shapetest.Feature{
		{Rings: [][]shp.Point{shapetest.Square(10, 55, 20, 70)}, Attrs: []string{"Sweden"}},
	})
	m := mapping.New([]mapping.Descriptor{{
		Name:    "an_riks",
		Active:  true,
		Columns: []mapping.Column{{Variable: "location_nation", Column: "LAND"}},
	}}, dir)
	mem := resultcache.NewMemory(10, 0)
	res := resolver.New(dataset.NewRegistry(m, dataset.Options{}), nil, mem)
	h := NewHandler(res, m, mem, nil, nil)

	w := serve(t, h, http.MethodGet, "/v1/attribute?x=12.0&y=57.0&variable=location_nation")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.True(t, strings.Contains(w.Body.String(), `"label":"Sweden"`))

	w = serve(t, h, http.MethodGet, "/v1/attribute?x=12.0&y=57.0&variable=location_nation")
	assert.Equal(t, "hit-memory", w.Header().Get("X-Cache"))
}
