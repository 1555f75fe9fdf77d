package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/geoattr/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{UserAgent: "test-agent", Timeout: 5 * time.Second, RatePerSec: 100})
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "/config/an_riks.prj", r.URL.Path)
		_, _ = w.Write([]byte(`PROJCS["SWEREF99 TM"]`))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL+"/config/an_riks.prj")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `PROJCS["SWEREF99 TM"]`, string(data))
}

func TestHTTPDownload_Status(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		transient bool
	}{
		{name: "not found", status: http.StatusNotFound, notFound: true},
		{name: "gone", status: http.StatusGone, notFound: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, transient: true},
		{name: "too many requests", status: http.StatusTooManyRequests, transient: true},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestFetcher().Download(context.Background(), srv.URL+"/x.shp")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, eris.Is(err, ErrNotFound))
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestHTTPDownload_RateLimitHalvesRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{RatePerSec: 40})
	_, err := f.Download(context.Background(), srv.URL+"/a")
	require.Error(t, err)

	req := httptest.NewRequest(http.MethodGet, srv.URL, nil)
	assert.InDelta(t, 20, float64(f.limiterFor(req.URL.Host).Limit()), 0.001)
}

func TestHTTPDownloadToFile_Atomic(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("name: an_riks\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "shape_file_config.yaml")
	f := newTestFetcher()

	n, err := f.DownloadToFile(context.Background(), srv.URL+"/shape_file_config.yaml", path)
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)

	fail.Store(true)
	_, err = f.DownloadToFile(context.Background(), srv.URL+"/shape_file_config.yaml", path)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: an_riks\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAdaptiveLimiter(t *testing.T) {
	a := NewAdaptiveLimiter(8, 8)
	a.OnRateLimit()
	assert.InDelta(t, 4, float64(a.Limit()), 0.001)
	a.OnRateLimit()
	a.OnRateLimit()
	assert.InDelta(t, 2, float64(a.Limit()), 0.001)

	for i := 0; i < 20; i++ {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(8), a.Limit())
}

func TestMulti(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := New(Options{RatePerSec: 50})
	body, err := m.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()

	_, err = m.Download(context.Background(), "s3://bucket/an_riks.shp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")

	_, err = m.DownloadToFile(context.Background(), "gopher://host/x", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}
