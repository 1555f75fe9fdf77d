// Package refresh downloads the dataset configuration document and the
// shapefile components it names from a remote source.
package refresh

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geoattr/internal/config"
	"github.com/sells-group/geoattr/internal/fetcher"
	"github.com/sells-group/geoattr/internal/mapping"
	"github.com/sells-group/geoattr/internal/resilience"
)

// ErrTransfer matches any failed download returned by Sync.
var ErrTransfer = eris.New("refresh: transfer failed")

// TransferError records which URL could not be downloaded.
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return "refresh: transfer " + e.URL + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransfer) true for every TransferError.
func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

var (
	requiredExts = []string{".shp", ".shx", ".dbf"}
	optionalExts = []string{".prj", ".cpg"}
)

// DefaultConcurrency bounds parallel dataset downloads.
const DefaultConcurrency = 4

// Syncer mirrors a remote configuration directory locally.
type Syncer struct {
	Fetcher     fetcher.Fetcher
	Retry       resilience.RetryConfig
	Concurrency int
}

// Report summarizes a Sync.
type Report struct {
	ConfigFiles int
	Datasets    int
	Files       int64
	Bytes       int64
	// Missing lists optional files the source did not have.
	Missing []string
}

// Sync downloads every known configuration document from sourceURL into
// configDir, then every dataset the documents name into datasetsDir.
// Existing local files are replaced only by complete downloads.
func (s *Syncer) Sync(ctx context.Context, sourceURL, configDir, datasetsDir string) (*Report, error) {
	if sourceURL == "" {
		return nil, eris.New("refresh: no source url configured")
	}
	if datasetsDir == "" {
		datasetsDir = configDir
	}
	for _, dir := range []string{configDir, datasetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "refresh: create %s", dir)
		}
	}

	rep := &Report{}
	var descs []mapping.Descriptor
	for _, name := range config.ConfigFileNames {
		dst := filepath.Join(configDir, name)
		n, err := s.fetch(ctx, sourceURL, name, dst)
		if err != nil {
			return rep, err
		}
		rep.ConfigFiles++
		rep.Files++
		rep.Bytes += n

		parsed, err := mapping.ParseFile(dst)
		if err != nil {
			return rep, eris.Wrapf(err, "refresh: parse %s", name)
		}
		descs = append(descs, parsed...)
	}

	zap.L().Info("refresh: downloading datasets",
		zap.String("source", sourceURL),
		zap.Int("datasets", len(descs)),
	)

	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var files, bytes atomic.Int64
	var mu sync.Mutex
	for _, d := range descs {
		g.Go(func() error {
			n, count, missing, err := s.fetchDataset(gctx, sourceURL, datasetsDir, d.Name)
			files.Add(count)
			bytes.Add(n)
			if len(missing) > 0 {
				mu.Lock()
				rep.Missing = append(rep.Missing, missing...)
				mu.Unlock()
			}
			return err
		})
	}
	err := g.Wait()

	rep.Datasets = len(descs)
	rep.Files += files.Load()
	rep.Bytes += bytes.Load()
	if err != nil {
		return rep, err
	}

	zap.L().Info("refresh: complete",
		zap.Int64("files", rep.Files),
		zap.Int64("bytes", rep.Bytes),
		zap.Strings("missing", rep.Missing),
	)
	return rep, nil
}

func (s *Syncer) fetchDataset(ctx context.Context, sourceURL, dir, name string) (n, files int64, missing []string, err error) {
	for _, ext := range requiredExts {
		written, err := s.fetch(ctx, sourceURL, name+ext, filepath.Join(dir, name+ext))
		if err != nil {
			return n, files, missing, err
		}
		n += written
		files++
	}
	for _, ext := range optionalExts {
		written, err := s.fetch(ctx, sourceURL, name+ext, filepath.Join(dir, name+ext))
		if eris.Is(err, fetcher.ErrNotFound) {
			missing = append(missing, name+ext)
			continue
		}
		if err != nil {
			return n, files, missing, err
		}
		n += written
		files++
	}
	return n, files, missing, nil
}

// fetch downloads one file with retries. Not-found errors keep ErrNotFound
// in their chain so optional files can be skipped.
func (s *Syncer) fetch(ctx context.Context, sourceURL, name, dst string) (int64, error) {
	src, err := url.JoinPath(sourceURL, name)
	if err != nil {
		return 0, &TransferError{URL: sourceURL, Err: err}
	}

	cfg := s.Retry
	cfg.OnRetry = resilience.RetryLogger("download", src)
	n, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (int64, error) {
		return s.Fetcher.DownloadToFile(ctx, src, dst)
	})
	if err != nil {
		return 0, &TransferError{URL: src, Err: err}
	}

	zap.L().Debug("refresh: downloaded", zap.String("url", src), zap.Int64("bytes", n))
	return n, nil
}
