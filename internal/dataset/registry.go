package dataset

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownVariable is returned when no active dataset declares a variable.
var ErrUnknownVariable = eris.New("unknown variable")

// PathSource maps variables to dataset files and dataset files to their
// translation tables. *mapping.Mapping satisfies it.
type PathSource interface {
	DatasetPath(variable string) (string, bool)
	Translation(path string) map[string]string
}

// Registry opens each dataset at most once and hands out the shared instance.
type Registry struct {
	source PathSource
	opts   Options

	mu     sync.RWMutex
	loaded map[string]*Dataset
	group  singleflight.Group
}

// NewRegistry creates a Registry that opens datasets with opts.
func NewRegistry(source PathSource, opts Options) *Registry {
	return &Registry{
		source: source,
		opts:   opts,
		loaded: make(map[string]*Dataset),
	}
}

// GetOrLoad returns the dataset that answers variable, opening it on first
// use. Concurrent first uses of one path share a single open. A failed open
// is not remembered; the next call tries again.
func (r *Registry) GetOrLoad(variable string) (*Dataset, error) {
	path, ok := r.source.DatasetPath(variable)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownVariable, "dataset: %q", variable)
	}

	r.mu.RLock()
	d, ok := r.loaded[path]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	v, err, _ := r.group.Do(path, func() (any, error) {
		r.mu.RLock()
		d, ok := r.loaded[path]
		r.mu.RUnlock()
		if ok {
			return d, nil
		}

		zap.L().Info("dataset: loading", zap.String("path", path))
		d, err := Open(path, r.opts)
		if err != nil {
			return nil, err
		}
		d.SetTranslation(r.source.Translation(path))

		r.mu.Lock()
		r.loaded[path] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// Loaded lists the paths of opened datasets, sorted.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.loaded))
	for p := range r.loaded {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
