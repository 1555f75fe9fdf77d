// Package resolver answers (x, y, variable) lookups through the memory tier,
// the persistent store and finally the dataset query engine.
package resolver

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geoattr/internal/dataset"
	"github.com/sells-group/geoattr/internal/resultcache"
)

var (
	// ErrInvalidCoordinate is returned for NaN or infinite coordinates.
	ErrInvalidCoordinate = eris.New("invalid coordinate")
	// ErrEmptyVariable is returned when no variable is given.
	ErrEmptyVariable = eris.New("empty variable")
)

// Tier names where a lookup was answered.
type Tier int

const (
	TierNone Tier = iota
	TierMemory
	TierStore
	TierEngine
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierStore:
		return "store"
	case TierEngine:
		return "engine"
	default:
		return "none"
	}
}

// Source hands out the dataset that answers a variable.
// *dataset.Registry satisfies it.
type Source interface {
	GetOrLoad(variable string) (*dataset.Dataset, error)
}

// Result is the outcome of a lookup.
type Result struct {
	Label string
	Found bool
	Tier  Tier
}

// Resolver is safe for concurrent use.
type Resolver struct {
	source  Source
	store   resultcache.Store
	memory  *resultcache.Memory
	metrics *Metrics
	group   singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics records lookups in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver. store and memory may be nil to skip that tier.
func New(source Source, store resultcache.Store, memory *resultcache.Memory, opts ...Option) *Resolver {
	r := &Resolver{source: source, store: store, memory: memory}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the label for (x, y, variable). found is false when no
// single dataset record answers; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, x, y float64, variable string) (string, bool, error) {
	res, err := r.Lookup(ctx, x, y, variable)
	if err != nil {
		return "", false, err
	}
	return res.Label, res.Found, nil
}

// Lookup is Resolve plus the tier that answered.
func (r *Resolver) Lookup(ctx context.Context, x, y float64, variable string) (Result, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Result{}, eris.Wrapf(ErrInvalidCoordinate, "resolver: (%v, %v)", x, y)
	}
	if variable == "" {
		return Result{}, ErrEmptyVariable
	}

	key := resultcache.Key{X: x, Y: y, Variable: variable}

	if r.memory != nil {
		if label, ok := r.memory.Get(key); ok {
			r.metrics.lookup(TierMemory)
			return Result{Label: label, Found: true, Tier: TierMemory}, nil
		}
	}

	if r.store != nil {
		label, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return Result{}, eris.Wrap(err, "resolver: read store")
		}
		if ok {
			if r.memory != nil {
				r.memory.Put(key, label)
			}
			r.metrics.lookup(TierStore)
			return Result{Label: label, Found: true, Tier: TierStore}, nil
		}
	}

	v, err, _ := r.group.Do(flightKey(key), func() (any, error) {
		return r.compute(ctx, key)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	r.metrics.lookup(res.Tier)
	return res, nil
}

// compute runs the dataset query and writes a found label to both tiers.
// Absent results are never written.
func (r *Resolver) compute(ctx context.Context, key resultcache.Key) (Result, error) {
	start := time.Now()
	d, err := r.source.GetOrLoad(key.Variable)
	if err != nil {
		if eris.Is(err, dataset.ErrUnknownVariable) {
			zap.L().Warn("resolver: no dataset for variable", zap.String("variable", key.Variable))
			return Result{Tier: TierNone}, nil
		}
		return Result{}, eris.Wrapf(err, "resolver: load dataset for %q", key.Variable)
	}

	label, ok := d.Query(key.X, key.Y, key.Variable)
	r.metrics.engine(start)
	if !ok {
		return Result{Tier: TierNone}, nil
	}

	if r.store != nil {
		inserted, err := r.store.Put(ctx, key, label)
		if err != nil {
			return Result{}, eris.Wrap(err, "resolver: write store")
		}
		r.metrics.storeWrite(inserted)
	}
	if r.memory != nil {
		r.memory.Put(key, label)
	}
	return Result{Label: label, Found: true, Tier: TierEngine}, nil
}

func flightKey(k resultcache.Key) string {
	return formatCoord(k.X) + "|" + formatCoord(k.Y) + "|" + k.Variable
}

func formatCoord(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
