// Package dataset loads polygon shapefiles and answers point-in-polygon
// attribute queries against them.
package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Options controls how a dataset is opened.
type Options struct {
	// CRS is the EPSG identifier assigned to every geometry ("3006" or
	// "EPSG:3006"). Empty means DefaultCRS.
	CRS string
	// Encoding names the attribute charset when the dataset has no .cpg
	// sidecar. Empty means UTF-8.
	Encoding string
	// MemoSize bounds the per-dataset memo of found labels. Zero means
	// unbounded, negative disables the memo.
	MemoSize int
}

type memoKey struct {
	x, y     float64
	variable string
}

type record struct {
	area  *area
	attrs []string
}

// Dataset is a loaded polygon dataset plus the translation from logical
// variables to its attribute columns.
type Dataset struct {
	path    string
	crs     string
	srid    int
	columns []string
	colIdx  map[string]int
	records []record

	mu          sync.RWMutex
	translation map[string]string

	memo        *lru.Cache[memoKey, string]
	evaluations atomic.Int64
}

// Open reads the geometry and attribute table of the shapefile at path.
func Open(path string, opts Options) (*Dataset, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return nil, eris.Errorf("dataset: %s is not a .shp file", path)
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(stem + ".dbf"); err != nil {
		return nil, eris.Wrapf(err, "dataset: attribute table for %s", path)
	}

	crs, srid, err := NormalizeCRS(opts.CRS)
	if err != nil {
		return nil, err
	}
	checkProjection(stem, srid)
	dec := charsetFor(stem, opts.Encoding)

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	d := &Dataset{
		path:        path,
		crs:         crs,
		srid:        srid,
		columns:     make([]string, len(fields)),
		colIdx:      make(map[string]int, len(fields)),
		translation: map[string]string{},
	}
	for i, f := range fields {
		name := decodeAttr(dec, f.String())
		d.columns[i] = name
		d.colIdx[name] = i
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		rec := record{area: shapeToArea(shape, srid), attrs: make([]string, len(fields))}
		if rec.area == nil {
			skipped++
		}
		for i := range fields {
			raw := strings.TrimRight(reader.Attribute(i), "\x00")
			rec.attrs[i] = strings.TrimSpace(decodeAttr(dec, raw))
		}
		d.records = append(d.records, rec)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: read shapefile %s", path)
	}

	if opts.MemoSize >= 0 {
		size := opts.MemoSize
		if size == 0 {
			size = math.MaxInt
		}
		memo, err := lru.New[memoKey, string](size)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: create memo")
		}
		d.memo = memo
	}

	zap.L().Debug("dataset: loaded",
		zap.String("path", path),
		zap.String("crs", crs),
		zap.Int("records", len(d.records)),
		zap.Int("without_polygon", skipped),
	)
	return d, nil
}

// SetTranslation replaces the variable → column table. Memoized labels are
// dropped since they were produced under the previous table.
func (d *Dataset) SetTranslation(t map[string]string) {
	cp := make(map[string]string, len(t))
	for k, v := range t {
		cp[k] = v
	}

	d.mu.Lock()
	d.translation = cp
	d.mu.Unlock()

	if d.memo != nil {
		d.memo.Purge()
	}
}

// Query returns the label of the single record whose polygon contains
// (x, y), read from the column variable translates to. The result is absent
// when the variable has no translation, the column does not exist, or the
// number of containing records is not exactly one.
func (d *Dataset) Query(x, y float64, variable string) (string, bool) {
	key := memoKey{x: x, y: y, variable: variable}
	if d.memo != nil {
		if label, ok := d.memo.Get(key); ok {
			return label, true
		}
	}

	log := zap.L().With(zap.String("dataset", d.path), zap.String("variable", variable))

	d.mu.RLock()
	column, ok := d.translation[variable]
	d.mu.RUnlock()
	if !ok {
		log.Warn("dataset: could not translate variable")
		return "", false
	}

	idx, ok := d.colIdx[column]
	if !ok {
		log.Warn("dataset: no column for variable", zap.String("column", column))
		return "", false
	}

	d.evaluations.Add(1)
	pt := geom.Coord{x, y}
	var values []string
	for _, rec := range d.records {
		if rec.area.contains(pt) {
			values = append(values, rec.attrs[idx])
		}
	}

	if len(values) != 1 {
		log.Warn("dataset: point does not match exactly one record",
			zap.Float64("x", x),
			zap.Float64("y", y),
			zap.Int("matches", len(values)),
		)
		return "", false
	}

	if d.memo != nil {
		d.memo.Add(key, values[0])
	}
	return values[0], true
}

// Evaluations returns how many containment passes Query has run.
func (d *Dataset) Evaluations() int64 { return d.evaluations.Load() }

// Columns returns the attribute column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// CRS returns the assigned CRS as "EPSG:<code>".
func (d *Dataset) CRS() string { return d.crs }

// SRID returns the numeric EPSG code set on every geometry.
func (d *Dataset) SRID() int { return d.srid }

// Path returns the geometry file the dataset was read from.
func (d *Dataset) Path() string { return d.path }
