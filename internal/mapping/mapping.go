package mapping

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// GeometryExtension is the file extension of dataset geometry files.
const GeometryExtension = ".shp"

// Mapping is the immutable variable → dataset lookup built from descriptors.
type Mapping struct {
	datasetsDir string
	byName      map[string]Descriptor
	order       []string
	paths       map[string]string
}

// Load parses the configuration document at path and builds a Mapping whose
// geometry files live in datasetsDir.
func Load(path, datasetsDir string) (*Mapping, error) {
	descs, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(descs, datasetsDir), nil
}

// New builds a Mapping. Inactive descriptors contribute nothing; a descriptor
// whose geometry file is missing contributes nothing; a variable claimed by
// an earlier descriptor is not overridden by a later one.
func New(descs []Descriptor, datasetsDir string) *Mapping {
	m := &Mapping{
		datasetsDir: datasetsDir,
		byName:      make(map[string]Descriptor, len(descs)),
		paths:       make(map[string]string),
	}
	log := zap.L().With(zap.String("component", "mapping"))

	claimedBy := make(map[string]string)
	for _, d := range descs {
		m.byName[d.Name] = d
		m.order = append(m.order, d.Name)

		if !d.Active {
			continue
		}

		path := m.pathFor(d.Name)
		if _, err := os.Stat(path); err != nil {
			log.Warn("shape file does not exist", zap.String("dataset", d.Name), zap.String("path", path))
			continue
		}

		for _, c := range d.Columns {
			if owner, ok := claimedBy[c.Variable]; ok {
				log.Warn("variable already added from other file",
					zap.String("variable", c.Variable),
					zap.String("dataset", d.Name),
					zap.String("claimed_by", owner),
				)
				continue
			}
			claimedBy[c.Variable] = d.Name
			m.paths[c.Variable] = path
		}
	}
	return m
}

// DatasetPath returns the geometry file that answers variable.
func (m *Mapping) DatasetPath(variable string) (string, bool) {
	p, ok := m.paths[variable]
	return p, ok
}

// Translation returns the variable → column table for the dataset at path,
// matched by base name. It is empty when no descriptor matches or the
// matching descriptor is inactive.
func (m *Mapping) Translation(path string) map[string]string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	d, ok := m.byName[stem]
	if !ok {
		zap.L().Error("no configuration found for shapefile", zap.String("dataset", stem))
		return map[string]string{}
	}
	if !d.Active {
		zap.L().Error("configuration for shapefile is not active", zap.String("dataset", stem))
		return map[string]string{}
	}
	return d.Translation()
}

// Variables returns every resolvable variable, sorted.
func (m *Mapping) Variables() []string {
	out := make([]string, 0, len(m.paths))
	for v := range m.paths {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Descriptors returns the descriptors in document order.
func (m *Mapping) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// DatasetsDir returns the directory geometry files are resolved against.
func (m *Mapping) DatasetsDir() string { return m.datasetsDir }

func (m *Mapping) pathFor(name string) string {
	return filepath.Join(m.datasetsDir, name+GeometryExtension)
}
