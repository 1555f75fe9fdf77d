// Package mapping resolves logical variable names to the polygon dataset and
// attribute column that answer them, as declared in the shapefile
// configuration document.
package mapping

import (
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDescriptor is returned when the configuration document is malformed.
var ErrInvalidDescriptor = eris.New("invalid dataset descriptor")

// Column maps one logical variable to a dataset-internal attribute column.
type Column struct {
	Variable string
	Column   string
}

// Descriptor is one dataset entry of the configuration document.
type Descriptor struct {
	Name    string
	Active  bool
	Columns []Column // document order
}

// Translation returns the descriptor's variable → column table.
func (d Descriptor) Translation() map[string]string {
	out := make(map[string]string, len(d.Columns))
	for _, c := range d.Columns {
		out[c.Variable] = c.Column
	}
	return out
}

type rawDescriptor struct {
	Name    string    `yaml:"name"`
	Active  *bool     `yaml:"active"`
	Mapping yaml.Node `yaml:"mapping"`
}

// ParseFile reads descriptors from a YAML file.
func ParseFile(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapping: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	descs, err := Parse(f)
	if err != nil {
		return nil, eris.Wrapf(err, "mapping: parse %s", path)
	}
	return descs, nil
}

// Parse decodes a YAML list of descriptors. Unknown keys, missing names or
// activation flags, non-string mapping entries and duplicate dataset names are
// rejected with ErrInvalidDescriptor.
func Parse(r io.Reader) ([]Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw []rawDescriptor
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: decode: %v", err)
	}

	seen := make(map[string]int, len(raw))
	descs := make([]Descriptor, 0, len(raw))
	for i, rd := range raw {
		if rd.Name == "" {
			return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: entry %d has no name", i)
		}
		if prev, ok := seen[rd.Name]; ok {
			return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: entry %d repeats dataset %q from entry %d", i, rd.Name, prev)
		}
		seen[rd.Name] = i
		if rd.Active == nil {
			return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: dataset %q has no active flag", rd.Name)
		}

		cols, err := decodeColumns(rd.Name, &rd.Mapping)
		if err != nil {
			return nil, err
		}
		descs = append(descs, Descriptor{Name: rd.Name, Active: *rd.Active, Columns: cols})
	}
	return descs, nil
}

// decodeColumns walks the mapping node so variables keep their document order.
func decodeColumns(name string, node *yaml.Node) ([]Column, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: dataset %q mapping must be an object (line %d)", name, node.Line)
	}

	cols := make([]Column, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode || k.Value == "" || v.Value == "" {
			return nil, eris.Wrapf(ErrInvalidDescriptor, "mapping: dataset %q has an invalid mapping entry (line %d)", name, k.Line)
		}
		cols = append(cols, Column{Variable: k.Value, Column: v.Value})
	}
	return cols, nil
}
