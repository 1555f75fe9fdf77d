// Package shapetest writes small polygon shapefiles for tests.
package shapetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// Feature is one polygon record: its rings (outer rings clockwise, holes
// counter-clockwise) and one attribute value per column.
type Feature struct {
	Rings [][]shp.Point
	Attrs []string
}

// Square returns a closed clockwise ring for the axis-aligned box.
func Square(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY},
		{X: minX, Y: maxY},
		{X: maxX, Y: maxY},
		{X: maxX, Y: minY},
		{X: minX, Y: minY},
	}
}

// Hole returns Square reversed, i.e. counter-clockwise.
func Hole(minX, minY, maxX, maxY float64) []shp.Point {
	sq := Square(minX, minY, maxX, maxY)
	for i, j := 0, len(sq)-1; i < j; i, j = i+1, j-1 {
		sq[i], sq[j] = sq[j], sq[i]
	}
	return sq
}

// Write creates <dir>/<name>.shp with its .shx and .dbf and returns the
// .shp path. Attribute columns are character fields.
func Write(t testing.TB, dir, name string, columns []string, features []Feature) string {
	t.Helper()

	path := filepath.Join(dir, name+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	fields := make([]shp.Field, len(columns))
	for i, c := range columns {
		fields[i] = shp.StringField(c, 64)
	}
	require.NoError(t, w.SetFields(fields))

	for _, f := range features {
		row := w.Write((*shp.Polygon)(shp.NewPolyLine(f.Rings)))
		for i, v := range f.Attrs {
			require.NoError(t, w.WriteAttribute(int(row), i, v))
		}
	}
	w.Close()

	// The writer names the attribute file "<name>dbf".
	require.NoError(t, os.Rename(filepath.Join(dir, name+"dbf"), filepath.Join(dir, name+".dbf")))
	return path
}
