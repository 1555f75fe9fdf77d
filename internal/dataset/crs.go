package dataset

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCRS is the EPSG code assigned to datasets when none is configured
// (SWEREF 99 TM).
const DefaultCRS = "3006"

var prjAuthority = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// NormalizeCRS turns "3006", "EPSG:3006" or "urn:ogc:def:crs:EPSG::3006" into
// "EPSG:3006" and its numeric code.
func NormalizeCRS(id string) (string, int, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		s = DefaultCRS
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return "", 0, eris.Errorf("dataset: invalid CRS %q", id)
	}
	return "EPSG:" + strconv.Itoa(code), code, nil
}

// checkProjection compares the EPSG code declared in the dataset's .prj
// sidecar with the configured one. The configured code always wins; a
// mismatch is only reported.
func checkProjection(stem string, code int) {
	data, err := os.ReadFile(stem + ".prj")
	if err != nil {
		return
	}

	matches := prjAuthority.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		zap.L().Debug("dataset: projection file declares no EPSG authority", zap.String("dataset", stem))
		return
	}

	// The outermost AUTHORITY closes the WKT, so it is the last one.
	declared, err := strconv.Atoi(string(matches[len(matches)-1][1]))
	if err != nil || declared == code {
		return
	}
	zap.L().Warn("dataset: projection file disagrees with configured CRS",
		zap.String("dataset", stem),
		zap.Int("declared_epsg", declared),
		zap.Int("configured_epsg", code),
	)
}
