package table

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mhc-map/mhc-geo/internal/model"
)

// Columns names the columns the pipeline reads and writes.
type Columns struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Address   string `yaml:"address" mapstructure:"address"`
	CityState string `yaml:"city_state" mapstructure:"city_state"`
	ZIP       string `yaml:"zip" mapstructure:"zip"`
	Latitude  string `yaml:"latitude" mapstructure:"latitude"`
	Longitude string `yaml:"longitude" mapstructure:"longitude"`
}

// DefaultColumns returns the MHVillage export column names.
func DefaultColumns() Columns {
	return Columns{
		Name:      "Name",
		Address:   "Address",
		CityState: "City State",
		ZIP:       "ZIP",
		Latitude:  "latitude",
		Longitude: "longitude",
	}
}

// KeyColumns returns the composite key used to match manual corrections.
func (c Columns) KeyColumns() []string {
	return []string{c.Name, c.Address, c.CityState, c.ZIP}
}

// missingTokens are the lower-cased cell values treated as "no coordinate".
var missingTokens = map[string]bool{
	"":          true,
	"nan":       true,
	"none":      true,
	"null":      true,
	"not found": true,
}

// IsMissing reports whether a cell holds no usable value. Empty cells, NaN
// and the literal "Not found" are equivalent.
func IsMissing(v string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(v))]
}

// MissingRows returns the indices of rows whose latitude or longitude is missing.
func (t *Table) MissingRows(c Columns) []int {
	var rows []int
	for i := range t.Rows {
		if t.RowMissing(i, c) {
			rows = append(rows, i)
		}
	}
	return rows
}

// RowMissing reports whether row i lacks a coordinate.
func (t *Table) RowMissing(i int, c Columns) bool {
	return IsMissing(t.Get(i, c.Latitude)) || IsMissing(t.Get(i, c.Longitude))
}

// NormalizeMissing rewrites every missing coordinate cell as empty so that
// all missing states are persisted the same way.
func (t *Table) NormalizeMissing(c Columns) {
	for _, col := range []string{c.Latitude, c.Longitude} {
		idx, ok := t.Col(col)
		if !ok {
			continue
		}
		for i := range t.Rows {
			if IsMissing(t.Rows[i][idx]) {
				t.Rows[i][idx] = ""
			}
		}
	}
}

// SetCoordinate writes a resolved coordinate into row i.
func (t *Table) SetCoordinate(i int, c Columns, lat, lon float64) {
	t.Set(i, c.Latitude, FormatCoord(lat))
	t.Set(i, c.Longitude, FormatCoord(lon))
}

// Coordinate parses the coordinate of row i.
func (t *Table) Coordinate(i int, c Columns) (model.Coordinate, bool) {
	lat, okLat := ParseCoord(t.Get(i, c.Latitude))
	lon, okLon := ParseCoord(t.Get(i, c.Longitude))
	return model.Coordinate{Lat: lat, Lon: lon}, okLat && okLon
}

// FormatCoord renders a coordinate with the shortest exact representation.
func FormatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseCoord parses a coordinate cell, rejecting missing and non-finite values.
func ParseCoord(v string) (float64, bool) {
	if IsMissing(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var zeroFraction = regexp.MustCompile(`^(\d+)\.0*$`)

// NormalizeZIP coerces a postal code to its canonical string form.
// Float-encoded values such as "60002.0" become "60002"; values that do not
// look numeric are returned trimmed.
func NormalizeZIP(v string) string {
	s := strings.TrimSpace(v)
	if IsMissing(s) {
		return ""
	}
	if isDigits(s) {
		return s
	}
	if m := zeroFraction.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1e15 {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Key returns the composite key of row i. The ZIP part is normalized so that
// "60002" and "60002.0" match.
func (t *Table) Key(i int, c Columns) string {
	parts := make([]string, 0, 4)
	for _, col := range c.KeyColumns() {
		v := t.Get(i, col)
		if col == c.ZIP {
			v = NormalizeZIP(v)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "\x1f")
}

// ExpandedQuery builds "street, city_state[, zip]" for row i. Missing parts
// are left out.
func (t *Table) ExpandedQuery(i int, c Columns) string {
	var parts []string
	for _, v := range []string{t.Get(i, c.Address), t.Get(i, c.CityState)} {
		if !IsMissing(v) {
			parts = append(parts, v)
		}
	}
	if t.HasCol(c.ZIP) {
		if z := NormalizeZIP(t.Get(i, c.ZIP)); !IsMissing(z) {
			parts = append(parts, z)
		}
	}
	return strings.Join(parts, ", ")
}
