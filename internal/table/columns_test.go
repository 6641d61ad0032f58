package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "  ", "nan", "NaN", "Not found", "not found ", "None", "null"} {
		assert.True(t, IsMissing(v), "%q should be missing", v)
	}
	for _, v := range []string{"0", "41.8", "-87.6", "found"} {
		assert.False(t, IsMissing(v), "%q should not be missing", v)
	}
}

func TestMissingRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(parksCSV))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, tbl.MissingRows(DefaultColumns()))
}

func TestMissingRows_OneSideMissing(t *testing.T) {
	tbl := New([]string{"latitude", "longitude"}, [][]string{{"41.8", ""}, {"", "-87.6"}, {"1", "2"}})

	assert.Equal(t, []int{0, 1}, tbl.MissingRows(DefaultColumns()))
}

func TestNormalizeMissing(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(parksCSV))
	require.NoError(t, err)
	cols := DefaultColumns()

	tbl.NormalizeMissing(cols)

	assert.Equal(t, "", tbl.Get(2, "latitude"))
	assert.Equal(t, "", tbl.Get(2, "longitude"))
	assert.Equal(t, "40.69", tbl.Get(1, "latitude"))
}

func TestSetCoordinate(t *testing.T) {
	tbl := New([]string{"Address"}, [][]string{{"1 Main"}})
	cols := DefaultColumns()

	tbl.SetCoordinate(0, cols, 41.8, -87.6)

	coord, ok := tbl.Coordinate(0, cols)
	require.True(t, ok)
	assert.InDelta(t, 41.8, coord.Lat, 1e-9)
	assert.InDelta(t, -87.6, coord.Lon, 1e-9)
	assert.Equal(t, "41.8", tbl.Get(0, "latitude"))
}

func TestParseCoord(t *testing.T) {
	_, ok := ParseCoord("Not found")
	assert.False(t, ok)
	_, ok = ParseCoord("abc")
	assert.False(t, ok)
	_, ok = ParseCoord("Inf")
	assert.False(t, ok)

	f, ok := ParseCoord(" 42.5 ")
	assert.True(t, ok)
	assert.InDelta(t, 42.5, f, 1e-9)
}

func TestNormalizeZIP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"60002.0", "60002"},
		{"60002", "60002"},
		{" 60002 ", "60002"},
		{"02134.0", "02134"},
		{"6.0002e4", "60002"},
		{"60002.7", "60002"},
		{"60002-1234", "60002-1234"},
		{" IL 60002 ", "IL 60002"},
		{"", ""},
		{"nan", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeZIP(tt.in), "NormalizeZIP(%q)", tt.in)
	}
}

func TestKey_NormalizesZIP(t *testing.T) {
	a := New([]string{"Name", "Address", "City State", "ZIP"}, [][]string{{"Oak Park", "123 Elm St", "Chicago, IL", "60002.0"}})
	b := New([]string{"ZIP", "Name", "Address", "City State"}, [][]string{{"60002", " Oak Park", "123 Elm St", "Chicago, IL"}})
	cols := DefaultColumns()

	assert.Equal(t, a.Key(0, cols), b.Key(0, cols))
}

func TestExpandedQuery(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(parksCSV))
	require.NoError(t, err)
	cols := DefaultColumns()

	assert.Equal(t, "123 Elm St, Chicago, IL, 60002", tbl.ExpandedQuery(0, cols))
	assert.Equal(t, "1 Lake Dr, Joliet, IL", tbl.ExpandedQuery(2, cols))
}

func TestExpandedQuery_SkipsMissingParts(t *testing.T) {
	tbl := New([]string{"Address", "City State", "ZIP"}, [][]string{
		{"nan", "Chicago, IL", "60002"},
		{"1 Elm", "None", "NaN"},
		{"", "", ""},
	})
	cols := DefaultColumns()

	assert.Equal(t, "Chicago, IL, 60002", tbl.ExpandedQuery(0, cols))
	assert.Equal(t, "1 Elm", tbl.ExpandedQuery(1, cols))
	assert.Equal(t, "", tbl.ExpandedQuery(2, cols))
}

func TestExpandedQuery_NoZIPColumn(t *testing.T) {
	tbl := New([]string{"Address", "City State"}, [][]string{{"9 Pine Rd", "Peoria, IL"}})

	assert.Equal(t, "9 Pine Rd, Peoria, IL", tbl.ExpandedQuery(0, DefaultColumns()))
}
