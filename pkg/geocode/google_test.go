package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleGeocode_Success(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 41.525, "lng": -88.081},
					"location_type": "RANGE_INTERPOLATED"
				},
				"formatted_address": "1 Lake Dr, Joliet, IL 60435, USA"
			}]
		}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", newRewriteClient(srv.URL, googleGeocodeURL), newTestLimiter())

	result, err := p.Geocode(context.Background(), "1 Lake Dr, Joliet, IL")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 41.525, result.Latitude, 0.001)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, "range", result.Quality)
	assert.Equal(t, "test-key", gotKey)
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", newRewriteClient(srv.URL, googleGeocodeURL), newTestLimiter())

	result, err := p.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	p := NewGoogleProvider("", nil, nil)

	assert.False(t, p.Available())
	_, err := p.Geocode(context.Background(), "1 Lake Dr")
	require.Error(t, err)
}

func TestGoogleLocationTypeToQuality(t *testing.T) {
	assert.Equal(t, "rooftop", googleLocationTypeToQuality("ROOFTOP"))
	assert.Equal(t, "range", googleLocationTypeToQuality("range_interpolated"))
	assert.Equal(t, "centroid", googleLocationTypeToQuality("GEOMETRIC_CENTER"))
	assert.Equal(t, "approximate", googleLocationTypeToQuality("APPROXIMATE"))
	assert.Equal(t, "approximate", googleLocationTypeToQuality(""))
}
