package geocode

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/mhc-map/mhc-geo/internal/db"
	"github.com/mhc-map/mhc-geo/internal/resilience"
)

// Provider names accepted in configuration.
const (
	ProviderNominatim = "nominatim"
	ProviderCensus    = "census"
	ProviderGoogle    = "google"
	ProviderTiger     = "tiger"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
	Available() bool
}

// Settings carries what is needed to build providers by name.
type Settings struct {
	HTTPClient   *http.Client
	RateLimitRPS float64
	UserAgent    string
	NominatimURL string
	CountryCodes string
	GoogleAPIKey string
	TigerPool    db.Pool
	MaxRating    int
}

// NewProviders builds providers in the order named. Unknown names are an error.
func NewProviders(names []string, s Settings) ([]Provider, error) {
	hc := s.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	var out []Provider
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ProviderNominatim:
			out = append(out, NewNominatimProvider(s.UserAgent,
				WithNominatimURL(s.NominatimURL),
				WithNominatimCountryCodes(s.CountryCodes),
				WithNominatimHTTPClient(hc),
				WithNominatimRateLimit(s.RateLimitRPS),
			))
		case ProviderCensus:
			out = append(out, NewCensusProvider(hc, newLimiter(s.RateLimitRPS, 50)))
		case ProviderGoogle:
			out = append(out, NewGoogleProvider(s.GoogleAPIKey, hc, newLimiter(s.RateLimitRPS, 50)))
		case ProviderTiger:
			out = append(out, NewTigerProvider(s.TigerPool, s.MaxRating))
		default:
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("geocode: no providers configured")
	}
	return out, nil
}

// newLimiter returns a limiter for rps, falling back to def when rps <= 0.
func newLimiter(rps, def float64) *rate.Limiter {
	if rps <= 0 {
		rps = def
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// statusError builds an error for a non-200 response, marking 429 and 5xx
// as transient.
func statusError(provider string, code int) error {
	err := eris.Errorf("geocode: %s returned status %d", provider, code)
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}
