package geocode

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/db"
)

// TigerProvider geocodes via the PostGIS TIGER geocoder extension.
type TigerProvider struct {
	pool      db.Pool
	maxRating int
}

// NewTigerProvider creates a TigerProvider with the given pool and max rating threshold.
func NewTigerProvider(pool db.Pool, maxRating int) *TigerProvider {
	if maxRating <= 0 {
		maxRating = 20
	}
	return &TigerProvider{pool: pool, maxRating: maxRating}
}

// Name implements Provider.
func (p *TigerProvider) Name() string { return ProviderTiger }

// Available implements Provider. TIGER needs a Postgres store.
func (p *TigerProvider) Available() bool { return p.pool != nil }

// Geocode implements Provider.
func (p *TigerProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if p.pool == nil {
		return nil, eris.New("geocode: tiger requires a postgres pool")
	}

	var lat, lon float64
	var rating int
	var matchedAddr string

	row := p.pool.QueryRow(ctx, `
		SELECT
			ST_Y(geomout) AS lat,
			ST_X(geomout) AS lon,
			rating,
			pprint_addy(addy) AS matched_address
		FROM geocode($1, 1)`,
		query,
	)

	if err := row.Scan(&lat, &lon, &rating, &matchedAddr); err != nil {
		zap.L().Debug("tiger provider: no match",
			zap.String("query", query),
			zap.Error(err),
		)
		return &Result{Matched: false, Source: ProviderTiger}, nil
	}

	if rating > p.maxRating {
		zap.L().Debug("tiger provider: rating exceeds threshold",
			zap.String("query", query),
			zap.Int("rating", rating),
			zap.Int("max_rating", p.maxRating),
		)
		return &Result{Matched: false, Source: ProviderTiger, Rating: rating}, nil
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      ProviderTiger,
		Quality:     ratingToQuality(rating),
		DisplayName: matchedAddr,
		Rating:      rating,
		Matched:     true,
	}, nil
}

// ratingToQuality maps PostGIS geocoder rating to quality taxonomy.
// Lower ratings are better: 0 = exact match.
func ratingToQuality(rating int) string {
	switch {
	case rating < 10:
		return "rooftop"
	case rating < 20:
		return "range"
	case rating < 50:
		return "centroid"
	default:
		return "approximate"
	}
}
