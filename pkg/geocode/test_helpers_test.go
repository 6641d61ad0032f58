package geocode

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &multiRewriteTransport{
			base:     http.DefaultTransport,
			rewrites: map[string]string{targetPrefix: testServerURL},
		},
	}
}

// multiRewriteTransport redirects requests by URL prefix.
type multiRewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string
}

func (t *multiRewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, target := range t.rewrites {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(target + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// mockProvider implements Provider for testing cascade behavior.
type mockProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     int
	queries   []string
}

func (m *mockProvider) Name() string    { return m.name }
func (m *mockProvider) Available() bool { return m.available }
func (m *mockProvider) Geocode(_ context.Context, q string) (*Result, error) {
	m.calls++
	m.queries = append(m.queries, q)
	return m.result, m.err
}

// memCache is an in-memory Cache.
type memCache struct {
	entries map[string]Result
	getErr  error
	puts    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]Result)} }

func (c *memCache) GetGeocode(_ context.Context, key string) (*Result, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	r, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (c *memCache) PutGeocode(_ context.Context, key, _ string, r Result) error {
	c.puts++
	c.entries[key] = r
	return nil
}
