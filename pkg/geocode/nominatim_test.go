package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/retryablehttp"
)

func TestNominatimProvider(t *testing.T) {
	for _, tc := range []struct {
		name      string
		status    int
		body      string
		want      geo.Coordinate
		expectErr error
	}{
		{
			name:   "string_coordinates",
			status: http.StatusOK,
			body:   `[{"place_id":1,"lat":"40.4153","lon":"-3.7074","display_name":"Calle Mayor"}]`,
			want:   geo.Coordinate{Latitude: 40.4153, Longitude: -3.7074},
		},
		{
			name:   "numeric_coordinates",
			status: http.StatusOK,
			body:   `[{"lat":41.38,"lon":2.17}]`,
			want:   geo.Coordinate{Latitude: 41.38, Longitude: 2.17},
		},
		{
			name:      "empty_result",
			status:    http.StatusOK,
			body:      `[]`,
			expectErr: ErrNoResults,
		},
		{
			name:      "missing_fields",
			status:    http.StatusOK,
			body:      `[{"place_id":1}]`,
			expectErr: ErrNoResults,
		},
		{
			name:      "malformed_body",
			status:    http.StatusOK,
			body:      `<html>`,
			expectErr: ErrUpstreamUnavailable,
		},
		{
			name:      "out_of_range",
			status:    http.StatusOK,
			body:      `[{"lat":"140","lon":"0"}]`,
			expectErr: ErrUpstreamUnavailable,
		},
		{
			name:      "rate_limited",
			status:    http.StatusTooManyRequests,
			body:      `[]`,
			expectErr: ErrUpstreamUnavailable,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/search", r.URL.Path)
				require.Equal(t, "Calle Mayor 5, Madrid, Spain", r.URL.Query().Get("q"))
				require.Equal(t, "json", r.URL.Query().Get("format"))
				require.Equal(t, "1", r.URL.Query().Get("limit"))
				require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
				require.Equal(t, "application/json", r.Header.Get("Accept"))
				require.Equal(t, "es", r.Header.Get("Accept-Language"))

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewNominatimProvider(srv.Client(),
				WithBaseURL(srv.URL+"/"),
				WithUserAgent("test-agent"),
				WithAcceptLanguage("es"))

			got, err := p.Lookup(context.Background(), "Calle Mayor 5, Madrid, Spain")
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNominatimProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := retryablehttp.DefaultConfig()
	cfg.ReadTimeout = 20 * time.Millisecond

	p := NewNominatimProvider(retryablehttp.StandardClient(cfg, nil), WithBaseURL(srv.URL))
	_, err := p.Lookup(context.Background(), "Madrid, Spain")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

// The cascade and the provider together, against a fake upstream that only
// knows postal codes.
func TestCascadeAgainstNominatim(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		if q == "28013, Spain" {
			_, _ = w.Write([]byte(`[{"lat":"40.4147","lon":"-3.7101"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewCascadeGeocoder(NewNominatimProvider(srv.Client(), WithBaseURL(srv.URL)))
	got, err := g.Resolve(context.Background(), calleMayor)
	require.NoError(t, err)
	require.Equal(t, postcode, got)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, queries, 4)
}
