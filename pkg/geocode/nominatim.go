package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vecinotech/vecinotech/pkg/geo"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "VecinoTech/1.0 (+https://vecinotech.es; contacto@vecinotech.es)"

	maxResponseBytes = 1 << 20
)

// NominatimProvider looks addresses up against an OpenStreetMap Nominatim
// search endpoint.
type NominatimProvider struct {
	baseURL        string
	userAgent      string
	acceptLanguage string
	client         *http.Client
}

var _ Provider = (*NominatimProvider)(nil)

type NominatimOption func(*NominatimProvider)

func WithBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		p.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		p.userAgent = ua
	}
}

func WithAcceptLanguage(lang string) NominatimOption {
	return func(p *NominatimProvider) {
		p.acceptLanguage = lang
	}
}

func NewNominatimProvider(client *http.Client, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:        DefaultNominatimURL,
		userAgent:      DefaultUserAgent,
		acceptLanguage: "en",
		client:         client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *NominatimProvider) Lookup(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", p.acceptLanguage)

	resp, err := p.client.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, fmt.Errorf("%w: nominatim status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: read nominatim body: %w", ErrUpstreamUnavailable, err)
	}

	return parseNominatim(body)
}

func parseNominatim(body []byte) (geo.Coordinate, error) {
	if !gjson.ValidBytes(body) {
		return geo.Coordinate{}, fmt.Errorf("%w: malformed nominatim response", ErrUpstreamUnavailable)
	}

	root := gjson.ParseBytes(body)
	if !root.IsArray() || len(root.Array()) == 0 {
		return geo.Coordinate{}, ErrNoResults
	}

	lat, lon := root.Get("0.lat"), root.Get("0.lon")
	if !lat.Exists() || !lon.Exists() {
		return geo.Coordinate{}, ErrNoResults
	}

	c, err := toCoordinate(lat, lon)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return c, nil
}

// Nominatim encodes coordinates as strings, but accept plain numbers too.
func toCoordinate(lat, lon gjson.Result) (geo.Coordinate, error) {
	parse := func(r gjson.Result) (float64, error) {
		if r.Type == gjson.Number {
			return r.Num, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
	}

	la, err := parse(lat)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("parse latitude %q: %w", lat.String(), err)
	}
	lo, err := parse(lon)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("parse longitude %q: %w", lon.String(), err)
	}

	c := geo.Coordinate{Latitude: la, Longitude: lo}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return c, nil
}
