//go:generate mockgen -source provider.go -destination ./mocks/mock_provider.go -package mocks Provider

package geocode

import (
	"context"
	"errors"

	"github.com/vecinotech/vecinotech/pkg/geo"
)

var (
	// ErrNoResults is returned by a Provider that answered but found nothing.
	ErrNoResults = errors.New("geocode: no results")

	// ErrGeocodeExhausted means every cascade step missed. It is a valid
	// "no location" outcome rather than a failure.
	ErrGeocodeExhausted = errors.New("geocode: all cascade steps failed")

	// ErrUpstreamUnavailable marks a transport or provider failure.
	ErrUpstreamUnavailable = errors.New("geocode: upstream unavailable")
)

// Provider performs a single free text address lookup.
type Provider interface {
	Lookup(ctx context.Context, query string) (geo.Coordinate, error)
}
