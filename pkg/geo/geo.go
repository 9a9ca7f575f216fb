// Package geo holds the coordinate type and the great-circle helpers shared by
// the geocoder, the stores and the nearby search.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusMeters is the mean earth radius used by every distance
	// computation in the service.
	EarthRadiusMeters = 6371000.0

	MinRadiusKm = 1
	MaxRadiusKm = 20
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90,90]", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180,180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// HaversineDistanceMeters returns the great-circle distance between a and b.
func HaversineDistanceMeters(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ClampRadiusKm bounds a client supplied search radius to [MinRadiusKm, MaxRadiusKm].
func ClampRadiusKm(km float64) float64 {
	if math.IsNaN(km) || km < MinRadiusKm {
		return MinRadiusKm
	}
	if km > MaxRadiusKm {
		return MaxRadiusKm
	}
	return km
}

// KmToMeters converts a radius in kilometers to meters.
func KmToMeters(km float64) float64 {
	return km * 1000
}

// BoundingBox is a latitude/longitude rectangle that contains every point
// within a given radius of its center. Used as an index friendly prefilter
// before the exact distance check.
type BoundingBox struct {
	MinLatitude, MaxLatitude   float64
	MinLongitude, MaxLongitude float64
}

// BoundingBoxAround returns the box enclosing the circle of radiusMeters
// around origin. Near the poles, or when the circle crosses the antimeridian,
// the longitude span widens to the full [-180,180] range.
func BoundingBoxAround(origin Coordinate, radiusMeters float64) BoundingBox {
	angular := radiusMeters / EarthRadiusMeters
	latDelta := angular * 180 / math.Pi

	box := BoundingBox{
		MinLatitude:  math.Max(origin.Latitude-latDelta, -90),
		MaxLatitude:  math.Min(origin.Latitude+latDelta, 90),
		MinLongitude: -180,
		MaxLongitude: 180,
	}

	if box.MinLatitude <= -90 || box.MaxLatitude >= 90 {
		return box
	}

	s := math.Sin(angular) / math.Cos(toRadians(origin.Latitude))
	if s >= 1 {
		return box
	}
	lonDelta := math.Asin(s) * 180 / math.Pi
	if origin.Longitude-lonDelta < -180 || origin.Longitude+lonDelta > 180 {
		return box
	}
	box.MinLongitude = origin.Longitude - lonDelta
	box.MaxLongitude = origin.Longitude + lonDelta
	return box
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Latitude >= b.MinLatitude && c.Latitude <= b.MaxLatitude &&
		c.Longitude >= b.MinLongitude && c.Longitude <= b.MaxLongitude
}

// UnitVector returns the earth-centered cartesian position of c on a unit sphere.
func UnitVector(c Coordinate) [3]float64 {
	lat, lon := toRadians(c.Latitude), toRadians(c.Longitude)
	return [3]float64{
		math.Cos(lat) * math.Cos(lon),
		math.Cos(lat) * math.Sin(lon),
		math.Sin(lat),
	}
}

// ChordLength returns the straight line distance on the unit sphere between
// two points separated by the great-circle distance meters. It grows
// monotonically with meters up to half the circumference.
func ChordLength(meters float64) float64 {
	theta := math.Min(meters/EarthRadiusMeters, math.Pi)
	return 2 * math.Sin(theta/2)
}
