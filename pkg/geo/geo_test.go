package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	puertaDelSol = Coordinate{Latitude: 40.4169, Longitude: -3.7035}
	calleMayor   = Coordinate{Latitude: 40.4153, Longitude: -3.7074}
	barcelona    = Coordinate{Latitude: 41.3874, Longitude: 2.1686}
)

func TestHaversineDistanceMeters(t *testing.T) {
	require.InDelta(t, 0, HaversineDistanceMeters(puertaDelSol, puertaDelSol), 1e-9)

	d := HaversineDistanceMeters(puertaDelSol, calleMayor)
	require.InDelta(t, 370, d, 20)
	require.InDelta(t, d, HaversineDistanceMeters(calleMayor, puertaDelSol), 1e-9)

	require.InDelta(t, 505000, HaversineDistanceMeters(puertaDelSol, barcelona), 5000)

	// a quarter of the meridian
	require.InDelta(t, math.Pi/2*EarthRadiusMeters,
		HaversineDistanceMeters(Coordinate{0, 0}, Coordinate{90, 0}), 1e-6)
}

func TestClampRadiusKm(t *testing.T) {
	for _, tc := range []struct {
		in, want float64
	}{
		{in: 500, want: 20},
		{in: 20, want: 20},
		{in: 5, want: 5},
		{in: 1, want: 1},
		{in: 0, want: 1},
		{in: -3, want: 1},
		{in: math.NaN(), want: 1},
	} {
		require.InDelta(t, tc.want, ClampRadiusKm(tc.in), 0)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, puertaDelSol.Validate())
	require.NoError(t, Coordinate{Latitude: -90, Longitude: 180}.Validate())
	require.ErrorIs(t, Coordinate{Latitude: 91}.Validate(), ErrInvalidCoordinate)
	require.ErrorIs(t, Coordinate{Longitude: -180.5}.Validate(), ErrInvalidCoordinate)
	require.ErrorIs(t, Coordinate{Latitude: math.NaN()}.Validate(), ErrInvalidCoordinate)
}

func TestBoundingBoxAround(t *testing.T) {
	box := BoundingBoxAround(puertaDelSol, 5000)
	require.True(t, box.Contains(puertaDelSol))
	require.True(t, box.Contains(calleMayor))
	require.False(t, box.Contains(barcelona))

	// every point on the circle must be inside the box
	for bearing := 7.5; bearing < 360; bearing += 15 {
		p := destination(puertaDelSol, 5000, bearing)
		require.True(t, box.Contains(p), "bearing %v", bearing)
	}

	polar := BoundingBoxAround(Coordinate{Latitude: 89.99, Longitude: 10}, 5000)
	require.InDelta(t, -180, polar.MinLongitude, 0)
	require.InDelta(t, 180, polar.MaxLongitude, 0)

	antimeridian := BoundingBoxAround(Coordinate{Latitude: 0, Longitude: 179.99}, 5000)
	require.InDelta(t, -180, antimeridian.MinLongitude, 0)
}

func TestChordLengthMonotonic(t *testing.T) {
	prev := 0.0
	for m := 1000.0; m <= 20000; m += 1000 {
		c := ChordLength(m)
		require.Greater(t, c, prev)
		prev = c

		a := UnitVector(puertaDelSol)
		b := UnitVector(destination(puertaDelSol, m, 45))
		dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
		require.InDelta(t, c, math.Sqrt(dx*dx+dy*dy+dz*dz), 1e-9)
	}
}

// destination walks meters from origin along bearing degrees.
func destination(origin Coordinate, meters, bearing float64) Coordinate {
	d := meters / EarthRadiusMeters
	brg := toRadians(bearing)
	lat1, lon1 := toRadians(origin.Latitude), toRadians(origin.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	return Coordinate{Latitude: lat2 * 180 / math.Pi, Longitude: lon2 * 180 / math.Pi}
}
