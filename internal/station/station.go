// Package station resolves a fixed, read-only catalog of airport
// coordinates used to compute real magnetic variation for the stations the
// service commonly serves. An unlisted ICAO has no resolvable coordinates,
// which callers treat as "variation unknown" rather than an error.
package station

import (
	"time"

	"github.com/flightassist/skyguard/internal/physics"
)

// Coordinates is a station's position for WMM lookups.
type Coordinates struct {
	Lat    float64
	Lon    float64
	ElevFt float64
}

var catalog = map[string]Coordinates{
	"KDEN": {Lat: 39.8561, Lon: -104.6737, ElevFt: 5431},
	"KBDU": {Lat: 40.0394, Lon: -105.2255, ElevFt: 5288},
	"KMCO": {Lat: 28.4294, Lon: -81.3089, ElevFt: 96},
	"KJFK": {Lat: 40.6413, Lon: -73.7781, ElevFt: 13},
	"KLAX": {Lat: 33.9416, Lon: -118.4085, ElevFt: 125},
	"KORD": {Lat: 41.9742, Lon: -87.9073, ElevFt: 672},
	"KATL": {Lat: 33.6407, Lon: -84.4277, ElevFt: 1026},
	"KSFO": {Lat: 37.6213, Lon: -122.3790, ElevFt: 13},
	"KSEA": {Lat: 47.4502, Lon: -122.3088, ElevFt: 433},
	"KMIA": {Lat: 25.7959, Lon: -80.2870, ElevFt: 8},
	"RPLL": {Lat: 14.5086, Lon: 121.0194, ElevFt: 75},
}

// Lookup returns the catalog entry for icao, if any.
func Lookup(icao string) (Coordinates, bool) {
	c, ok := catalog[icao]
	return c, ok
}

// Variation returns the WMM magnetic declination for icao at the given
// time, or nil if icao has no catalog entry.
func Variation(icao string, now time.Time) *float64 {
	coords, ok := catalog[icao]
	if !ok {
		return nil
	}
	v := physics.CalculateMagneticVariation(coords.Lat, coords.Lon, coords.ElevFt, now)
	return &v
}
