package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// ToOrb converts the point to orb's lon/lat order.
func (p Point) ToOrb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Distance returns the great-circle distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	return orbgeo.DistanceHaversine(p1.ToOrb(), p2.ToOrb())
}

// Bearing returns the initial bearing from p1 to p2 in degrees,
// normalized to [0, 360).
func Bearing(p1, p2 Point) float64 {
	return math.Mod(orbgeo.Bearing(p1.ToOrb(), p2.ToOrb())+360.0, 360.0)
}

// Cardinal maps a bearing to one of the eight compass names,
// lowercase for use inside running text.
func Cardinal(bearing float64) string {
	dirs := []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}
	norm := math.Mod(bearing+360.0, 360.0)
	idx := int((norm+22.5)/45.0) % 8
	return dirs[idx]
}

// CardinalBetween returns the compass name of the direction from p1 to p2.
func CardinalBetween(p1, p2 Point) string {
	return Cardinal(Bearing(p1, p2))
}

// HumanRound rounds a value the way a person would say it:
// whole numbers below ten, fives below a hundred, tens above.
func HumanRound(val float64) float64 {
	if val < 10 {
		return math.Round(val)
	}
	if val < 100 {
		return math.Round(val/5.0) * 5.0
	}
	return math.Round(val/10.0) * 10.0
}
