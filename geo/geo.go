// Package geo provides the spherical-earth helpers used to move and place
// vehicles. Distances are in metres, angles in degrees.
package geo

import "math"

// EarthRadiusM is the mean earth radius in metres.
const EarthRadiusM = 6371e3

const metersPerSecondPerMph = 0.44704

// Coord is a latitude/longitude pair in degrees.
type Coord struct {
	Lat float64
	Lon float64
}

func ToRadians(deg float64) float64 { return deg / 180 * math.Pi }

func ToDegrees(rad float64) float64 { return rad / math.Pi * 180 }

// MphToMetersPerSecond converts miles per hour to metres per second.
func MphToMetersPerSecond(mph float64) float64 { return mph * metersPerSecondPerMph }

// MetersPerSecondToMph converts metres per second to miles per hour.
func MetersPerSecondToMph(mps float64) float64 { return mps / metersPerSecondPerMph }

// HaversineKM returns the great-circle distance between two points in kilometres.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(Coord{lat1, lon1}, Coord{lat2, lon2}) / 1000
}

// Distance returns the great-circle distance from a to b in metres.
func Distance(a, b Coord) float64 {
	la1 := ToRadians(a.Lat)
	la2 := ToRadians(b.Lat)
	dLat := la2 - la1
	dLon := ToRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing from a to b, normalized to [0, 360).
func Bearing(a, b Coord) float64 {
	la1 := ToRadians(a.Lat)
	la2 := ToRadians(b.Lat)
	dLon := ToRadians(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	return NormalizeHeading(ToDegrees(math.Atan2(y, x)))
}

// Destination travels distance metres from start along bearing and returns
// the end point together with the bearing from start to that point.
func Destination(start Coord, bearing, distance float64) (Coord, float64) {
	d := distance / EarthRadiusM
	la1 := ToRadians(start.Lat)
	lo1 := ToRadians(start.Lon)
	brg := ToRadians(bearing)

	la2 := math.Asin(math.Sin(la1)*math.Cos(d) + math.Cos(la1)*math.Sin(d)*math.Cos(brg))
	lo2 := lo1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(la1), math.Cos(d)-math.Sin(la1)*math.Sin(la2))

	end := Coord{Lat: ToDegrees(la2), Lon: ToDegrees(lo2)}
	if distance == 0 {
		return end, NormalizeHeading(bearing)
	}
	return end, Bearing(start, end)
}

// NormalizeHeading maps any angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}
