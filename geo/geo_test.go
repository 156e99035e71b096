package geo

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestHaversineKM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tol              float64
	}{
		{"same point", 33.04, -97.08, 33.04, -97.08, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111.195, 0.01},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111.195, 0.01},
		{"dallas to fort worth", 32.7767, -96.7970, 32.7555, -97.3308, 49.9, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKM(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if !approx(got, tt.want, tt.tol) {
				t.Errorf("HaversineKM = %v, want %v ± %v", got, tt.want, tt.tol)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	origin := Coord{Lat: 0, Lon: 0}
	tests := []struct {
		name string
		to   Coord
		want float64
	}{
		{"north", Coord{Lat: 1, Lon: 0}, 0},
		{"east", Coord{Lat: 0, Lon: 1}, 90},
		{"south", Coord{Lat: -1, Lon: 0}, 180},
		{"west", Coord{Lat: 0, Lon: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bearing(origin, tt.to); !approx(got, tt.want, 1e-9) {
				t.Errorf("Bearing = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	start := Coord{Lat: 33.047488, Lon: -97.08459}

	end, brg := Destination(start, 15, 1000)
	if d := Distance(start, end); !approx(d, 1000, 0.01) {
		t.Errorf("expected 1000 m travelled, got %v", d)
	}
	if !approx(brg, 15, 0.01) {
		t.Errorf("expected bearing 15, got %v", brg)
	}

	same, brg := Destination(start, 93, 0)
	if same != start && !approx(same.Lat, start.Lat, 1e-12) {
		t.Errorf("zero distance moved the point: %+v", same)
	}
	if brg != 93 {
		t.Errorf("zero distance should keep the bearing, got %v", brg)
	}
}

func TestNormalizeHeading(t *testing.T) {
	for in, want := range map[float64]float64{0: 0, 359: 359, 360: 0, 361: 1, -1: 359, 725: 5} {
		if got := NormalizeHeading(in); !approx(got, want, 1e-9) {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestSpeedConversion(t *testing.T) {
	if got := MphToMetersPerSecond(25); !approx(got, 11.176, 1e-9) {
		t.Errorf("25 mph = %v m/s", got)
	}
	if got := MetersPerSecondToMph(MphToMetersPerSecond(42)); !approx(got, 42, 1e-9) {
		t.Errorf("round trip = %v", got)
	}
}
