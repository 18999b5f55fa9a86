package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	t.Run("same point is zero", func(t *testing.T) {
		p := Point{Lat: 10.9685, Lon: -74.8069}
		if d := Distance(p, p); d != 0 {
			t.Fatalf("expected 0, got %f", d)
		}
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		d := Distance(Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0})
		want := EarthRadiusMeters * math.Pi / 180
		if math.Abs(d-want) > 1 {
			t.Fatalf("expected ~%f, got %f", want, d)
		}
	})

	t.Run("seed profile is within 2km of seed store", func(t *testing.T) {
		user := Point{Lat: 10.9685, Lon: -74.8069}
		store := Point{Lat: 10.97, Lon: -74.81}
		if !Within(user, store, 2000) {
			t.Fatalf("expected within 2000m, distance %f", Distance(user, store))
		}
		if Within(user, store, 100) {
			t.Fatalf("expected outside 100m, distance %f", Distance(user, store))
		}
	})
}

func TestBoundingBox(t *testing.T) {
	center := Point{Lat: 10.97, Lon: -74.81}
	radius := 2000.0
	box := BoundingBox(center, radius)

	if !box.Contains(center) {
		t.Fatalf("box must contain its center")
	}

	// points on the circle in the four cardinal directions must be inside the box
	dLat := radius / EarthRadiusMeters * 180 / math.Pi
	for _, p := range []Point{
		{Lat: center.Lat + dLat*0.999, Lon: center.Lon},
		{Lat: center.Lat - dLat*0.999, Lon: center.Lon},
	} {
		if !box.Contains(p) {
			t.Fatalf("expected %+v inside box %+v", p, box)
		}
	}

	east := Point{Lat: center.Lat, Lon: center.Lon + 0.018}
	if Within(center, east, radius) && !box.Contains(east) {
		t.Fatalf("point within radius must be inside box")
	}

	far := Point{Lat: center.Lat + 1, Lon: center.Lon}
	if box.Contains(far) {
		t.Fatalf("expected far point outside box")
	}
}

func TestBoundingBoxNearPole(t *testing.T) {
	box := BoundingBox(Point{Lat: 89.999, Lon: 0}, 2000)
	if box.MinLon != -180 || box.MaxLon != 180 {
		t.Fatalf("expected full longitude range near pole, got %+v", box)
	}
}
