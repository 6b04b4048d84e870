package policy

import (
	"math"

	"whatado/event-service/internal/models"
)

// WithinRange reports whether b lies within radius of a. Distance is planar in
// coordinate degrees, the same unit ST_Distance uses on an SRID 0 point, and
// the boundary is inclusive.
func WithinRange(a, b *models.Point, radius float64) bool {
	if a == nil || b == nil || radius < 0 || math.IsNaN(radius) {
		return false
	}
	return PlanarDistance(*a, *b) <= radius
}

// PlanarDistance is the euclidean distance between two points in degrees
func PlanarDistance(a, b models.Point) float64 {
	return math.Hypot(a.Lng-b.Lng, a.Lat-b.Lat)
}
