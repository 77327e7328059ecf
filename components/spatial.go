package components

import (
	"math"
	"math/rand"
)

// TwoPi is one full turn in radians.
const TwoPi = 2 * math.Pi

// headingNoise is the width of the symmetric perturbation added on every
// rotation (±0.0005 rad). It keeps agents from locking into a two-heading cycle.
const headingNoise = 0.001

// Location represents an entity's world position and heading.
// Each entity owns its Location; it is never shared.
type Location struct {
	X, Y    float64
	Heading float64 // radians, [0, 2π)
}

// Distance returns the Euclidean distance to other.
func (l Location) Distance(other Location) float64 {
	return math.Hypot(other.X-l.X, other.Y-l.Y)
}

// BearingTo returns the absolute angle from l to other.
func (l Location) BearingTo(other Location) float64 {
	return math.Atan2(other.Y-l.Y, other.X-l.X)
}

// Rotate turns the heading by delta plus a small random perturbation.
func (l *Location) Rotate(delta float64, rng *rand.Rand) {
	l.Heading = NormalizeHeading(l.Heading + delta + (rng.Float64()-0.5)*headingNoise)
}

// RotateTowards turns the heading to face target.
func (l *Location) RotateTowards(target Location, rng *rand.Rand) {
	l.Rotate(l.BearingTo(target)-l.Heading, rng)
}

// MoveForward advances the location along its heading by distance.
//
// The entity is treated as a disc of the given radius inside the
// [0,width]x[0,height] field. An axis whose edge would leave the field is
// reflected about the inner bound and the heading component along that axis
// is mirrored, so the disc bounces elastically. The position is then clamped
// and the heading jittered by a uniform draw in [-f/2, f/2].
func (l *Location) MoveForward(distance, radius, width, height, rotationJitter float64, rng *rand.Rand) {
	x := l.X + math.Cos(l.Heading)*distance
	y := l.Y + math.Sin(l.Heading)*distance
	heading := l.Heading

	minX, maxX := axisBounds(radius, width)
	if x < minX {
		x = 2*minX - x
		heading = math.Pi - heading
	} else if x > maxX {
		x = 2*maxX - x
		heading = math.Pi - heading
	}

	minY, maxY := axisBounds(radius, height)
	if y < minY {
		y = 2*minY - y
		heading = -heading
	} else if y > maxY {
		y = 2*maxY - y
		heading = -heading
	}

	l.X = clamp(x, minX, maxX)
	l.Y = clamp(y, minY, maxY)
	l.Heading = NormalizeHeading(heading)

	l.Rotate((rng.Float64()-0.5)*rotationJitter, rng)
}

// RandomLocation returns a uniformly placed location whose disc of the given
// radius lies inside the field, with a uniform heading.
func RandomLocation(width, height, radius float64, rng *rand.Rand) Location {
	minX, maxX := axisBounds(radius, width)
	minY, maxY := axisBounds(radius, height)
	return Location{
		X:       minX + rng.Float64()*(maxX-minX),
		Y:       minY + rng.Float64()*(maxY-minY),
		Heading: rng.Float64() * TwoPi,
	}
}

// NormalizeHeading wraps a finite angle to [0, 2π).
func NormalizeHeading(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	// a tiny negative remainder rounds up to exactly 2π
	if a >= TwoPi {
		a = 0
	}
	return a
}

// axisBounds returns the admissible centre range along one axis. A field
// narrower than the disc pins the centre to the middle.
func axisBounds(radius, size float64) (lo, hi float64) {
	if size < 2*radius {
		return size / 2, size / 2
	}
	return radius, size - radius
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
