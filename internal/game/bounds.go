package game

import "math/rand"

// Bounds is the playable world rectangle [0, W] x [0, H].
// Entities are kept inside with an inset of their own radius so the
// full body stays on the field.
type Bounds struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Clamp returns pos constrained to the bounds inset by radius, and
// whether each axis was clamped. The caller zeroes the velocity
// component on a clamped axis.
func (b Bounds) Clamp(pos Vec2, radius float64) (out Vec2, clampedX, clampedY bool) {
	out = pos
	if out.X < radius {
		out.X = radius
		clampedX = true
	} else if out.X > b.W-radius {
		out.X = b.W - radius
		clampedX = true
	}
	if out.Y < radius {
		out.Y = radius
		clampedY = true
	} else if out.Y > b.H-radius {
		out.Y = b.H - radius
		clampedY = true
	}
	return out, clampedX, clampedY
}

// Contains reports whether pos (inset by radius) is inside the bounds.
func (b Bounds) Contains(pos Vec2, radius float64) bool {
	return pos.X >= radius && pos.X <= b.W-radius &&
		pos.Y >= radius && pos.Y <= b.H-radius
}

// Center returns the middle of the field. Used as the recovery point
// when an entity's position turns non-finite.
func (b Bounds) Center() Vec2 {
	return Vec2{b.W / 2, b.H / 2}
}

// RandomSpawn picks a uniform random point at least radius away from
// every edge.
func (b Bounds) RandomSpawn(rng *rand.Rand, radius float64) Vec2 {
	return Vec2{
		X: radius + rng.Float64()*(b.W-2*radius),
		Y: radius + rng.Float64()*(b.H-2*radius),
	}
}

// AABB is an axis-aligned box used for static obstacles and region queries.
type AABB struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Overlaps reports whether two boxes intersect.
func (a AABB) Overlaps(o AABB) bool {
	return a.MinX <= o.MaxX && a.MaxX >= o.MinX &&
		a.MinY <= o.MaxY && a.MaxY >= o.MinY
}

// OverlapsCircle reports whether the box intersects a circle, and
// returns the closest point on the box to the circle center.
func (a AABB) OverlapsCircle(center Vec2, radius float64) (bool, Vec2) {
	closest := Vec2{
		X: clampF(center.X, a.MinX, a.MaxX),
		Y: clampF(center.Y, a.MinY, a.MaxY),
	}
	return closest.DistSq(center) <= radius*radius, closest
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
