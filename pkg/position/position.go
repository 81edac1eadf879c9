// Package position implements the 3-D coordinate space used by the
// spatial load-balancing (infoton) policy.
package position

import "math"

// Position is a point in the abstract 3-D space schedulers and actors live
// in. Coordinates are 32-bit floats, matching spec §3.
type Position struct {
	X, Y, Z float32
}

// Zero is the null position.
var Zero = Position{}

func (p Position) IsZero() bool {
	return p == Zero
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Position) Scale(s float32) Position {
	return Position{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Norm returns the Euclidean length of p treated as a vector from the
// origin.
func (p Position) Norm() float32 {
	return float32(math.Sqrt(float64(p.X)*float64(p.X) + float64(p.Y)*float64(p.Y) + float64(p.Z)*float64(p.Z)))
}

// Distance returns the Euclidean distance between p and o.
func (p Position) Distance(o Position) float32 {
	return p.Sub(o).Norm()
}
