// Package evaluate implements greedy evaluation of trained policies
// with test-time instance augmentation
package evaluate

import (
	"math"

	"github.com/Chris-Lee-2028/NIS/problem"
)

// Augmentation is a deterministic transform of an instance. Every
// augmentation used here is a rigid motion of the coordinates, so it
// preserves all pairwise distances and therefore the cost of every
// tour: the best tour of an augmented copy has exactly the cost of the
// corresponding tour of the original.
type Augmentation func(*problem.Instance) *problem.Instance

// Identity returns an unchanged copy of the instance
func Identity(in *problem.Instance) *problem.Instance {
	return in.Clone()
}

// rotateFlip rotates all coordinates by theta about the unit square's
// center and then reflects across the vertical center line when flip
// is set
func rotateFlip(theta float64, flip bool) Augmentation {
	sin, cos := math.Sincos(theta)
	return func(in *problem.Instance) *problem.Instance {
		out := in.Clone()
		for node := range out.Coords {
			x := out.Coords[node][0] - 0.5
			y := out.Coords[node][1] - 0.5
			rx := x*cos - y*sin
			ry := x*sin + y*cos
			if flip {
				rx = -rx
			}
			out.Coords[node][0] = rx + 0.5
			out.Coords[node][1] = ry + 0.5
		}
		return out
	}
}

// Set returns the fixed augmentation set of size m: augmentation k
// rotates by 2πk/m, composing a horizontal flip onto odd k. Index 0 is
// always the identity, so the min-reduction over any set can never
// report a worse cost than plain greedy decoding.
func Set(m int) []Augmentation {
	if m < 1 {
		m = 1
	}

	set := make([]Augmentation, m)
	set[0] = Identity
	for k := 1; k < m; k++ {
		theta := 2 * math.Pi * float64(k) / float64(m)
		set[k] = rotateFlip(theta, k%2 == 1)
	}
	return set
}
