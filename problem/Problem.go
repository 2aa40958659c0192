// Package problem defines routing problem instances and the generators
// that synthesize them
package problem

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidConfiguration is returned when a generator or instance is
// configured with inconsistent parameters. It is always detected before
// any rollout starts.
var ErrInvalidConfiguration = errors.New("invalid problem configuration")

// Variant tags the routing problem variant an Instance belongs to
type Variant string

const (
	// NVRP is the capacity-constrained node vehicle routing variant.
	// The vehicle serves every customer exactly once, refilling at the
	// depot as needed.
	NVRP Variant = "nvrp"

	// NVTA is the pickup-delivery task assignment variant. Each pickup
	// must be served before its matching delivery, and the running
	// load may never exceed the vehicle capacity.
	NVTA Variant = "nvta"
)

// Valid returns whether v names a known problem variant
func (v Variant) Valid() bool {
	return v == NVRP || v == NVTA
}

// Depot is the node index of the depot in every Instance
const Depot = 0

// Instance is a single, immutable routing problem instance. Index 0 of
// Coords is always the depot. Size() counts the non-depot nodes, so an
// Instance holds Size()+1 coordinates.
type Instance struct {
	Variant  Variant
	Coords   [][2]float64
	Demands  []float64 // Demands[Depot] == 0; NVTA deliveries are negative
	Capacity float64
}

// Size returns the number of non-depot nodes in the instance
func (in *Instance) Size() int {
	return len(in.Coords) - 1
}

// NumNodes returns the total number of nodes, depot included
func (in *Instance) NumNodes() int {
	return len(in.Coords)
}

// Dist returns the Euclidean distance between nodes a and b
func (in *Instance) Dist(a, b int) float64 {
	dx := in.Coords[a][0] - in.Coords[b][0]
	dy := in.Coords[a][1] - in.Coords[b][1]
	return math.Hypot(dx, dy)
}

// PairOf returns the matching node of a pickup or delivery in an NVTA
// instance. Node i in [1, Size()/2] is a pickup and i + Size()/2 its
// delivery. PairOf panics when called on the depot or on a non-NVTA
// instance.
func (in *Instance) PairOf(node int) int {
	if in.Variant != NVTA || node == Depot {
		panic("pairOf: only non-depot NVTA nodes have a pair")
	}
	half := in.Size() / 2
	if node <= half {
		return node + half
	}
	return node - half
}

// IsPickup returns whether a node of an NVTA instance is a pickup
func (in *Instance) IsPickup(node int) bool {
	return node != Depot && node <= in.Size()/2
}

// NumFeatures is the width of the per-node feature rows produced by
// Features
const NumFeatures = 4

// Features returns the raw per-node features consumed by the policy
// encoder and the critic: x, y, normalized demand, and a role flag
// (1 for the depot under NVRP; +1 pickup / -1 delivery under NVTA).
// The returned slice is row-major with NumFeatures columns.
func (in *Instance) Features() []float64 {
	features := make([]float64, in.NumNodes()*NumFeatures)
	for node := 0; node < in.NumNodes(); node++ {
		row := features[node*NumFeatures : (node+1)*NumFeatures]
		row[0] = in.Coords[node][0]
		row[1] = in.Coords[node][1]
		row[2] = in.Demands[node] / in.Capacity

		switch {
		case node == Depot && in.Variant == NVRP:
			row[3] = 1.0
		case node == Depot:
			row[3] = 0.0
		case in.Variant == NVTA && in.IsPickup(node):
			row[3] = 1.0
		case in.Variant == NVTA:
			row[3] = -1.0
		}
	}
	return features
}

// Clone returns a deep copy of the instance. Augmentation transforms
// clone before touching coordinates so that instances stay immutable.
func (in *Instance) Clone() *Instance {
	coords := make([][2]float64, len(in.Coords))
	copy(coords, in.Coords)
	demands := make([]float64, len(in.Demands))
	copy(demands, in.Demands)

	return &Instance{
		Variant:  in.Variant,
		Coords:   coords,
		Demands:  demands,
		Capacity: in.Capacity,
	}
}

// Validate checks the structural invariants of an instance
func (in *Instance) Validate() error {
	if !in.Variant.Valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "unknown variant %q",
			in.Variant)
	}
	if in.Capacity <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "capacity %v must be "+
			"positive", in.Capacity)
	}
	if len(in.Coords) != len(in.Demands) {
		return errors.Wrapf(ErrInvalidConfiguration, "have %v coordinates "+
			"but %v demands", len(in.Coords), len(in.Demands))
	}
	if in.Size() < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "size %v must be at "+
			"least 2", in.Size())
	}
	if in.Variant == NVTA && in.Size()%2 != 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "NVTA size %v must be "+
			"even", in.Size())
	}
	if in.Demands[Depot] != 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "depot demand must be 0")
	}
	for node := 1; node < in.NumNodes(); node++ {
		if math.Abs(in.Demands[node]) > in.Capacity {
			return errors.Wrapf(ErrInvalidConfiguration, "demand of node %v "+
				"exceeds vehicle capacity", node)
		}
	}
	return nil
}
