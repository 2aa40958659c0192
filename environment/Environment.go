// Package environment outlines the interface and state needed to
// implement concrete routing environments
package environment

import "github.com/Chris-Lee-2028/NIS/problem"

// Environment is a pure state-transition function over partial routing
// solutions. Implementations hold no per-rollout state of their own:
// everything mutable lives in the State, which is owned by exactly one
// in-progress rollout.
//
// Step must be deterministic: identical (state, action) pairs always
// yield identical (state', reward, done) results.
type Environment interface {
	// Variant returns the problem variant this environment serves
	Variant() problem.Variant

	// Reset initializes a fresh rollout state for an instance, with
	// the depot as current position and an empty visited set
	Reset(in *problem.Instance) *State

	// Feasible reports whether action may be taken in state s
	Feasible(s *State, action int) bool

	// FeasibleActions returns the set of node indices that may be
	// visited next, in increasing order
	FeasibleActions(s *State) []int

	// Step moves to action, updating the visited mask and the
	// remaining capacity or load, and returns the step reward
	// (negative incremental travel distance) together with whether
	// the rollout terminated. Step mutates s in place. It panics when
	// handed an infeasible action: a masked-out action reaching the
	// environment is a programming error, not an input error.
	Step(s *State, action int) (reward float64, done bool)

	// TMax returns the step budget after which a rollout is forced to
	// terminate
	TMax() int
}

// DefaultTMaxFactor sizes the default step budget relative to the
// graph size. A feasible NVRP tour needs at most one depot refill per
// customer, so 2N+1 steps always suffice.
const DefaultTMaxFactor = 2

// DefaultTMax returns the step budget used when a run does not set one
// explicitly
func DefaultTMax(size int) int {
	return DefaultTMaxFactor*size + 1
}

// Travel moves the rollout state to node and returns the (positive)
// travel distance of that move. It updates the position, step counter
// and accumulated cost, but not the visited mask or capacity, which
// are variant-specific.
func Travel(s *State, node int) float64 {
	d := s.Inst.Dist(s.Current, node)
	s.Current = node
	s.Steps++
	s.cost += d
	s.kind = Mid
	return d
}

// ForceTerminate ends a rollout whose step budget is exhausted before
// every node is served. The returned penalty charges the return leg to
// the depot plus a radial out-and-back trip for every unserved node,
// which upper-bounds any completion of the tour. The penalty is folded
// into the final step reward so that batch evaluation needs no
// per-instance special case.
func ForceTerminate(s *State) float64 {
	penalty := s.Inst.Dist(s.Current, problem.Depot)
	for node := 1; node < s.Inst.NumNodes(); node++ {
		if !s.Visited[node] {
			penalty += 2 * s.Inst.Dist(problem.Depot, node)
		}
	}

	s.Current = problem.Depot
	s.cost += penalty
	s.kind = Last
	s.budget = true
	return penalty
}
