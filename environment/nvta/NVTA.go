// Package nvta implements the pickup-delivery task assignment
// environment
package nvta

import (
	"fmt"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// NVTA is the environment for pickup-delivery task assignment. One
// vehicle serves N/2 pickup-delivery pairs in a single route: a
// delivery becomes feasible only once its pickup is served, the
// running load never exceeds the vehicle capacity, and the route ends
// back at the depot after every node is served.
type NVTA struct {
	tMax int
}

// New returns a new NVTA environment with the given step budget. A
// budget of 0 selects environment.DefaultTMax at Reset time, sized by
// the instance.
func New(tMax int) *NVTA {
	return &NVTA{tMax: tMax}
}

// Variant returns problem.NVTA
func (e *NVTA) Variant() problem.Variant {
	return problem.NVTA
}

// TMax returns the configured step budget
func (e *NVTA) TMax() int {
	return e.tMax
}

// Reset returns the initial state for an instance
func (e *NVTA) Reset(in *problem.Instance) *environment.State {
	return environment.NewState(in)
}

func (e *NVTA) budget(s *environment.State) int {
	if e.tMax > 0 {
		return e.tMax
	}
	return environment.DefaultTMax(s.Inst.Size())
}

// Feasible reports whether action may be taken in state s. A pickup is
// feasible when unserved and its demand fits the load headroom; a
// delivery when unserved and its pickup already served; the depot only
// as the final, route-closing move.
func (e *NVTA) Feasible(s *environment.State, action int) bool {
	if s.Done() || action < 0 || action >= s.Inst.NumNodes() {
		return false
	}
	if action == problem.Depot {
		return s.AllServed() && s.Current != problem.Depot
	}
	if s.Visited[action] {
		return false
	}
	if s.Inst.IsPickup(action) {
		return s.Inst.Demands[action] <= s.Remaining
	}
	return s.Visited[s.Inst.PairOf(action)]
}

// FeasibleActions returns the feasible next nodes in increasing order
func (e *NVTA) FeasibleActions(s *environment.State) []int {
	actions := make([]int, 0, s.Inst.NumNodes()-s.NumVisited)
	for node := 0; node < s.Inst.NumNodes(); node++ {
		if e.Feasible(s, node) {
			actions = append(actions, node)
		}
	}
	return actions
}

// Step moves the vehicle to action. A pickup consumes load headroom,
// its delivery releases it again. The reward is the negative travel
// distance of the move, with the forced-termination penalty folded in
// when the step budget runs out first.
func (e *NVTA) Step(s *environment.State, action int) (float64, bool) {
	if !e.Feasible(s, action) {
		panic(fmt.Sprintf("step: infeasible action %v at node %v (%v/%v "+
			"served)", action, s.Current, s.NumVisited, s.Inst.Size()))
	}

	reward := -environment.Travel(s, action)
	if action == problem.Depot {
		s.Finish()
		return reward, true
	}

	// Demands are signed: positive for pickups, negative for
	// deliveries, so subtracting always moves the headroom the right
	// way.
	s.Remaining -= s.Inst.Demands[action]
	s.MarkServed(action)

	if s.Steps >= e.budget(s) && !(s.AllServed() && s.Current == problem.Depot) {
		reward -= environment.ForceTerminate(s)
		return reward, true
	}
	return reward, false
}
