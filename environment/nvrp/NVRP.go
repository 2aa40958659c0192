// Package nvrp implements the capacity-constrained vehicle routing
// environment
package nvrp

import (
	"fmt"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// NVRP is the environment for capacity-constrained tour construction.
// The vehicle starts at the depot with full capacity, serves every
// customer exactly once, may return to the depot at any time to
// refill, and terminates when all customers are served and the vehicle
// is back at the depot.
type NVRP struct {
	tMax int
}

// New returns a new NVRP environment with the given step budget. A
// budget of 0 selects environment.DefaultTMax at Reset time, sized by
// the instance.
func New(tMax int) *NVRP {
	return &NVRP{tMax: tMax}
}

// Variant returns problem.NVRP
func (e *NVRP) Variant() problem.Variant {
	return problem.NVRP
}

// TMax returns the configured step budget
func (e *NVRP) TMax() int {
	return e.tMax
}

// Reset returns the initial state for an instance
func (e *NVRP) Reset(in *problem.Instance) *environment.State {
	return environment.NewState(in)
}

func (e *NVRP) budget(s *environment.State) int {
	if e.tMax > 0 {
		return e.tMax
	}
	return environment.DefaultTMax(s.Inst.Size())
}

// Feasible reports whether action may be taken in state s. The depot
// is feasible whenever the vehicle is not already there; a customer is
// feasible when unserved and its demand fits the remaining capacity.
func (e *NVRP) Feasible(s *environment.State, action int) bool {
	if s.Done() || action < 0 || action >= s.Inst.NumNodes() {
		return false
	}
	if action == problem.Depot {
		return s.Current != problem.Depot
	}
	return !s.Visited[action] && s.Inst.Demands[action] <= s.Remaining
}

// FeasibleActions returns the feasible next nodes in increasing order
func (e *NVRP) FeasibleActions(s *environment.State) []int {
	actions := make([]int, 0, s.Inst.NumNodes()-s.NumVisited)
	for node := 0; node < s.Inst.NumNodes(); node++ {
		if e.Feasible(s, node) {
			actions = append(actions, node)
		}
	}
	return actions
}

// Step moves the vehicle to action. The reward is the negative travel
// distance of the move; when the step budget runs out before the tour
// completes, the forced-termination penalty is folded in as well.
func (e *NVRP) Step(s *environment.State, action int) (float64, bool) {
	if !e.Feasible(s, action) {
		panic(fmt.Sprintf("step: infeasible action %v at node %v (%v/%v "+
			"served)", action, s.Current, s.NumVisited, s.Inst.Size()))
	}

	reward := -environment.Travel(s, action)
	if action == problem.Depot {
		s.Remaining = s.Inst.Capacity
	} else {
		s.Remaining -= s.Inst.Demands[action]
		s.MarkServed(action)
	}

	if s.AllServed() && s.Current == problem.Depot {
		s.Finish()
		return reward, true
	}
	if s.Steps >= e.budget(s) {
		reward -= environment.ForceTerminate(s)
		return reward, true
	}
	return reward, false
}
