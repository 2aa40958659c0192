package environment

import "github.com/Chris-Lee-2028/NIS/problem"

// StepKind denotes where in a rollout a state sits: at the start,
// somewhere in the middle, or at termination.
type StepKind int

const (
	First StepKind = iota
	Mid
	Last
)

func (k StepKind) String() string {
	switch k {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// State is the mutable per-instance rollout state. It is owned by
// exactly one in-progress rollout and discarded when the rollout
// terminates.
type State struct {
	Inst *problem.Instance

	// Visited marks the node indices already served. The depot entry
	// stays false; depot visits refill capacity, they do not serve it.
	Visited []bool

	// Current is the node the vehicle currently occupies
	Current int

	// Remaining is the remaining vehicle capacity (NVRP) or the free
	// load headroom (NVTA)
	Remaining float64

	// Steps counts the transitions taken so far
	Steps int

	// NumVisited counts the served (non-depot) nodes
	NumVisited int

	kind   StepKind
	budget bool
	cost   float64
}

// NewState returns the initial state for an instance: vehicle at the
// depot, nothing visited, full capacity.
func NewState(in *problem.Instance) *State {
	return &State{
		Inst:      in,
		Visited:   make([]bool, in.NumNodes()),
		Current:   problem.Depot,
		Remaining: in.Capacity,
		kind:      First,
	}
}

// Kind returns whether the state is the first, a middle, or the last
// of its rollout
func (s *State) Kind() StepKind {
	return s.kind
}

// Done returns whether the rollout has terminated
func (s *State) Done() bool {
	return s.kind == Last
}

// BudgetExceeded returns whether the rollout was forced to terminate
// by the step budget instead of completing its tour
func (s *State) BudgetExceeded() bool {
	return s.budget
}

// Cost returns the accumulated travel cost, including any forced
// termination penalty. The total reward of a trajectory is -Cost().
func (s *State) Cost() float64 {
	return s.cost
}

// AllServed returns whether every non-depot node has been visited
func (s *State) AllServed() bool {
	return s.NumVisited == s.Inst.Size()
}

// MarkServed records a node as visited. It is intended for
// Environment implementations and panics when the node was already
// served: each node is visited exactly once per trajectory.
func (s *State) MarkServed(node int) {
	if node == problem.Depot || s.Visited[node] {
		panic("markServed: node already served or depot")
	}
	s.Visited[node] = true
	s.NumVisited++
}

// Finish marks the state terminal. It is intended for Environment
// implementations.
func (s *State) Finish() {
	s.kind = Last
}

// Clone returns a deep copy of the state sharing the (immutable)
// instance
func (s *State) Clone() *State {
	visited := make([]bool, len(s.Visited))
	copy(visited, s.Visited)

	clone := *s
	clone.Visited = visited
	return &clone
}
