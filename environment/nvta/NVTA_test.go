package nvta_test

import (
	"math"
	"testing"

	"github.com/Chris-Lee-2028/NIS/environment/nvta"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// testInstance holds two pickup-delivery pairs: (1, 3) and (2, 4).
// Both pickups together exceed the capacity of 5, so pair (1, 3) must
// be completed before pickup 2 fits.
func testInstance() *problem.Instance {
	return &problem.Instance{
		Variant: problem.NVTA,
		Coords: [][2]float64{
			{0, 0},
			{1, 0},
			{0, 1},
			{1, 1},
			{0.5, 0.5},
		},
		Demands:  []float64{0, 3, 4, -3, -4},
		Capacity: 5,
	}
}

func TestFeasibility(t *testing.T) {
	env := nvta.New(0)
	s := env.Reset(testInstance())

	// Initially only the pickups are reachable: deliveries wait for
	// their pickups and the depot closes the route
	got := env.FeasibleActions(s)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("initial feasible set %v, want [1 2]", got)
	}

	// Pickup 1 leaves headroom 2: pickup 2 no longer fits, only
	// delivery 3 is reachable
	env.Step(s, 1)
	got = env.FeasibleActions(s)
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("after pickup 1 feasible set %v, want [3]", got)
	}

	// Delivering releases the load and pickup 2 fits again
	env.Step(s, 3)
	if s.Remaining != 5 {
		t.Errorf("delivery left headroom %v, want 5", s.Remaining)
	}
	got = env.FeasibleActions(s)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("after delivery 3 feasible set %v, want [2]", got)
	}
}

func TestDepotOnlyClosesRoute(t *testing.T) {
	env := nvta.New(0)
	s := env.Reset(testInstance())

	for _, action := range []int{1, 3, 2} {
		if env.Feasible(s, problem.Depot) {
			t.Errorf("depot feasible with %v nodes served", s.NumVisited)
		}
		env.Step(s, action)
	}

	// Final delivery served: only the depot remains
	env.Step(s, 4)
	got := env.FeasibleActions(s)
	if len(got) != 1 || got[0] != problem.Depot {
		t.Fatalf("feasible set %v after all nodes served, want [0]", got)
	}

	_, done := env.Step(s, problem.Depot)
	if !done {
		t.Error("closing the route at the depot should terminate")
	}
	if s.BudgetExceeded() {
		t.Error("a completed route should not be marked budget-exceeded")
	}
}

func TestRouteCost(t *testing.T) {
	env := nvta.New(0)
	in := testInstance()
	s := env.Reset(in)

	route := []int{1, 3, 2, 4, 0}
	var sum float64
	for _, action := range route {
		reward, _ := env.Step(s, action)
		sum += reward
	}

	wantCost := in.Dist(0, 1) + in.Dist(1, 3) + in.Dist(3, 2) +
		in.Dist(2, 4) + in.Dist(4, 0)
	if math.Abs(s.Cost()-wantCost) > 1e-12 {
		t.Errorf("route cost %v, want %v", s.Cost(), wantCost)
	}
	if math.Abs(-sum-s.Cost()) > 1e-12 {
		t.Errorf("reward sum %v does not mirror cost %v", sum, s.Cost())
	}
}

func TestForcedTermination(t *testing.T) {
	env := nvta.New(2)
	in := testInstance()
	s := env.Reset(in)

	env.Step(s, 1)
	reward, done := env.Step(s, 3)
	if !done {
		t.Fatal("rollout should terminate when the step budget runs out")
	}
	if !s.BudgetExceeded() {
		t.Error("state should be marked budget-exceeded")
	}

	// Second leg plus the return leg plus out-and-back trips for the
	// unserved pair (2, 4)
	want := -(in.Dist(1, 3) + in.Dist(3, 0) +
		2*in.Dist(0, 2) + 2*in.Dist(0, 4))
	if math.Abs(reward-want) > 1e-12 {
		t.Errorf("forced termination reward %v, want %v", reward, want)
	}
}

func TestStepPanicsOnPrematureDelivery(t *testing.T) {
	env := nvta.New(0)
	s := env.Reset(testInstance())

	defer func() {
		if recover() == nil {
			t.Error("delivering before the pickup should panic")
		}
	}()
	env.Step(s, 3)
}
