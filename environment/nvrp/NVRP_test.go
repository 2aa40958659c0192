package nvrp_test

import (
	"math"
	"testing"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/environment/nvrp"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// testInstance needs one depot refill: total demand 12 exceeds the
// capacity of 6
func testInstance() *problem.Instance {
	return &problem.Instance{
		Variant: problem.NVRP,
		Coords: [][2]float64{
			{0, 0},
			{1, 0},
			{0, 1},
			{1, 1},
		},
		Demands:  []float64{0, 4, 5, 3},
		Capacity: 6,
	}
}

func TestFeasibility(t *testing.T) {
	env := nvrp.New(0)
	s := env.Reset(testInstance())

	// At the depot with full capacity the depot itself is the only
	// infeasible node
	got := env.FeasibleActions(s)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("initial feasible set %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("initial feasible set %v, want %v", got, want)
		}
	}

	// Serving node 1 leaves capacity 2: both remaining customers no
	// longer fit, only the depot refill does
	env.Step(s, 1)
	got = env.FeasibleActions(s)
	if len(got) != 1 || got[0] != problem.Depot {
		t.Fatalf("after node 1 feasible set %v, want [0]", got)
	}

	// Refilling restores all unserved customers
	env.Step(s, problem.Depot)
	if s.Remaining != 6 {
		t.Errorf("depot refill left capacity %v, want 6", s.Remaining)
	}
	got = env.FeasibleActions(s)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("after refill feasible set %v, want [2 3]", got)
	}
	if env.Feasible(s, 1) {
		t.Error("served node 1 should stay infeasible")
	}
}

func TestCompleteTour(t *testing.T) {
	env := nvrp.New(0)
	in := testInstance()
	s := env.Reset(in)

	tour := []int{1, 0, 2, 3, 0}
	var sum float64
	for i, action := range tour {
		reward, done := env.Step(s, action)
		sum += reward
		if wantDone := i == len(tour)-1; done != wantDone {
			t.Fatalf("step %v: done = %v, want %v", i, done, wantDone)
		}
	}

	if !s.AllServed() {
		t.Error("tour ended with unserved customers")
	}
	if s.Current != problem.Depot {
		t.Errorf("tour ended at node %v, not the depot", s.Current)
	}
	if s.Kind() != environment.Last {
		t.Errorf("final step kind %v, want %v", s.Kind(), environment.Last)
	}
	if s.BudgetExceeded() {
		t.Error("a completed tour should not be marked budget-exceeded")
	}

	wantCost := in.Dist(0, 1)*2 + in.Dist(0, 2) + in.Dist(2, 3) +
		in.Dist(3, 0)
	if math.Abs(s.Cost()-wantCost) > 1e-12 {
		t.Errorf("tour cost %v, want %v", s.Cost(), wantCost)
	}
	if math.Abs(-sum-s.Cost()) > 1e-12 {
		t.Errorf("reward sum %v does not mirror cost %v", sum, s.Cost())
	}
}

func TestForcedTermination(t *testing.T) {
	env := nvrp.New(1)
	in := testInstance()
	s := env.Reset(in)

	reward, done := env.Step(s, 1)
	if !done {
		t.Fatal("rollout should terminate when the step budget runs out")
	}
	if !s.BudgetExceeded() {
		t.Error("state should be marked budget-exceeded")
	}
	if s.Current != problem.Depot {
		t.Error("forced termination should move the vehicle to the depot")
	}

	// Travel to node 1, return leg, plus an out-and-back trip for each
	// unserved customer
	want := -(in.Dist(0, 1) + in.Dist(1, 0) +
		2*in.Dist(0, 2) + 2*in.Dist(0, 3))
	if math.Abs(reward-want) > 1e-12 {
		t.Errorf("forced termination reward %v, want %v", reward, want)
	}
	if math.Abs(s.Cost()+reward) > 1e-12 {
		t.Errorf("cost %v does not mirror the reward %v", s.Cost(), reward)
	}
}

func TestStepPanicsOnInfeasibleAction(t *testing.T) {
	env := nvrp.New(0)
	s := env.Reset(testInstance())
	env.Step(s, 1)

	defer func() {
		if recover() == nil {
			t.Error("stepping to a served node should panic")
		}
	}()
	env.Step(s, 1)
}

func TestCloneIndependence(t *testing.T) {
	env := nvrp.New(0)
	s := env.Reset(testInstance())
	env.Step(s, 1)

	clone := s.Clone()
	rewardA, _ := env.Step(s, problem.Depot)

	if clone.Current != 1 || clone.Steps != 1 {
		t.Error("stepping the original mutated the clone")
	}
	rewardB, _ := env.Step(clone, problem.Depot)
	if rewardA != rewardB {
		t.Errorf("identical steps gave rewards %v and %v", rewardA,
			rewardB)
	}
}
