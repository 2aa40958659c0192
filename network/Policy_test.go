package network_test

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Chris-Lee-2028/NIS/environment/nvrp"
	"github.com/Chris-Lee-2028/NIS/network"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/matutils/initializers/weights"
)

func newPolicy(t *testing.T, dim int, seed uint64) *network.Policy {
	t.Helper()
	init := weights.NewGlorotU(1.0, distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: rand.NewSource(seed),
	})
	return network.NewPolicy(dim, 10, init)
}

func newInstance(t *testing.T, seed uint64) *problem.Instance {
	t.Helper()
	gen, err := problem.NewGenerator(problem.GeneratorConfig{
		Variant: problem.NVRP,
		Size:    8,
	}, seed)
	if err != nil {
		t.Fatal(err)
	}
	return gen.Instance()
}

func TestActProbabilities(t *testing.T) {
	pol := newPolicy(t, 16, 3)
	env := nvrp.New(0)
	in := newInstance(t, 4)

	s := env.Reset(in)
	emb := pol.Encoder().Embed(in)
	rng := rand.New(rand.NewSource(5))

	for !s.Done() {
		feasible := env.FeasibleActions(s)
		cache, err := pol.Act(emb, s, feasible, network.Sample, rng)
		if err != nil {
			t.Fatal(err)
		}

		if len(cache.Probs) != len(feasible) {
			t.Fatalf("%v probabilities for %v feasible actions",
				len(cache.Probs), len(feasible))
		}
		var sum float64
		for _, p := range cache.Probs {
			if p <= 0 {
				t.Fatalf("probability %v not positive", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("probabilities sum to %v, want 1", sum)
		}
		if cache.Action != feasible[cache.ActionIdx] {
			t.Fatal("chosen action disagrees with its feasible index")
		}
		if got := cache.LogProb(); got != math.Log(cache.Probs[cache.ActionIdx]) {
			t.Errorf("log-prob %v disagrees with chosen probability", got)
		}

		env.Step(s, cache.Action)
	}
}

func TestGreedyIsDeterministic(t *testing.T) {
	pol := newPolicy(t, 16, 3)
	env := nvrp.New(0)
	in := newInstance(t, 4)
	emb := pol.Encoder().Embed(in)

	var first []int
	for trial := 0; trial < 3; trial++ {
		s := env.Reset(in)
		var actions []int
		for !s.Done() {
			cache, err := pol.Act(emb, s, env.FeasibleActions(s),
				network.Greedy, nil)
			if err != nil {
				t.Fatal(err)
			}

			// Greedy must pick a maximum-probability action
			for _, p := range cache.Probs {
				if p > cache.Probs[cache.ActionIdx]+1e-15 {
					t.Fatal("greedy decoding skipped a higher " +
						"probability action")
				}
			}

			actions = append(actions, cache.Action)
			env.Step(s, cache.Action)
		}

		if trial == 0 {
			first = actions
			continue
		}
		if len(actions) != len(first) {
			t.Fatalf("greedy tours differ in length: %v and %v",
				len(first), len(actions))
		}
		for i := range actions {
			if actions[i] != first[i] {
				t.Fatalf("greedy step %v chose %v then %v", i, first[i],
					actions[i])
			}
		}
	}
}

func TestSampledRolloutsReproducible(t *testing.T) {
	pol := newPolicy(t, 16, 3)
	env := nvrp.New(0)
	in := newInstance(t, 4)
	emb := pol.Encoder().Embed(in)

	decode := func(seed uint64) []int {
		rng := rand.New(rand.NewSource(seed))
		s := env.Reset(in)
		var actions []int
		for !s.Done() {
			cache, err := pol.Act(emb, s, env.FeasibleActions(s),
				network.Sample, rng)
			if err != nil {
				t.Fatal(err)
			}
			actions = append(actions, cache.Action)
			env.Step(s, cache.Action)
		}
		return actions
	}

	a, b := decode(11), decode(11)
	if len(a) != len(b) {
		t.Fatalf("equally seeded rollouts differ in length")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("equally seeded rollouts diverge at step %v", i)
		}
	}
}

func TestActErrors(t *testing.T) {
	pol := newPolicy(t, 16, 3)
	env := nvrp.New(0)
	in := newInstance(t, 4)
	s := env.Reset(in)
	emb := pol.Encoder().Embed(in)

	if _, err := pol.Act(emb, s, nil, network.Greedy, nil); err == nil {
		t.Error("expected an error for an empty feasible set")
	}
	feasible := env.FeasibleActions(s)
	if _, err := pol.Act(emb, s, feasible, network.Sample, nil); err == nil {
		t.Error("expected an error for sampling without an RNG")
	}
}

func TestPolicyGobRoundTrip(t *testing.T) {
	pol := newPolicy(t, 16, 3)
	env := nvrp.New(0)
	in := newInstance(t, 4)

	data, err := pol.GobEncode()
	if err != nil {
		t.Fatal(err)
	}
	restored := new(network.Policy)
	if err := restored.GobDecode(data); err != nil {
		t.Fatal(err)
	}
	if restored.Dim() != pol.Dim() {
		t.Fatalf("restored width %v, want %v", restored.Dim(), pol.Dim())
	}

	// The restored policy must reproduce the original's distribution
	// exactly
	s := env.Reset(in)
	embA := pol.Encoder().Embed(in)
	embB := restored.Encoder().Embed(in)
	for !s.Done() {
		feasible := env.FeasibleActions(s)
		a, err := pol.Act(embA, s, feasible, network.Greedy, nil)
		if err != nil {
			t.Fatal(err)
		}
		b, err := restored.Act(embB, s, feasible, network.Greedy, nil)
		if err != nil {
			t.Fatal(err)
		}

		if a.Action != b.Action {
			t.Fatalf("restored policy chose %v, original %v", b.Action,
				a.Action)
		}
		for i := range a.Probs {
			if a.Probs[i] != b.Probs[i] {
				t.Fatalf("restored probability %v differs: %v vs %v", i,
					b.Probs[i], a.Probs[i])
			}
		}
		env.Step(s, a.Action)
	}
}
