package evaluate_test

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Chris-Lee-2028/NIS/environment/nvrp"
	"github.com/Chris-Lee-2028/NIS/evaluate"
	"github.com/Chris-Lee-2028/NIS/network"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/matutils/initializers/weights"
)

func testSetup(t *testing.T) (*nvrp.NVRP, *network.Policy,
	[]*problem.Instance) {
	t.Helper()
	init := weights.NewGlorotU(1.0, distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: rand.NewSource(13),
	})
	pol := network.NewPolicy(8, 10, init)

	gen, err := problem.NewGenerator(problem.GeneratorConfig{
		Variant: problem.NVRP,
		Size:    6,
	}, 29)
	if err != nil {
		t.Fatal(err)
	}
	return nvrp.New(0), pol, gen.Batch(10)
}

func TestAugmentationsPreserveDistances(t *testing.T) {
	gen, err := problem.NewGenerator(problem.GeneratorConfig{
		Variant: problem.NVRP,
		Size:    8,
	}, 7)
	if err != nil {
		t.Fatal(err)
	}
	in := gen.Instance()

	set := evaluate.Set(8)
	if len(set) != 8 {
		t.Fatalf("augmentation set has %v entries, want 8", len(set))
	}

	for k, aug := range set {
		out := aug(in)
		if out == in {
			t.Fatalf("augmentation %v returned the original instance", k)
		}
		for a := 0; a < in.NumNodes(); a++ {
			for b := a + 1; b < in.NumNodes(); b++ {
				d := math.Abs(in.Dist(a, b) - out.Dist(a, b))
				if d > 1e-12 {
					t.Fatalf("augmentation %v changed the distance "+
						"between %v and %v by %v", k, a, b, d)
				}
			}
		}
		if out.Capacity != in.Capacity {
			t.Errorf("augmentation %v changed the capacity", k)
		}
	}

	// Index 0 is the identity
	ident := set[0](in)
	for node := range in.Coords {
		if ident.Coords[node] != in.Coords[node] {
			t.Fatal("augmentation 0 moved a coordinate")
		}
	}
}

func TestEvaluateReturnsOneCostPerInstance(t *testing.T) {
	env, pol, instances := testSetup(t)

	ev, err := evaluate.New(env, pol, evaluate.Config{
		ValM:      4,
		BatchSize: 3, // forces ragged batches across the 40 copies
	})
	if err != nil {
		t.Fatal(err)
	}

	costs, err := ev.Evaluate(instances)
	if err != nil {
		t.Fatal(err)
	}
	if len(costs) != len(instances) {
		t.Fatalf("got %v costs for %v instances", len(costs),
			len(instances))
	}
	for i, cost := range costs {
		if cost <= 0 || math.IsNaN(cost) {
			t.Errorf("instance %v cost %v is not a valid tour cost", i,
				cost)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	env, pol, instances := testSetup(t)

	ev, err := evaluate.New(env, pol, evaluate.Config{
		ValM:      1,
		BatchSize: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := ev.Evaluate(instances)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ev.Evaluate(instances)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("instance %v cost changed between identical runs: "+
				"%v vs %v", i, a[i], b[i])
		}
	}
}

func TestAugmentationNeverHurts(t *testing.T) {
	env, pol, instances := testSetup(t)

	plain, err := evaluate.New(env, pol, evaluate.Config{
		ValM:      1,
		BatchSize: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	augmented, err := evaluate.New(env, pol, evaluate.Config{
		ValM:      8,
		BatchSize: 8,
	})
	if err != nil {
		t.Fatal(err)
	}

	base, err := plain.Evaluate(instances)
	if err != nil {
		t.Fatal(err)
	}
	best, err := augmented.Evaluate(instances)
	if err != nil {
		t.Fatal(err)
	}

	// The identity sits in every augmentation set, so the
	// min-reduction can only match or improve the plain greedy cost
	for i := range base {
		if best[i] > base[i]+1e-12 {
			t.Errorf("instance %v: augmented cost %v exceeds plain "+
				"greedy cost %v", i, best[i], base[i])
		}
	}
}

func TestMethodNames(t *testing.T) {
	if got := (evaluate.Config{ValM: 1}).Method(); got != "NIS" {
		t.Errorf("method for val_m 1 = %q, want NIS", got)
	}
	if got := (evaluate.Config{ValM: 8}).Method(); got != "NIS-A" {
		t.Errorf("method for val_m 8 = %q, want NIS-A", got)
	}
}

func TestEvaluateRejectsForeignVariant(t *testing.T) {
	env, pol, _ := testSetup(t)

	gen, err := problem.NewGenerator(problem.GeneratorConfig{
		Variant: problem.NVTA,
		Size:    6,
	}, 3)
	if err != nil {
		t.Fatal(err)
	}

	ev, err := evaluate.New(env, pol, evaluate.Config{
		ValM:      1,
		BatchSize: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ev.Evaluate(gen.Batch(2)); err == nil {
		t.Error("expected an error for instances of a foreign variant")
	}
}
