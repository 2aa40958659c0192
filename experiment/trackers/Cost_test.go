package trackers_test

import (
	"path/filepath"
	"testing"

	"github.com/Chris-Lee-2028/NIS/experiment/trackers"
)

func TestCostRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cost.bin")
	tracker := trackers.NewCost(filename)

	tracker.Track(0, 8.5)
	tracker.Track(1, 7.25)
	tracker.Track(2, 6.125)
	if err := tracker.Save(); err != nil {
		t.Fatal(err)
	}

	epochs, costs, err := trackers.LoadCosts(filename)
	if err != nil {
		t.Fatal(err)
	}
	wantEpochs := []int{0, 1, 2}
	wantCosts := []float64{8.5, 7.25, 6.125}
	if len(epochs) != len(wantEpochs) {
		t.Fatalf("loaded %v epochs, want %v", len(epochs),
			len(wantEpochs))
	}
	for i := range wantEpochs {
		if epochs[i] != wantEpochs[i] || costs[i] != wantCosts[i] {
			t.Errorf("entry %v = (%v, %v), want (%v, %v)", i, epochs[i],
				costs[i], wantEpochs[i], wantCosts[i])
		}
	}
}

func TestCostOverwritesRepeatedEpoch(t *testing.T) {
	tracker := trackers.NewCost(filepath.Join(t.TempDir(), "cost.bin"))

	tracker.Track(0, 10)
	tracker.Track(1, 9)
	tracker.Track(1, 8) // a resumed run re-measures epoch 1
	if err := tracker.Save(); err != nil {
		t.Fatal(err)
	}

	epochs, costs, err := trackers.LoadCosts(tracker.Filename())
	if err != nil {
		t.Fatal(err)
	}
	if len(epochs) != 2 {
		t.Fatalf("got %v entries, want 2", len(epochs))
	}
	if costs[1] != 8 {
		t.Errorf("epoch 1 cost %v, want the overwritten 8", costs[1])
	}
}
