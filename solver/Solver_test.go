package solver_test

import (
	"encoding/json"
	"testing"

	"github.com/Chris-Lee-2028/NIS/solver"
)

func TestUnmarshalJSON(t *testing.T) {
	tests := []struct {
		data string
		want solver.Type
	}{
		{`{"Type": "Adam", "Config": {"StepSize": 0.001,
			"Epsilon": 1e-8, "Beta1": 0.9, "Beta2": 0.999,
			"Batch": 16}}`, solver.Adam},
		{`{"Type": "Vanilla", "Config": {"StepSize": 0.01,
			"Batch": 16, "Clip": 1.0}}`, solver.Vanilla},
		{`{"Type": "Vanilla", "Config": {"StepSize": 0.01,
			"Batch": 16, "Clip": -1.0}}`, solver.Vanilla},
	}

	for _, test := range tests {
		var sol solver.Solver
		if err := json.Unmarshal([]byte(test.data), &sol); err != nil {
			t.Fatalf("%v: %v", test.want, err)
		}
		if sol.Type != test.want {
			t.Errorf("unmarshalled type %v, want %v", sol.Type, test.want)
		}
		if sol.Solver == nil {
			t.Errorf("%v: no wrapped solver was created", test.want)
		}
	}
}

func TestUnmarshalJSONUnknownType(t *testing.T) {
	var sol solver.Solver
	data := `{"Type": "RMSProp", "Config": {"StepSize": 0.01}}`
	if err := json.Unmarshal([]byte(data), &sol); err == nil {
		t.Error("expected an error for an unknown solver type")
	}
}

func TestNewVanilla(t *testing.T) {
	sol, err := solver.NewVanilla(0.01, 8, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Type != solver.Vanilla || sol.Solver == nil {
		t.Error("vanilla solver was not created")
	}
}

func TestNewSolverRejectsMismatchedType(t *testing.T) {
	// The constructors guard type/config agreement through newSolver;
	// a config must refuse foreign types
	if (solver.AdamConfig{}).ValidType(solver.Vanilla) {
		t.Error("Adam config accepted the Vanilla type")
	}
	if (solver.VanillaConfig{}).ValidType(solver.Adam) {
		t.Error("Vanilla config accepted the Adam type")
	}
}
