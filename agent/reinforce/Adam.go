package reinforce

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam applies Adam updates to the policy's gonum parameter matrices.
// The critic's parameters live on a Gorgonia graph and are stepped by
// a Gorgonia solver instead; this optimizer exists because the
// policy's gradients are hand-derived outside any graph.
type adam struct {
	lr, beta1, beta2, eps float64

	m, v []*mat.Dense
	t    int
}

func newAdam(lr float64, params []*mat.Dense) *adam {
	a := &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]*mat.Dense, len(params)),
		v:     make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// Step applies one Adam update. params and grads must be ordered as at
// construction.
func (a *adam) Step(params, grads []*mat.Dense) {
	a.t++
	mCorr := 1 - math.Pow(a.beta1, float64(a.t))
	vCorr := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range params {
		pData := p.RawMatrix().Data
		gData := grads[i].RawMatrix().Data
		mData := a.m[i].RawMatrix().Data
		vData := a.v[i].RawMatrix().Data

		for j := range pData {
			g := gData[j]
			mData[j] = a.beta1*mData[j] + (1-a.beta1)*g
			vData[j] = a.beta2*vData[j] + (1-a.beta2)*g*g

			mHat := mData[j] / mCorr
			vHat := vData[j] / vCorr
			pData[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// adamState is the gob-friendly snapshot of an optimizer
type adamState struct {
	T    int
	M, V []matrixState
}

type matrixState struct {
	Rows, Cols int
	Data       []float64
}

func snapshotMatrix(m *mat.Dense) matrixState {
	r, c := m.Dims()
	data := make([]float64, len(m.RawMatrix().Data))
	copy(data, m.RawMatrix().Data)
	return matrixState{Rows: r, Cols: c, Data: data}
}

// GobEncode implements the gob.GobEncoder interface
func (a *adam) GobEncode() ([]byte, error) {
	state := adamState{T: a.t}
	for i := range a.m {
		state.M = append(state.M, snapshotMatrix(a.m[i]))
		state.V = append(state.V, snapshotMatrix(a.v[i]))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode optimizer "+
			"state: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The receiver must
// already be constructed for the same parameter shapes.
func (a *adam) GobDecode(in []byte) error {
	var state adamState
	if err := gob.NewDecoder(bytes.NewBuffer(in)).Decode(&state); err != nil {
		return fmt.Errorf("gobdecode: could not decode optimizer state: %v",
			err)
	}
	if len(state.M) != len(a.m) || len(state.V) != len(a.v) {
		return fmt.Errorf("gobdecode: optimizer tracks %v parameters, "+
			"checkpoint holds %v", len(a.m), len(state.M))
	}

	for i := range a.m {
		r, c := a.m[i].Dims()
		if state.M[i].Rows != r || state.M[i].Cols != c {
			return fmt.Errorf("gobdecode: moment %v has shape (%v, %v), "+
				"expected (%v, %v)", i, state.M[i].Rows, state.M[i].Cols, r, c)
		}
		copy(a.m[i].RawMatrix().Data, state.M[i].Data)
		copy(a.v[i].RawMatrix().Data, state.V[i].Data)
	}
	a.t = state.T
	return nil
}
