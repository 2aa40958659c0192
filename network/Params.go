package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Grads accumulates the policy parameter gradients of a batch. One
// Grads is zeroed per update, filled instance by instance, scaled by
// the batch size, and handed to the optimizer.
type Grads struct {
	We, Be, Wr, Wq, V *mat.Dense
}

// NewGrads returns a zeroed gradient accumulator shaped like the
// policy's parameters
func (p *Policy) NewGrads() *Grads {
	return &Grads{
		We: mat.NewDense(problemFeatures, p.dim, nil),
		Be: mat.NewDense(1, p.dim, nil),
		Wr: mat.NewDense(p.dim, p.dim, nil),
		Wq: mat.NewDense(p.dim+CtxFeatures, p.dim, nil),
		V:  mat.NewDense(1, p.dim, nil),
	}
}

// List returns the gradient matrices in the same order as
// Policy.Params
func (g *Grads) List() []*mat.Dense {
	return []*mat.Dense{g.We, g.Be, g.Wr, g.Wq, g.V}
}

// Zero resets all accumulated gradients
func (g *Grads) Zero() {
	for _, m := range g.List() {
		m.Zero()
	}
}

// Scale multiplies all accumulated gradients by f
func (g *Grads) Scale(f float64) {
	for _, m := range g.List() {
		m.Scale(f, m)
	}
}

// matrixData is a gob-friendly snapshot of a single dense matrix
type matrixData struct {
	Rows, Cols int
	Data       []float64
}

func snapshot(m *mat.Dense) matrixData {
	r, c := m.Dims()
	data := make([]float64, len(m.RawMatrix().Data))
	copy(data, m.RawMatrix().Data)
	return matrixData{Rows: r, Cols: c, Data: data}
}

// GobEncode implements the gob.GobEncoder interface. The encoded form
// holds the embedding width, the score clip and every parameter
// matrix, so decoding restores a numerically identical policy.
func (p *Policy) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(p.dim); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode dim: %v", err)
	}
	if err := enc.Encode(p.clip); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode clip: %v", err)
	}
	for i, param := range p.Params() {
		if err := enc.Encode(snapshot(param)); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode parameter "+
				"%v: %v", i, err)
		}
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface, reconstructing
// the policy the encoded bytes describe.
func (p *Policy) GobDecode(in []byte) error {
	buf := bytes.NewBuffer(in)
	dec := gob.NewDecoder(buf)

	var dim int
	if err := dec.Decode(&dim); err != nil {
		return fmt.Errorf("gobdecode: could not decode dim: %v", err)
	}
	var clip float64
	if err := dec.Decode(&clip); err != nil {
		return fmt.Errorf("gobdecode: could not decode clip: %v", err)
	}

	fresh := newEmptyPolicy(dim, clip)
	for i, param := range fresh.Params() {
		var m matrixData
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("gobdecode: could not decode parameter %v: %v",
				i, err)
		}
		r, c := param.Dims()
		if m.Rows != r || m.Cols != c {
			return fmt.Errorf("gobdecode: parameter %v has shape (%v, %v), "+
				"expected (%v, %v)", i, m.Rows, m.Cols, r, c)
		}
		copy(param.RawMatrix().Data, m.Data)
	}

	*p = *fresh
	return nil
}
