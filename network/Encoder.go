// Package network implements the encoder, policy and critic networks
// of the solver
package network

import (
	"gonum.org/v1/gonum/mat"

	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/matutils/initializers/weights"
)

// Encoder maps the raw per-node features of an instance to fixed-size
// embeddings. The embedding of an instance is computed once per
// rollout and reused for every decoding step; recomputing it per
// action would multiply the cost of a rollout by its length.
type Encoder struct {
	we  *mat.Dense // problem.NumFeatures x dim
	be  *mat.Dense // 1 x dim
	dim int
}

// NewEncoder returns a new Encoder producing dim-wide embeddings, with
// weights drawn from init and zero bias.
func NewEncoder(dim int, init weights.Initializer) *Encoder {
	we := mat.NewDense(problem.NumFeatures, dim, nil)
	init.Initialize(we)

	return &Encoder{
		we:  we,
		be:  mat.NewDense(1, dim, nil),
		dim: dim,
	}
}

// Dim returns the embedding width
func (e *Encoder) Dim() int {
	return e.dim
}

// Embed returns the (NumNodes x dim) embedding matrix of an instance
func (e *Encoder) Embed(in *problem.Instance) *mat.Dense {
	numNodes := in.NumNodes()
	x := mat.NewDense(numNodes, problem.NumFeatures, in.Features())

	h := mat.NewDense(numNodes, e.dim, nil)
	h.Mul(x, e.we)
	for node := 0; node < numNodes; node++ {
		row := h.RawRowView(node)
		bias := e.be.RawRowView(0)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return h
}

// MeanEmbedding returns the column mean of an embedding matrix, the
// fixed-size instance summary the critic consumes.
func MeanEmbedding(h *mat.Dense) []float64 {
	rows, cols := h.Dims()
	mean := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := h.RawRowView(i)
		for j := range mean {
			mean[j] += row[j]
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}
	return mean
}

// Backward accumulates the encoder parameter gradients for one
// instance, given the gradient dH of the loss with respect to the
// instance's embedding matrix.
func (e *Encoder) Backward(in *problem.Instance, dH *mat.Dense, g *Grads) {
	x := mat.NewDense(in.NumNodes(), problem.NumFeatures, in.Features())

	var gWe mat.Dense
	gWe.Mul(x.T(), dH)
	g.We.Add(g.We, &gWe)

	rows, _ := dH.Dims()
	gBe := g.Be.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := dH.RawRowView(i)
		for j := range gBe {
			gBe[j] += row[j]
		}
	}
}
