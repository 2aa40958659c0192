package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/Chris-Lee-2028/NIS/initwfn"
	"github.com/Chris-Lee-2028/NIS/solver"
)

// Critic estimates the expected return of a batch of instances from
// their mean embeddings. It is a small fully connected network living
// on a Gorgonia graph: unlike the policy's decoder, its shapes are
// static, so the graph is built once with the batch size baked in and
// driven by a tape machine.
//
// The critic's input is a detached copy of the encoder's output;
// critic gradients never reach the encoder, and the advantage term
// never carries gradient back into the critic.
type Critic struct {
	g       *G.ExprGraph
	input   *G.Node
	targets *G.Node

	prediction *G.Node
	predVal    G.Value
	lossVal    G.Value

	learnables G.Nodes
	vm         G.VM
	solver     *solver.Solver

	batch    int
	features int
	hidden   int
}

// NewCritic returns a new Critic over batchSize mean embeddings of
// width features, with one hidden layer of the given width. The
// solver is stepped on every Update call.
func NewCritic(features, hidden, batchSize int, init *initwfn.InitWFn,
	sol *solver.Solver) (*Critic, error) {
	if features <= 0 || hidden <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("newCritic: dimensions must be positive")
	}

	g := G.NewGraph()

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batchSize, features),
		G.WithName("CriticInput"),
		G.WithInit(G.Zeroes()),
	)
	targets := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(batchSize),
		G.WithName("CriticTargets"),
		G.WithInit(G.Zeroes()),
	)

	w1 := G.NewMatrix(g, tensor.Float64, G.WithShape(features, hidden),
		G.WithName("CriticL1Weights"), G.WithInit(init.InitWFn()))
	b1 := G.NewMatrix(g, tensor.Float64, G.WithShape(1, hidden),
		G.WithName("CriticL1Bias"), G.WithInit(G.Zeroes()))
	w2 := G.NewMatrix(g, tensor.Float64, G.WithShape(hidden, 1),
		G.WithName("CriticL2Weights"), G.WithInit(init.InitWFn()))
	b2 := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 1),
		G.WithName("CriticL2Bias"), G.WithInit(G.Zeroes()))

	out := G.Must(G.Mul(input, w1))
	out = G.Must(G.BroadcastAdd(out, b1, nil, []byte{0}))
	out = G.Must(G.Rectify(out))
	out = G.Must(G.Mul(out, w2))
	out = G.Must(G.BroadcastAdd(out, b2, nil, []byte{0}))

	prediction := G.Must(G.Reshape(out, tensor.Shape{batchSize}))

	loss := G.Must(G.Sub(prediction, targets))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))

	learnables := G.Nodes{w1, b1, w2, b2}
	if _, err := G.Grad(loss, learnables...); err != nil {
		return nil, fmt.Errorf("newCritic: could not construct gradient: %v",
			err)
	}

	c := &Critic{
		g:          g,
		input:      input,
		targets:    targets,
		prediction: prediction,
		learnables: learnables,
		solver:     sol,
		batch:      batchSize,
		features:   features,
		hidden:     hidden,
	}
	G.Read(prediction, &c.predVal)
	G.Read(loss, &c.lossVal)

	c.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return c, nil
}

// Batch returns the batch size the critic's graph was built for
func (c *Critic) Batch() int {
	return c.batch
}

// Features returns the input width the critic's graph was built for
func (c *Critic) Features() int {
	return c.features
}

// run executes one forward-backward pass for the given inputs and
// regression targets
func (c *Critic) run(inputs, targets []float64) error {
	if len(inputs) != c.batch*c.features {
		return fmt.Errorf("critic: have %v inputs, want %v",
			len(inputs), c.batch*c.features)
	}
	if len(targets) != c.batch {
		return fmt.Errorf("critic: have %v targets, want %v",
			len(targets), c.batch)
	}

	in := tensor.NewDense(tensor.Float64, []int{c.batch, c.features},
		tensor.WithBacking(inputs))
	if err := G.Let(c.input, in); err != nil {
		return fmt.Errorf("critic: could not set input: %v", err)
	}
	target := tensor.NewDense(tensor.Float64, []int{c.batch},
		tensor.WithBacking(targets))
	if err := G.Let(c.targets, target); err != nil {
		return fmt.Errorf("critic: could not set targets: %v", err)
	}

	return c.vm.RunAll()
}

// Predict returns the baseline estimates for a batch of mean
// embeddings without updating the critic
func (c *Critic) Predict(inputs []float64) ([]float64, error) {
	if err := c.run(inputs, make([]float64, c.batch)); err != nil {
		return nil, err
	}
	baseline := make([]float64, c.batch)
	copy(baseline, c.predVal.Data().([]float64))
	c.vm.Reset()
	return baseline, nil
}

// Update regresses the critic toward the observed returns and returns
// the pre-update baseline estimates together with the critic loss. The
// baseline is read before the solver steps, so the caller's advantages
// always use the critic as it was when the batch was rolled out.
func (c *Critic) Update(inputs, returns []float64) (baseline []float64,
	loss float64, err error) {
	if err := c.run(inputs, returns); err != nil {
		return nil, 0, err
	}

	baseline = make([]float64, c.batch)
	copy(baseline, c.predVal.Data().([]float64))
	loss = c.lossVal.Data().(float64)

	if err := c.solver.Step(G.NodesToValueGrads(c.learnables)); err != nil {
		return nil, 0, fmt.Errorf("critic: could not step solver: %v", err)
	}
	c.vm.Reset()
	return baseline, loss, nil
}

// Weights returns a copy of the critic's learnable values in a fixed
// order
func (c *Critic) Weights() [][]float64 {
	weights := make([][]float64, len(c.learnables))
	for i, learnable := range c.learnables {
		data := learnable.Value().Data().([]float64)
		weights[i] = make([]float64, len(data))
		copy(weights[i], data)
	}
	return weights
}

// SetWeights overwrites the critic's learnable values. The weights
// must have been produced by Weights on a critic of identical
// configuration.
func (c *Critic) SetWeights(weights [][]float64) error {
	if len(weights) != len(c.learnables) {
		return fmt.Errorf("setWeights: have %v weight sets, want %v",
			len(weights), len(c.learnables))
	}
	for i, learnable := range c.learnables {
		if len(weights[i]) != learnable.Shape().TotalSize() {
			return fmt.Errorf("setWeights: weight set %v has %v values, "+
				"want %v", i, len(weights[i]), learnable.Shape().TotalSize())
		}
		data := make([]float64, len(weights[i]))
		copy(data, weights[i])
		t := tensor.NewDense(tensor.Float64, learnable.Shape(),
			tensor.WithBacking(data))
		if err := G.Let(learnable, t); err != nil {
			return fmt.Errorf("setWeights: could not set weight set %v: %v",
				i, err)
		}
	}
	return nil
}

// GobEncode implements the gob.GobEncoder interface
func (c *Critic) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	dims := []int{c.features, c.hidden, c.batch}
	if err := enc.Encode(dims); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode dims: %v", err)
	}
	if err := enc.Encode(c.Weights()); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode weights: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The receiver must
// already be constructed; decoding restores weights into it and fails
// when the encoded dimensions disagree with the receiver's.
func (c *Critic) GobDecode(in []byte) error {
	buf := bytes.NewBuffer(in)
	dec := gob.NewDecoder(buf)

	var dims []int
	if err := dec.Decode(&dims); err != nil {
		return fmt.Errorf("gobdecode: could not decode dims: %v", err)
	}
	if len(dims) != 3 || dims[0] != c.features || dims[1] != c.hidden ||
		dims[2] != c.batch {
		return fmt.Errorf("gobdecode: critic built for "+
			"(features, hidden, batch) = (%v, %v, %v), checkpoint holds %v",
			c.features, c.hidden, c.batch, dims)
	}

	var weights [][]float64
	if err := dec.Decode(&weights); err != nil {
		return fmt.Errorf("gobdecode: could not decode weights: %v", err)
	}
	return c.SetWeights(weights)
}
