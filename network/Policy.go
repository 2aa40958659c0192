package network

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/floatutils"
	"github.com/Chris-Lee-2028/NIS/utils/matutils/initializers/weights"
)

const problemFeatures = problem.NumFeatures

// CtxFeatures is the number of dynamic scalars appended to the current
// node's embedding to form the decoding context: the remaining
// capacity fraction and the elapsed step fraction.
const CtxFeatures = 2

// DecodeMode selects how the policy turns action probabilities into an
// action
type DecodeMode int

const (
	// Sample draws the action from the masked distribution. Used for
	// training rollouts; requires an RNG.
	Sample DecodeMode = iota

	// Greedy takes the argmax, breaking ties toward the lowest node
	// index. Used for evaluation; fully deterministic.
	Greedy
)

// Policy is the autoregressive decision network. At each step it
// scores every feasible node against a context built from the current
// position and the rollout's dynamic state, masks infeasible nodes to
// probability zero by construction (only feasible nodes are scored),
// and samples or argmaxes the next action.
//
// Gradients are hand-derived rather than taped: the feasibility mask
// and the context change at every step of a variable-length rollout,
// which does not fit a static computation graph.
type Policy struct {
	encoder *Encoder

	wr *mat.Dense // dim x dim, keys
	wq *mat.Dense // (dim+CtxFeatures) x dim, context
	v  *mat.Dense // 1 x dim, score vector

	clip float64
	dim  int
}

// NewPolicy returns a new Policy with dim-wide embeddings and
// compatibility scores clipped to [-clip, clip] before the softmax
func NewPolicy(dim int, clip float64, init weights.Initializer) *Policy {
	p := newEmptyPolicy(dim, clip)
	init.Initialize(p.encoder.we)
	init.Initialize(p.wr)
	init.Initialize(p.wq)
	init.Initialize(p.v)
	return p
}

// newEmptyPolicy returns a Policy with zeroed parameters
func newEmptyPolicy(dim int, clip float64) *Policy {
	return &Policy{
		encoder: &Encoder{
			we:  mat.NewDense(problemFeatures, dim, nil),
			be:  mat.NewDense(1, dim, nil),
			dim: dim,
		},
		wr:   mat.NewDense(dim, dim, nil),
		wq:   mat.NewDense(dim+CtxFeatures, dim, nil),
		v:    mat.NewDense(1, dim, nil),
		clip: clip,
		dim:  dim,
	}
}

// Encoder returns the policy's instance encoder
func (p *Policy) Encoder() *Encoder {
	return p.encoder
}

// Dim returns the embedding width
func (p *Policy) Dim() int {
	return p.dim
}

// Params returns the learnable parameter matrices, in a fixed order
// shared with Grads.List
func (p *Policy) Params() []*mat.Dense {
	return []*mat.Dense{p.encoder.we, p.encoder.be, p.wr, p.wq, p.v}
}

// StepCache records everything one decoding step needs for its
// backward pass: the context, the scored feasible set and the chosen
// action. It is kept on the trajectory during training and discarded
// after the update.
type StepCache struct {
	Cur      int
	Feasible []int
	Probs    []float64

	// Action is the chosen node index; ActionIdx its position within
	// Feasible
	Action    int
	ActionIdx int

	q  []float64  // context input, dim+CtxFeatures wide
	hf *mat.Dense // feasible rows of the embedding
	z  *mat.Dense // tanh activations per feasible node
	u  []float64  // clipped compatibility scores
}

// LogProb returns the log-probability of the chosen action
func (c *StepCache) LogProb() float64 {
	return math.Log(c.Probs[c.ActionIdx])
}

// Entropy returns the entropy of the masked action distribution
func (c *StepCache) Entropy() float64 {
	h := 0.0
	for _, prob := range c.Probs {
		if prob > 0 {
			h -= prob * math.Log(prob)
		}
	}
	return h
}

// Act scores the feasible actions of s against the instance embedding
// emb and selects one according to mode. The embedding must have been
// produced by this policy's encoder for s.Inst; it is never recomputed
// here. Sampling requires rng; greedy decoding ignores it.
func (p *Policy) Act(emb *mat.Dense, s *environment.State, feasible []int,
	mode DecodeMode, rng *rand.Rand) (*StepCache, error) {
	if len(feasible) == 0 {
		return nil, fmt.Errorf("act: no feasible actions")
	}
	if mode == Sample && rng == nil {
		return nil, fmt.Errorf("act: sampling requires an explicit RNG")
	}

	// Decoding context: current node embedding plus the dynamic
	// rollout features.
	q := make([]float64, p.dim+CtxFeatures)
	copy(q, emb.RawRowView(s.Current))
	q[p.dim] = s.Remaining / s.Inst.Capacity
	q[p.dim+1] = float64(s.Steps) / float64(s.Inst.Size())

	var qProj mat.Dense
	qProj.Mul(mat.NewDense(1, p.dim+CtxFeatures, q), p.wq)

	hf := mat.NewDense(len(feasible), p.dim, nil)
	for fi, node := range feasible {
		hf.SetRow(fi, emb.RawRowView(node))
	}

	z := mat.NewDense(len(feasible), p.dim, nil)
	z.Mul(hf, p.wr)

	u := make([]float64, len(feasible))
	vRow := p.v.RawRowView(0)
	qRow := qProj.RawRowView(0)
	for fi := range feasible {
		zi := z.RawRowView(fi)
		score := 0.0
		for col := 0; col < p.dim; col++ {
			zi[col] = math.Tanh(zi[col] + qRow[col])
			score += zi[col] * vRow[col]
		}
		u[fi] = p.clip * math.Tanh(score)
	}

	// Masked softmax: infeasible nodes were never scored, so they
	// carry probability zero by construction.
	maxU, _ := floatutils.MaxSlice(u)
	probs := make([]float64, len(u))
	total := 0.0
	for fi, ui := range u {
		probs[fi] = math.Exp(ui - maxU)
		total += probs[fi]
	}
	for fi := range probs {
		probs[fi] /= total
	}

	var actionIdx int
	switch mode {
	case Greedy:
		_, indices := floatutils.MaxSlice(probs)
		actionIdx = indices[0]
	case Sample:
		sampler := sampleuv.NewWeighted(probs, rng)
		idx, ok := sampler.Take()
		if !ok {
			return nil, fmt.Errorf("act: could not sample an action")
		}
		actionIdx = idx
	default:
		return nil, fmt.Errorf("act: unknown decode mode %v", mode)
	}

	return &StepCache{
		Cur:       s.Current,
		Feasible:  feasible,
		Probs:     probs,
		Action:    feasible[actionIdx],
		ActionIdx: actionIdx,
		q:         q,
		hf:        hf,
		z:         z,
		u:         u,
	}, nil
}

// StepBackward accumulates the parameter gradients of one decoding
// step, given dU, the gradient of the loss with respect to the step's
// clipped scores (one entry per feasible node). Gradients flowing into
// the embedding rows are accumulated in dH, which the caller hands to
// Encoder.Backward once the whole trajectory is processed.
func (p *Policy) StepBackward(c *StepCache, dU []float64, g *Grads,
	dH *mat.Dense) {
	n := len(c.Feasible)
	dPre := mat.NewDense(n, p.dim, nil)
	dQProj := make([]float64, p.dim)

	vRow := p.v.RawRowView(0)
	dV := g.V.RawRowView(0)
	for fi := 0; fi < n; fi++ {
		// Back through the clipped tanh of the score
		t := c.u[fi] / p.clip
		ds := dU[fi] * p.clip * (1 - t*t)

		zi := c.z.RawRowView(fi)
		dp := dPre.RawRowView(fi)
		for col := 0; col < p.dim; col++ {
			dV[col] += ds * zi[col]
			dp[col] = ds * vRow[col] * (1 - zi[col]*zi[col])
			dQProj[col] += dp[col]
		}
	}

	var gWr mat.Dense
	gWr.Mul(c.hf.T(), dPre)
	g.Wr.Add(g.Wr, &gWr)

	var dHF mat.Dense
	dHF.Mul(dPre, p.wr.T())
	for fi, node := range c.Feasible {
		dst := dH.RawRowView(node)
		src := dHF.RawRowView(fi)
		for col := range dst {
			dst[col] += src[col]
		}
	}

	dqp := mat.NewDense(1, p.dim, dQProj)
	var gWq mat.Dense
	gWq.Mul(mat.NewDense(1, p.dim+CtxFeatures, c.q).T(), dqp)
	g.Wq.Add(g.Wq, &gWq)

	var dq mat.Dense
	dq.Mul(dqp, p.wq.T())
	cur := dH.RawRowView(c.Cur)
	for col := 0; col < p.dim; col++ {
		cur[col] += dq.At(0, col)
	}
}
