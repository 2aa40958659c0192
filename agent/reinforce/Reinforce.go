package reinforce

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/initwfn"
	"github.com/Chris-Lee-2028/NIS/network"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/solver"
	"github.com/Chris-Lee-2028/NIS/utils/floatutils"
	"github.com/Chris-Lee-2028/NIS/utils/matutils/initializers/weights"
)

// Reinforce trains one constructive policy per problem variant with
// REINFORCE and a critic baseline. It is the sole mutator of policy
// and critic parameters, applying exactly one update per batch.
type Reinforce struct {
	conf Config

	envs     map[problem.Variant]environment.Environment
	policies map[problem.Variant]*network.Policy
	critics  map[problem.Variant]*network.Critic
	adams    map[problem.Variant]*adam

	rng *rand.Rand
}

// Report summarizes one training update
type Report struct {
	MeanCost    float64
	MinCost     float64
	MaxCost     float64
	PolicyLoss  float64
	CriticLoss  float64
	MeanEntropy float64
}

// New returns a new Reinforce agent training one policy for each of
// the given environments. With conf.SharedCritic set, a single critic
// instance backs every variant and the agent routes baseline queries
// to it regardless of which variant a batch belongs to.
func New(conf Config, envs ...environment.Environment) (*Reinforce, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	conf = conf.withDefaults()
	if len(envs) == 0 {
		return nil, errors.Wrap(problem.ErrInvalidConfiguration,
			"new: need at least one environment")
	}

	src := rand.NewSource(conf.Seed)
	rng := rand.New(src)
	init := weights.NewGlorotU(1.0, distuv.Uniform{Min: 0, Max: 1, Src: src})

	criticInit := conf.CriticInit
	if criticInit == nil {
		var err error
		criticInit, err = initwfn.NewGlorotU(1.0)
		if err != nil {
			return nil, errors.Wrap(err, "new: could not create critic init")
		}
	}

	r := &Reinforce{
		conf:     conf,
		envs:     make(map[problem.Variant]environment.Environment),
		policies: make(map[problem.Variant]*network.Policy),
		critics:  make(map[problem.Variant]*network.Critic),
		adams:    make(map[problem.Variant]*adam),
		rng:      rng,
	}

	var shared *network.Critic
	for _, env := range envs {
		v := env.Variant()
		if _, exists := r.envs[v]; exists {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"new: duplicate environment for variant %v", v)
		}
		r.envs[v] = env

		pol := network.NewPolicy(conf.Dim, conf.ScoreClip, init)
		r.policies[v] = pol
		r.adams[v] = newAdam(conf.PolicyLR, pol.Params())

		if conf.SharedCritic && shared != nil {
			r.critics[v] = shared
			continue
		}
		sol, err := newCriticSolver(conf)
		if err != nil {
			return nil, errors.Wrap(err, "new: could not create critic solver")
		}
		critic, err := network.NewCritic(conf.Dim, conf.CriticHidden,
			conf.BatchSize, criticInit, sol)
		if err != nil {
			return nil, errors.Wrap(err, "new: could not create critic")
		}
		r.critics[v] = critic
		if conf.SharedCritic {
			shared = critic
		}
	}

	return r, nil
}

// newCriticSolver builds one critic solver from the configuration:
// the JSON-described solver when one is given, otherwise Adam with
// CriticLR. Each critic gets its own solver instance, since gorgonia
// solvers carry per-node state.
func newCriticSolver(conf Config) (*solver.Solver, error) {
	if len(conf.CriticSolver) == 0 {
		return solver.NewDefaultAdam(conf.CriticLR, conf.BatchSize)
	}

	sol := new(solver.Solver)
	if err := json.Unmarshal(conf.CriticSolver, sol); err != nil {
		return nil, errors.Wrap(err, "invalid critic solver description")
	}
	return sol, nil
}

// Config returns the agent's configuration
func (r *Reinforce) Config() Config {
	return r.conf
}

// Policy returns the policy trained for a variant
func (r *Reinforce) Policy(v problem.Variant) *network.Policy {
	return r.policies[v]
}

// Env returns the environment for a variant
func (r *Reinforce) Env(v problem.Variant) environment.Environment {
	return r.envs[v]
}

// Variants returns the variants this agent trains, in a stable order
func (r *Reinforce) Variants() []problem.Variant {
	variants := make([]problem.Variant, 0, len(r.envs))
	for v := range r.envs {
		variants = append(variants, v)
	}
	sort.Slice(variants, func(i, j int) bool {
		return variants[i] < variants[j]
	})
	return variants
}

// RNG returns the agent's seeded RNG, shared by sampling rollouts
func (r *Reinforce) RNG() *rand.Rand {
	return r.rng
}

// Update performs one training step on a batch of instances: sample
// rollouts, query the critic baseline, accumulate the policy gradient
// and apply exactly one optimizer step to each network.
//
// The two losses are backpropagated independently. The baseline enters
// the advantage as a plain number, so no critic gradient reaches the
// policy; the critic regresses on detached mean embeddings, so no
// policy gradient reaches the critic or the encoder through it.
func (r *Reinforce) Update(batch []*problem.Instance) (Report, error) {
	if len(batch) != r.conf.BatchSize {
		return Report{}, errors.Wrapf(problem.ErrInvalidConfiguration,
			"update: batch of %v instances, agent built for %v",
			len(batch), r.conf.BatchSize)
	}
	v := batch[0].Variant
	env, exists := r.envs[v]
	if !exists {
		return Report{}, errors.Wrapf(problem.ErrInvalidConfiguration,
			"update: agent does not train variant %v", v)
	}
	pol := r.policies[v]

	trajs, err := Rollout(env, pol, batch, network.Sample, r.rng)
	if err != nil {
		return Report{}, errors.Wrap(err, "update")
	}

	// Critic baseline and regression target per instance
	inputs := make([]float64, 0, len(batch)*r.conf.Dim)
	returns := make([]float64, len(batch))
	for i, tr := range trajs {
		inputs = append(inputs, network.MeanEmbedding(tr.Emb)...)
		returns[i] = tr.Return
	}
	baseline, criticLoss, err := r.critics[v].Update(inputs, returns)
	if err != nil {
		return Report{}, errors.Wrap(err, "update")
	}

	grads := pol.NewGrads()
	var report Report
	costs := make([]float64, len(trajs))
	for i, tr := range trajs {
		advantage := tr.Return - baseline[i]
		dH := mat.NewDense(tr.Inst.NumNodes(), r.conf.Dim, nil)

		for _, c := range tr.Steps {
			logProb := c.LogProb()
			entropy := c.Entropy()
			report.PolicyLoss += -advantage * logProb
			report.PolicyLoss -= r.conf.EntropyCoef * entropy
			report.MeanEntropy += entropy

			dU := make([]float64, len(c.Feasible))
			for fi := range c.Feasible {
				prob := c.Probs[fi]
				delta := 0.0
				if fi == c.ActionIdx {
					delta = 1.0
				}
				dU[fi] = -advantage * (delta - prob)
				if r.conf.EntropyCoef > 0 && prob > 0 {
					dU[fi] += r.conf.EntropyCoef * prob *
						(math.Log(prob) + entropy)
				}
			}
			pol.StepBackward(c, dU, grads, dH)
		}

		pol.Encoder().Backward(tr.Inst, dH, grads)
		costs[i] = tr.Cost()
		report.MeanCost += costs[i]
	}

	// One atomic parameter update for the whole batch
	batchSize := float64(len(batch))
	grads.Scale(1 / batchSize)
	if r.conf.GradClip > 0 {
		clipGrads(grads.List(), r.conf.GradClip)
	}
	r.adams[v].Step(pol.Params(), grads.List())

	report.MinCost = floatutils.Min(costs...)
	report.MaxCost = floatutils.Max(costs...)
	report.MeanCost /= batchSize
	report.PolicyLoss /= batchSize
	report.MeanEntropy /= batchSize
	report.CriticLoss = criticLoss
	return report, nil
}

// clipGrads bounds every gradient element to [-clip, clip]
func clipGrads(grads []*mat.Dense, clip float64) {
	for _, g := range grads {
		data := g.RawMatrix().Data
		for i := range data {
			data[i] = floatutils.Clip(data[i], -clip, clip)
		}
	}
}

// agentState is the gob wire form of an agent: per-variant policies
// and optimizer states, plus each distinct critic (a shared critic is
// stored once).
type agentState struct {
	Variants []problem.Variant
	Policies [][]byte
	Adams    [][]byte
	Shared   bool
	Critics  [][]byte
}

// GobEncode implements the gob.GobEncoder interface, capturing policy
// parameters, critic parameters and optimizer state.
func (r *Reinforce) GobEncode() ([]byte, error) {
	state := agentState{Shared: r.conf.SharedCritic}

	for _, v := range r.Variants() {
		state.Variants = append(state.Variants, v)

		pol, err := r.policies[v].GobEncode()
		if err != nil {
			return nil, errors.Wrapf(err, "gobencode: policy %v", v)
		}
		state.Policies = append(state.Policies, pol)

		opt, err := r.adams[v].GobEncode()
		if err != nil {
			return nil, errors.Wrapf(err, "gobencode: optimizer %v", v)
		}
		state.Adams = append(state.Adams, opt)

		if r.conf.SharedCritic && len(state.Critics) > 0 {
			continue
		}
		critic, err := r.critics[v].GobEncode()
		if err != nil {
			return nil, errors.Wrapf(err, "gobencode: critic %v", v)
		}
		state.Critics = append(state.Critics, critic)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, errors.Wrap(err, "gobencode: could not encode agent")
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The receiver must
// already be constructed with a matching configuration; decoding
// restores all parameters to the encoded numeric state.
func (r *Reinforce) GobDecode(in []byte) error {
	var state agentState
	if err := gob.NewDecoder(bytes.NewBuffer(in)).Decode(&state); err != nil {
		return errors.Wrap(err, "gobdecode: could not decode agent")
	}

	variants := r.Variants()
	if len(state.Variants) != len(variants) ||
		state.Shared != r.conf.SharedCritic {
		return errors.Errorf("gobdecode: agent trains %v with shared "+
			"critic %v, checkpoint holds %v with shared critic %v",
			variants, r.conf.SharedCritic, state.Variants, state.Shared)
	}

	criticIdx := 0
	for i, v := range state.Variants {
		if variants[i] != v {
			return errors.Errorf("gobdecode: agent trains %v, checkpoint "+
				"holds %v", variants, state.Variants)
		}

		if err := r.policies[v].GobDecode(state.Policies[i]); err != nil {
			return errors.Wrapf(err, "gobdecode: policy %v", v)
		}
		if r.policies[v].Dim() != r.conf.Dim {
			return errors.Errorf("gobdecode: policy %v has embedding "+
				"width %v, agent built for %v", v, r.policies[v].Dim(),
				r.conf.Dim)
		}
		if err := r.adams[v].GobDecode(state.Adams[i]); err != nil {
			return errors.Wrapf(err, "gobdecode: optimizer %v", v)
		}

		if r.conf.SharedCritic && criticIdx > 0 {
			continue
		}
		if criticIdx >= len(state.Critics) {
			return errors.Errorf("gobdecode: checkpoint is missing critic "+
				"%v", criticIdx)
		}
		if err := r.critics[v].GobDecode(state.Critics[criticIdx]); err != nil {
			return errors.Wrapf(err, "gobdecode: critic %v", v)
		}
		criticIdx++
	}

	return nil
}
