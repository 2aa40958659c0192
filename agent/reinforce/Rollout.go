package reinforce

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/network"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// Trajectory is one complete rollout of an instance: the per-step
// decision caches, rewards, and the terminal state. It exists only
// between a rollout and the parameter update that consumes it.
type Trajectory struct {
	Inst *problem.Instance

	// Emb is the instance embedding, computed once at rollout start
	// and reused for every decoding step
	Emb *mat.Dense

	Steps   []*network.StepCache
	Rewards []float64

	// Return is the sum of step rewards, the negative total tour cost
	Return float64

	// Final is the terminal state
	Final *environment.State
}

// Cost returns the total tour cost of the trajectory, including any
// forced-termination penalty
func (t *Trajectory) Cost() float64 {
	return -t.Return
}

// Rollout drives the policy and environment to completion for a batch
// of instances, returning one trajectory per instance. All instances
// must share the environment's variant and a single graph size:
// instances of different sizes are never mixed in one rollout batch.
//
// The batch is processed as an arena of active states, stepped in slot
// order, so a seeded rng yields identical rollouts across runs.
func Rollout(env environment.Environment, pol *network.Policy,
	batch []*problem.Instance, mode network.DecodeMode,
	rng *rand.Rand) ([]*Trajectory, error) {
	if len(batch) == 0 {
		return nil, errors.Wrap(problem.ErrInvalidConfiguration,
			"rollout: empty batch")
	}

	size := batch[0].Size()
	for _, in := range batch {
		if in.Variant != env.Variant() {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"rollout: %v instance in a %v batch", in.Variant,
				env.Variant())
		}
		if in.Size() != size {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"rollout: mixed sizes %v and %v in one batch", size,
				in.Size())
		}
	}

	trajs := make([]*Trajectory, len(batch))
	states := make([]*environment.State, len(batch))
	for slot, in := range batch {
		trajs[slot] = &Trajectory{
			Inst: in,
			Emb:  pol.Encoder().Embed(in),
		}
		states[slot] = env.Reset(in)
	}

	active := len(batch)
	for active > 0 {
		for slot, s := range states {
			if s == nil {
				continue
			}

			cache, err := pol.Act(trajs[slot].Emb, s, env.FeasibleActions(s),
				mode, rng)
			if err != nil {
				return nil, errors.Wrapf(err, "rollout: slot %v", slot)
			}

			reward, done := env.Step(s, cache.Action)
			trajs[slot].Steps = append(trajs[slot].Steps, cache)
			trajs[slot].Rewards = append(trajs[slot].Rewards, reward)
			trajs[slot].Return += reward

			if done {
				trajs[slot].Final = s
				states[slot] = nil
				active--
			}
		}
	}

	return trajs, nil
}
