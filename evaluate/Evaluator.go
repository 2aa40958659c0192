package evaluate

import (
	"github.com/pkg/errors"

	"github.com/Chris-Lee-2028/NIS/agent/reinforce"
	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/network"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/floatutils"
)

// Config configures an Evaluator
type Config struct {
	// ValM is the number of augmented copies evaluated per instance.
	// 1 evaluates the plain instance only.
	ValM int

	// BatchSize bounds how many augmented copies are decoded in one
	// rollout batch
	BatchSize int
}

// Method names the evaluation scheme the configuration selects:
// plain greedy decoding ("NIS") or augmented greedy decoding with
// min-reduction ("NIS-A").
func (c Config) Method() string {
	if c.ValM > 1 {
		return "NIS-A"
	}
	return "NIS"
}

// Validate rejects inconsistent evaluator configurations
func (c Config) Validate() error {
	if c.ValM < 1 {
		return errors.Wrapf(problem.ErrInvalidConfiguration,
			"val_m %v must be at least 1", c.ValM)
	}
	if c.BatchSize < 1 {
		return errors.Wrapf(problem.ErrInvalidConfiguration,
			"val batch size %v must be at least 1", c.BatchSize)
	}
	return nil
}

// Evaluator runs a policy greedily over augmented copies of held-out
// instances and reports the best cost per original instance. The
// policy's parameters are only read, never written, for the whole
// evaluation run.
type Evaluator struct {
	env  environment.Environment
	pol  *network.Policy
	conf Config
	augs []Augmentation
}

// New returns a new Evaluator for a trained policy
func New(env environment.Environment, pol *network.Policy,
	conf Config) (*Evaluator, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	return &Evaluator{
		env:  env,
		pol:  pol,
		conf: conf,
		augs: Set(conf.ValM),
	}, nil
}

// Evaluate decodes every instance greedily on each of its ValM
// augmented copies and returns, per original instance, the minimum
// cost across augmentations. The returned slice always holds exactly
// one cost per input instance.
//
// With ValM = 1 the evaluation is fully deterministic: greedy decoding
// uses no randomness, so two runs with identical parameters report
// identical costs.
func (e *Evaluator) Evaluate(instances []*problem.Instance) ([]float64,
	error) {
	if len(instances) == 0 {
		return nil, errors.Wrap(problem.ErrInvalidConfiguration,
			"evaluate: no instances")
	}
	for i, in := range instances {
		if in.Variant != e.env.Variant() {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"evaluate: instance %v is %v, evaluator serves %v", i,
				in.Variant, e.env.Variant())
		}
	}

	// Replicate each instance across the augmentation set. Copies of
	// one instance stay adjacent so the min-reduction below is a
	// simple stride.
	copies := make([]*problem.Instance, 0, len(instances)*e.conf.ValM)
	for _, in := range instances {
		for _, aug := range e.augs {
			copies = append(copies, aug(in))
		}
	}

	costs := make([]float64, 0, len(copies))
	for start := 0; start < len(copies); start += e.conf.BatchSize {
		end := start + e.conf.BatchSize
		if end > len(copies) {
			end = len(copies)
		}

		trajs, err := reinforce.Rollout(e.env, e.pol, copies[start:end],
			network.Greedy, nil)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate")
		}
		for _, tr := range trajs {
			costs = append(costs, tr.Cost())
		}
	}

	best := make([]float64, len(instances))
	for i := range instances {
		group := costs[i*e.conf.ValM : (i+1)*e.conf.ValM]
		best[i], _ = floatutils.MinSlice(group)
	}
	return best, nil
}
