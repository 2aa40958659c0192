// Package experiment implements the epoch-based training loop tying
// together instance generation, policy updates, validation,
// checkpointing and tracking.
package experiment

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/Chris-Lee-2028/NIS/agent/reinforce"
	"github.com/Chris-Lee-2028/NIS/evaluate"
	"github.com/Chris-Lee-2028/NIS/experiment/checkpointer"
	"github.com/Chris-Lee-2028/NIS/experiment/trackers"
	"github.com/Chris-Lee-2028/NIS/problem"
	"github.com/Chris-Lee-2028/NIS/utils/progressbar"
)

const barWidth int = 40

// Config describes an Experiment. With an empty SaveDir nothing is
// written to disk: no checkpoints and no tracked cost series.
type Config struct {
	// Epochs is the total number of training epochs to run
	Epochs int

	// BatchesPerEpoch is the number of gradient updates performed per
	// variant in each epoch
	BatchesPerEpoch int

	// SaveDir is the directory checkpoints and tracked data are
	// written to. The empty string disables saving.
	SaveDir string
}

// Validate returns an error if the Config describes an experiment
// that cannot be run
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return errors.Wrapf(problem.ErrInvalidConfiguration,
			"epochs must be positive, got %v", c.Epochs)
	}
	if c.BatchesPerEpoch <= 0 {
		return errors.Wrapf(problem.ErrInvalidConfiguration,
			"batches per epoch must be positive, got %v",
			c.BatchesPerEpoch)
	}
	return nil
}

// Experiment trains a Reinforce agent for a fixed number of epochs.
// Each epoch draws fresh instances from the per-variant generators,
// performs BatchesPerEpoch updates per variant, then measures the
// greedy validation cost on held-out instances. After validation the
// full agent state is checkpointed so that training can resume from
// any completed epoch.
type Experiment struct {
	conf     Config
	agent    *reinforce.Reinforce
	gens     map[problem.Variant]*problem.Generator
	valSets  map[problem.Variant][]*problem.Instance
	evalConf evaluate.Config

	size  int
	costs map[problem.Variant]trackers.Tracker
	check *checkpointer.Epoch

	// firstEpoch is 0 for a fresh experiment and one past the
	// restored epoch after Restore
	firstEpoch int
}

// New creates and returns a new Experiment. One generator is required
// for every variant the agent trains, and the generators fix the graph
// size of the experiment. Validation sets may cover any subset of the
// agent's variants; variants without one are trained but not
// validated.
func New(conf Config, agent *reinforce.Reinforce,
	gens []*problem.Generator,
	valSets map[problem.Variant][]*problem.Instance,
	evalConf evaluate.Config) (*Experiment, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	if err := evalConf.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	byVariant := make(map[problem.Variant]*problem.Generator)
	size := -1
	for _, gen := range gens {
		if size >= 0 && gen.Size() != size {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"new: generators disagree on graph size: %v and %v",
				size, gen.Size())
		}
		size = gen.Size()
		byVariant[gen.Variant()] = gen
	}
	for _, v := range agent.Variants() {
		if _, exists := byVariant[v]; !exists {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"new: no generator for variant %v", v)
		}
	}
	for v := range valSets {
		if agent.Env(v) == nil {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"new: validation set for variant %v, which the agent "+
					"does not train", v)
		}
	}

	e := &Experiment{
		conf:     conf,
		agent:    agent,
		gens:     byVariant,
		valSets:  valSets,
		evalConf: evalConf,
		size:     size,
		costs:    make(map[problem.Variant]trackers.Tracker),
	}

	if conf.SaveDir != "" {
		check, err := checkpointer.NewEpoch(conf.SaveDir, size, agent)
		if err != nil {
			return nil, errors.Wrap(err, "new")
		}
		e.check = check
		for v := range valSets {
			filename := fmt.Sprintf("%v/cost-%v.bin", conf.SaveDir, v)
			e.costs[v] = trackers.NewCost(filename)
		}
	}
	return e, nil
}

// Restore loads the agent state from the checkpoint at path and
// resumes training at the epoch after the checkpointed one. Restore
// must be called before Run.
func (e *Experiment) Restore(path string) error {
	epoch, err := checkpointer.Restore(path, e.size, e.agent)
	if err != nil {
		return errors.Wrap(err, "restore")
	}
	e.firstEpoch = epoch + 1
	return nil
}

// Run runs the remaining epochs of the experiment
func (e *Experiment) Run() error {
	variants := e.agent.Variants()
	batchSize := e.agent.Config().BatchSize

	for epoch := e.firstEpoch; epoch < e.conf.Epochs; epoch++ {
		bar := progressbar.New(fmt.Sprintf("epoch %v", epoch), barWidth,
			e.conf.BatchesPerEpoch*len(variants))
		bar.Display()

		var costSum float64
		var updates int
		for b := 0; b < e.conf.BatchesPerEpoch; b++ {
			for _, v := range variants {
				batch := e.gens[v].Batch(batchSize)
				report, err := e.agent.Update(batch)
				if err != nil {
					return errors.Wrapf(err, "run: epoch %v", epoch)
				}
				costSum += report.MeanCost
				updates++

				bar.Increment()
				bar.Annotate("cost: %.4f", costSum/float64(updates))
				bar.Display()
			}
		}
		bar.Finish()

		valCosts, err := e.Validate()
		if err != nil {
			return errors.Wrapf(err, "run: epoch %v", epoch)
		}
		for v, cost := range valCosts {
			log.Printf("epoch %v: %v validation cost %.4f (%v)", epoch,
				v, cost, e.evalConf.Method())
			if tracker, tracked := e.costs[v]; tracked {
				tracker.Track(epoch, cost)
			}
		}

		if e.check != nil {
			if err := e.check.Checkpoint(epoch); err != nil {
				return errors.Wrapf(err, "run: epoch %v", epoch)
			}
			if err := e.save(); err != nil {
				return errors.Wrapf(err, "run: epoch %v", epoch)
			}
		}
	}
	return nil
}

// Validate measures the mean greedy cost of the agent's current
// policies on the held-out validation sets, one mean per variant that
// has a validation set
func (e *Experiment) Validate() (map[problem.Variant]float64, error) {
	costs := make(map[problem.Variant]float64, len(e.valSets))
	for v, instances := range e.valSets {
		ev, err := evaluate.New(e.agent.Env(v), e.agent.Policy(v),
			e.evalConf)
		if err != nil {
			return nil, errors.Wrapf(err, "validate: variant %v", v)
		}
		perInstance, err := ev.Evaluate(instances)
		if err != nil {
			return nil, errors.Wrapf(err, "validate: variant %v", v)
		}
		costs[v] = floats.Sum(perInstance) / float64(len(perInstance))
	}
	return costs, nil
}

// save saves all tracked cost series to disk
func (e *Experiment) save() error {
	for v, tracker := range e.costs {
		if err := tracker.Save(); err != nil {
			return errors.Wrapf(err, "save: variant %v", v)
		}
	}
	return nil
}
