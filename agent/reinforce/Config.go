// Package reinforce implements REINFORCE-with-baseline training of
// constructive routing policies
package reinforce

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Chris-Lee-2028/NIS/initwfn"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// Config configures a Reinforce agent. The shared-critic toggle is an
// explicit construction-time setting, not a mutable global: with it
// set, one critic serves every problem variant of a joint training
// run, and the trainer routes critic calls by the batch's variant tag.
type Config struct {
	// Dim is the embedding width of the policy encoder
	Dim int

	// CriticHidden is the hidden layer width of the critic
	CriticHidden int

	// BatchSize is the number of instances per training batch. The
	// critic graph is built for exactly this batch size.
	BatchSize int

	PolicyLR float64
	CriticLR float64

	// EntropyCoef weighs the entropy bonus added to the policy loss.
	// Zero disables the bonus.
	EntropyCoef float64

	// ScoreClip bounds compatibility scores to [-ScoreClip, ScoreClip]
	// before the softmax
	ScoreClip float64

	// GradClip bounds each policy gradient element to
	// [-GradClip, GradClip] before the optimizer step. Zero disables
	// clipping.
	GradClip float64

	// CriticInit selects the critic weight initializer. Nil selects
	// Glorot Uniform with gain 1.
	CriticInit *initwfn.InitWFn

	// CriticSolver describes the critic solver as JSON in the solver
	// package's format, one fresh solver per critic. Empty selects
	// Adam with CriticLR.
	CriticSolver json.RawMessage

	// SharedCritic selects one critic for all problem variants instead
	// of one critic per variant
	SharedCritic bool

	Seed uint64
}

// DefaultConfig returns the configuration used when a run does not
// override hyperparameters
func DefaultConfig() Config {
	return Config{
		Dim:          64,
		CriticHidden: 64,
		BatchSize:    128,
		PolicyLR:     1e-4,
		CriticLR:     1e-3,
		EntropyCoef:  0.01,
		ScoreClip:    10,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Dim == 0 {
		c.Dim = def.Dim
	}
	if c.CriticHidden == 0 {
		c.CriticHidden = def.CriticHidden
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.PolicyLR == 0 {
		c.PolicyLR = def.PolicyLR
	}
	if c.CriticLR == 0 {
		c.CriticLR = def.CriticLR
	}
	if c.ScoreClip == 0 {
		c.ScoreClip = def.ScoreClip
	}
	return c
}

// Validate rejects inconsistent agent configurations
func (c Config) Validate() error {
	if c.Dim < 0 || c.CriticHidden < 0 || c.BatchSize < 0 {
		return errors.Wrap(problem.ErrInvalidConfiguration,
			"agent dimensions must not be negative")
	}
	if c.PolicyLR < 0 || c.CriticLR < 0 || c.EntropyCoef < 0 ||
		c.ScoreClip < 0 || c.GradClip < 0 {
		return errors.Wrap(problem.ErrInvalidConfiguration,
			"agent hyperparameters must not be negative")
	}
	return nil
}
