package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/Chris-Lee-2028/NIS/agent/reinforce"
	"github.com/Chris-Lee-2028/NIS/environment"
	"github.com/Chris-Lee-2028/NIS/environment/nvrp"
	"github.com/Chris-Lee-2028/NIS/environment/nvta"
	"github.com/Chris-Lee-2028/NIS/evaluate"
	"github.com/Chris-Lee-2028/NIS/experiment"
	"github.com/Chris-Lee-2028/NIS/experiment/checkpointer"
	"github.com/Chris-Lee-2028/NIS/initwfn"
	"github.com/Chris-Lee-2028/NIS/problem"
)

// Command line arguments
var (
	problems     string
	graphSize    int
	sharedCritic bool
	evalOnly     bool
	noSaving     bool
	noTB         bool
	valDataset   string
	loadPath     string
	valSize      int
	valBatchSize int
	valM         int
	tMax         int
	seed         uint64
	epochs       int
	epochSize    int
	batchSize    int
	lr           float64
	criticLR     float64
	entropy      float64
	gradClip     float64
	criticConfig string
	outputDir    string
)

func getRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "nis",
		Short: "Train and evaluate neural constructive routing policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	flags := rootCommand.Flags()
	flags.StringVar(&problems, "problem", "nvrp",
		"Problem variant(s) to train, comma separated (nvrp, nvta)")
	flags.IntVar(&graphSize, "graph_size", 20,
		"Number of customer nodes per instance")
	flags.BoolVar(&sharedCritic, "shared_critic", false,
		"Use one critic for all problem variants")
	flags.BoolVar(&evalOnly, "eval_only", false,
		"Skip training and only evaluate a loaded model")
	flags.BoolVar(&noSaving, "no_saving", false,
		"Disable checkpoints and tracked data")
	flags.BoolVar(&noTB, "no_tb", false,
		"Accepted for script compatibility; no effect")
	flags.StringVar(&valDataset, "val_dataset", "",
		"Validation dataset file; empty generates one from the seed")
	flags.StringVar(&loadPath, "load_path", "",
		"Checkpoint to load before training or evaluating")
	flags.IntVar(&valSize, "val_size", 1000,
		"Number of generated validation instances per variant")
	flags.IntVar(&valBatchSize, "val_batch_size", 256,
		"Instances decoded per evaluation batch")
	flags.IntVar(&valM, "val_m", 1,
		"Augmented copies evaluated per instance (1 disables "+
			"augmentation)")
	flags.IntVar(&tMax, "T_max", 0,
		"Rollout step budget; 0 selects 2*graph_size+1")
	flags.Uint64Var(&seed, "seed", 1234, "Random seed")
	flags.IntVar(&epochs, "epochs", 100, "Training epochs")
	flags.IntVar(&epochSize, "epoch_size", 12800,
		"Training instances drawn per variant per epoch")
	flags.IntVar(&batchSize, "batch_size", 128, "Training batch size")
	flags.Float64Var(&lr, "lr", 1e-4, "Policy learning rate")
	flags.Float64Var(&criticLR, "critic_lr", 1e-3,
		"Critic learning rate")
	flags.Float64Var(&entropy, "entropy", 0.01,
		"Entropy bonus coefficient")
	flags.Float64Var(&gradClip, "grad_clip", 0,
		"Bound on each policy gradient element; 0 disables clipping")
	flags.StringVar(&criticConfig, "critic_config", "",
		"JSON file selecting the critic weight initializer and solver")
	flags.StringVar(&outputDir, "output_dir", "outputs",
		"Directory run outputs are written under")

	return rootCommand
}

// parseVariants parses the comma separated --problem argument
func parseVariants(arg string) ([]problem.Variant, error) {
	var variants []problem.Variant
	for _, name := range strings.Split(arg, ",") {
		v := problem.Variant(strings.TrimSpace(name))
		if !v.Valid() {
			return nil, errors.Wrapf(problem.ErrInvalidConfiguration,
				"unknown problem variant %q", name)
		}
		for _, seen := range variants {
			if seen == v {
				return nil, errors.Wrapf(
					problem.ErrInvalidConfiguration,
					"problem variant %v given twice", v)
			}
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// newEnv returns the environment for a variant with the configured
// step budget
func newEnv(v problem.Variant) environment.Environment {
	switch v {
	case problem.NVTA:
		return nvta.New(tMax)
	default:
		return nvrp.New(tMax)
	}
}

// validationSets builds the per-variant validation sets, either read
// from --val_dataset or generated from a seed independent of the
// training stream
func validationSets(variants []problem.Variant) (
	map[problem.Variant][]*problem.Instance, error) {
	valSets := make(map[problem.Variant][]*problem.Instance)

	if valDataset != "" {
		instances, err := problem.LoadDataset(valDataset)
		if err != nil {
			return nil, err
		}
		trained := make(map[problem.Variant]bool, len(variants))
		for _, v := range variants {
			trained[v] = true
		}
		for _, in := range instances {
			if !trained[in.Variant] {
				return nil, errors.Wrapf(
					problem.ErrInvalidConfiguration,
					"validation dataset holds %v instances but this "+
						"run trains %v", in.Variant, problems)
			}
			if in.Size() != graphSize {
				return nil, errors.Wrapf(
					problem.ErrInvalidConfiguration,
					"validation dataset holds size %v instances, run "+
						"uses graph size %v", in.Size(), graphSize)
			}
			valSets[in.Variant] = append(valSets[in.Variant], in)
		}
		return valSets, nil
	}

	for i, v := range variants {
		gen, err := problem.NewGenerator(problem.GeneratorConfig{
			Variant: v,
			Size:    graphSize,
		}, seed+1000+uint64(i))
		if err != nil {
			return nil, err
		}
		valSets[v] = gen.Batch(valSize)
	}
	return valSets, nil
}

// criticSettings is the on-disk form of a --critic_config file. Both
// fields are optional; an omitted field keeps the default critic
// initializer or solver.
type criticSettings struct {
	Init   *initwfn.InitWFn `json:"Init,omitempty"`
	Solver json.RawMessage  `json:"Solver,omitempty"`
}

// loadCriticSettings applies a --critic_config file to the agent
// configuration
func loadCriticSettings(path string, conf *reinforce.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "could not read critic config %v", path)
	}
	var settings criticSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return errors.Wrapf(err, "could not parse critic config %v", path)
	}
	conf.CriticInit = settings.Init
	conf.CriticSolver = settings.Solver
	return nil
}

// runArgs is the argument record saved beside a run's checkpoints
type runArgs struct {
	Problem      string  `json:"problem"`
	GraphSize    int     `json:"graph_size"`
	SharedCritic bool    `json:"shared_critic"`
	ValM         int     `json:"val_m"`
	TMax         int     `json:"T_max"`
	Seed         uint64  `json:"seed"`
	Epochs       int     `json:"epochs"`
	EpochSize    int     `json:"epoch_size"`
	BatchSize    int     `json:"batch_size"`
	LR           float64 `json:"lr"`
	CriticLR     float64 `json:"critic_lr"`
	Entropy      float64 `json:"entropy"`
	GradClip     float64 `json:"grad_clip"`
}

// saveArgs writes the run's arguments into its output directory
func saveArgs(dir string) error {
	args := runArgs{
		Problem:      problems,
		GraphSize:    graphSize,
		SharedCritic: sharedCritic,
		ValM:         valM,
		TMax:         tMax,
		Seed:         seed,
		Epochs:       epochs,
		EpochSize:    epochSize,
		BatchSize:    batchSize,
		LR:           lr,
		CriticLR:     criticLR,
		Entropy:      entropy,
		GradClip:     gradClip,
	}
	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode run arguments")
	}
	filename := filepath.Join(dir, "args.json")
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "could not write %v", filename)
	}
	return nil
}

// evaluateOnly evaluates a loaded agent on the validation sets without
// any training
func evaluateOnly(agent *reinforce.Reinforce,
	valSets map[problem.Variant][]*problem.Instance,
	evalConf evaluate.Config) error {
	for _, v := range agent.Variants() {
		instances, exists := valSets[v]
		if !exists {
			continue
		}
		ev, err := evaluate.New(agent.Env(v), agent.Policy(v), evalConf)
		if err != nil {
			return err
		}
		costs, err := ev.Evaluate(instances)
		if err != nil {
			return err
		}
		mean := floats.Sum(costs) / float64(len(costs))
		fmt.Printf("%v: mean cost %.4f over %v instances (%v)\n", v,
			mean, len(costs), evalConf.Method())
	}
	return nil
}

func run() error {
	variants, err := parseVariants(problems)
	if err != nil {
		return err
	}

	conf := reinforce.DefaultConfig()
	conf.BatchSize = batchSize
	conf.PolicyLR = lr
	conf.CriticLR = criticLR
	conf.EntropyCoef = entropy
	conf.GradClip = gradClip
	conf.SharedCritic = sharedCritic
	conf.Seed = seed
	if criticConfig != "" {
		if err := loadCriticSettings(criticConfig, &conf); err != nil {
			return err
		}
	}

	envs := make([]environment.Environment, len(variants))
	for i, v := range variants {
		envs[i] = newEnv(v)
	}
	agent, err := reinforce.New(conf, envs...)
	if err != nil {
		return err
	}

	valSets, err := validationSets(variants)
	if err != nil {
		return err
	}
	evalConf := evaluate.Config{ValM: valM, BatchSize: valBatchSize}

	if evalOnly {
		if loadPath == "" {
			return errors.Wrap(problem.ErrInvalidConfiguration,
				"--eval_only requires --load_path")
		}
		epoch, err := checkpointer.Restore(loadPath, graphSize, agent)
		if err != nil {
			return err
		}
		log.Printf("loaded checkpoint from epoch %v", epoch)
		return evaluateOnly(agent, valSets, evalConf)
	}

	gens := make([]*problem.Generator, len(variants))
	for i, v := range variants {
		gens[i], err = problem.NewGenerator(problem.GeneratorConfig{
			Variant: v,
			Size:    graphSize,
		}, seed+uint64(i))
		if err != nil {
			return err
		}
	}

	expConf := experiment.Config{
		Epochs:          epochs,
		BatchesPerEpoch: epochSize / batchSize,
	}
	if !noSaving {
		runName := fmt.Sprintf("%v-%v-%v",
			strings.ReplaceAll(problems, ",", "+"), graphSize,
			time.Now().Format("20060102T150405"))
		expConf.SaveDir = filepath.Join(outputDir, runName)
	}

	exp, err := experiment.New(expConf, agent, gens, valSets, evalConf)
	if err != nil {
		return err
	}
	if expConf.SaveDir != "" {
		if err := saveArgs(expConf.SaveDir); err != nil {
			return err
		}
		log.Printf("saving run outputs to %v", expConf.SaveDir)
	}
	if loadPath != "" {
		if err := exp.Restore(loadPath); err != nil {
			return err
		}
		log.Printf("resuming from %v", loadPath)
	}
	return exp.Run()
}

func main() {
	if err := getRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
