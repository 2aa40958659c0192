package trackers

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// costSeries is the on-disk form of the data a Cost Tracker records
type costSeries struct {
	Epochs []int
	Costs  []float64
}

// Cost tracks a per-epoch routing cost, for example the mean
// validation cost of a policy, and saves the series with gob. One
// Cost should be created per measured quantity, each with its own
// filename.
//
// Tracking an epoch that was already tracked overwrites the earlier
// value, so resuming an experiment from a checkpoint and re-running
// the checkpointed epoch does not duplicate entries.
type Cost struct {
	filename string
	series   costSeries
}

// NewCost creates and returns a new *Cost Tracker saving to the given
// file
func NewCost(filename string) *Cost {
	return &Cost{filename: filename}
}

// Filename returns the file the tracked series is saved to
func (c *Cost) Filename() string {
	return c.filename
}

// Track records the cost measured at the given epoch
func (c *Cost) Track(epoch int, cost float64) {
	for i, e := range c.series.Epochs {
		if e == epoch {
			c.series.Costs[i] = cost
			return
		}
	}
	c.series.Epochs = append(c.series.Epochs, epoch)
	c.series.Costs = append(c.series.Costs, cost)
}

// Save saves the data tracked by the Cost Tracker to disk
func (c *Cost) Save() error {
	file, err := os.Create(c.filename)
	if err != nil {
		return errors.Wrap(err, "save: could not open save file")
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err := en.Encode(c.series); err != nil {
		return errors.Wrap(err, "save: could not encode cost data")
	}
	return nil
}

// LoadCosts loads a cost series saved by a Cost Tracker, returning
// the tracked epochs and the cost recorded at each
func LoadCosts(filename string) ([]int, []float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loadCosts: could not open file")
	}
	defer file.Close()

	var series costSeries
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&series); err != nil {
		return nil, nil, errors.Wrap(err, "loadCosts: could not decode "+
			"cost data")
	}
	return series.Epochs, series.Costs, nil
}
