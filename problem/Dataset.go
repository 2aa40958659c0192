package problem

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// SaveDataset serializes a collection of instances to a single file.
// The whole collection is written at once so that evaluation can load
// it wholesale before any rollout starts.
func SaveDataset(filename string, instances []*Instance) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "saveDataset: could not open save file")
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err := en.Encode(instances); err != nil {
		return errors.Wrap(err, "saveDataset: could not encode instances")
	}
	return nil
}

// LoadDataset loads a collection of instances saved by SaveDataset and
// validates each before returning.
func LoadDataset(filename string) ([]*Instance, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "loadDataset: could not open dataset")
	}
	defer file.Close()

	var instances []*Instance
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&instances); err != nil {
		return nil, errors.Wrap(err, "loadDataset: could not decode dataset")
	}

	for i, in := range instances {
		if err := in.Validate(); err != nil {
			return nil, errors.Wrapf(err, "loadDataset: instance %v", i)
		}
	}
	return instances, nil
}
