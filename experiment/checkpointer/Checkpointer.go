// Package checkpointer implements checkpointing/saving of serializable
// objects during an experiment
package checkpointer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrMismatch is returned when a checkpoint was written for a model
// configuration different from the one it is being restored into
var ErrMismatch = errors.New("checkpoint does not match configuration")

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// checkpoint is the on-disk form of a single checkpoint. The graph
// size is stored alongside the serialized object so that a restore
// into a differently sized model fails cleanly instead of producing a
// policy that panics at decode time.
//
// Object holds whatever the tracked object serializes. For an agent
// that is the policy parameters, the policy optimizer moments and the
// critic weights; the critic's gorgonia solver exposes no state API,
// so a restored run rebuilds its moments from zero.
type checkpoint struct {
	Epoch     int
	GraphSize int
	Object    []byte
}

// Filename returns the name of the checkpoint file for the given
// epoch inside dir
func Filename(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("epoch-%v.bin", epoch))
}

// Epoch checkpoints a Serializable object at the end of each training
// epoch, writing one file per epoch into a fixed directory
type Epoch struct {
	dir       string
	graphSize int
	object    Serializable
}

// NewEpoch returns a checkpointer saving object into dir. The
// directory is created if it does not exist. The graphSize is stored
// in every checkpoint and verified on Restore.
func NewEpoch(dir string, graphSize int, object Serializable) (*Epoch,
	error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "newEpoch: could not create "+
			"checkpoint directory")
	}
	return &Epoch{dir: dir, graphSize: graphSize, object: object}, nil
}

// Checkpoint serializes the tracked object and writes the checkpoint
// file for the given epoch
func (e *Epoch) Checkpoint(epoch int) error {
	data, err := e.object.GobEncode()
	if err != nil {
		return errors.Wrap(err, "checkpoint: could not serialize object")
	}

	var buf bytes.Buffer
	en := gob.NewEncoder(&buf)
	err = en.Encode(checkpoint{
		Epoch:     epoch,
		GraphSize: e.graphSize,
		Object:    data,
	})
	if err != nil {
		return errors.Wrap(err, "checkpoint: could not encode checkpoint")
	}

	filename := Filename(e.dir, epoch)
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "checkpoint: could not write %v", filename)
	}
	return nil
}

// Restore loads the checkpoint at path into the tracked object,
// returning the epoch at which the checkpoint was written
func (e *Epoch) Restore(path string) (int, error) {
	return Restore(path, e.graphSize, e.object)
}

// Restore loads the checkpoint at path into object, returning the
// epoch at which the checkpoint was written. Restore returns an error
// wrapping ErrMismatch if the checkpoint was written for a different
// graph size or if the serialized object cannot be decoded into the
// given one.
func Restore(path string, graphSize int, object Serializable) (int,
	error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "restore: could not read %v", path)
	}

	var ck checkpoint
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ck); err != nil {
		return 0, errors.Wrapf(err, "restore: could not decode %v", path)
	}

	if ck.GraphSize != graphSize {
		return 0, errors.Wrapf(ErrMismatch, "restore: checkpoint for "+
			"graph size %v, configuration has %v", ck.GraphSize,
			graphSize)
	}
	if err := object.GobDecode(ck.Object); err != nil {
		return 0, errors.Wrapf(ErrMismatch, "restore: %v", err)
	}
	return ck.Epoch, nil
}
