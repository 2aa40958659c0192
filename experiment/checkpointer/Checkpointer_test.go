package checkpointer_test

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris-Lee-2028/NIS/experiment/checkpointer"
)

// counter is a minimal Serializable for exercising the checkpointer
type counter struct {
	value int
}

func (c *counter) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(c.value)
	return buf.Bytes(), err
}

func (c *counter) GobDecode(in []byte) error {
	return gob.NewDecoder(bytes.NewReader(in)).Decode(&c.value)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	saved := &counter{value: 42}

	check, err := checkpointer.NewEpoch(dir, 20, saved)
	require.NoError(t, err)
	require.NoError(t, check.Checkpoint(3))

	restored := &counter{}
	into, err := checkpointer.NewEpoch(dir, 20, restored)
	require.NoError(t, err)

	epoch, err := into.Restore(checkpointer.Filename(dir, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, epoch)
	assert.Equal(t, 42, restored.value)
}

func TestRestoreRejectsDifferentGraphSize(t *testing.T) {
	dir := t.TempDir()

	check, err := checkpointer.NewEpoch(dir, 20, &counter{value: 1})
	require.NoError(t, err)
	require.NoError(t, check.Checkpoint(0))

	_, err = checkpointer.Restore(checkpointer.Filename(dir, 0), 50,
		&counter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, checkpointer.ErrMismatch))
}

func TestRestoreMissingFile(t *testing.T) {
	_, err := checkpointer.Restore(
		checkpointer.Filename(t.TempDir(), 9), 20, &counter{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, checkpointer.ErrMismatch))
}

func TestEachEpochGetsItsOwnFile(t *testing.T) {
	dir := t.TempDir()
	saved := &counter{}

	check, err := checkpointer.NewEpoch(dir, 20, saved)
	require.NoError(t, err)
	for epoch := 0; epoch < 3; epoch++ {
		saved.value = epoch * 10
		require.NoError(t, check.Checkpoint(epoch))
	}

	for epoch := 0; epoch < 3; epoch++ {
		restored := &counter{}
		got, err := checkpointer.Restore(
			checkpointer.Filename(dir, epoch), 20, restored)
		require.NoError(t, err)
		assert.Equal(t, epoch, got)
		assert.Equal(t, epoch*10, restored.value)
	}
}
