package andor3

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptions(t *testing.T) {
	opts := NewOptions()
	assert.Equal(t, DefaultQueueLength, opts.QueueLength)
	assert.Negative(t, opts.WaitTimeout)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	assert.Error(t, (&Options{QueueLength: 0}).Validate())
	assert.Error(t, (&Options{QueueLength: -2}).Validate())
	assert.NoError(t, (&Options{QueueLength: 1}).Validate())
}

func writeOptionsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "andor3.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOptions(t *testing.T) {
	path := writeOptionsFile(t, "queue_length: 9\nwait_timeout: 250ms\n")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 9, opts.QueueLength)
	assert.Equal(t, 250*time.Millisecond, opts.WaitTimeout)
}

func TestLoadOptionsPartialKeepsDefaults(t *testing.T) {
	path := writeOptionsFile(t, "queue_length: 2\n")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.QueueLength)
	assert.Equal(t, NewOptions().WaitTimeout, opts.WaitTimeout)
}

func TestLoadOptionsRejectsBadValues(t *testing.T) {
	_, err := LoadOptions(writeOptionsFile(t, "queue_length: 0\n"))
	assert.Error(t, err)

	_, err = LoadOptions(writeOptionsFile(t, "wait_timeout: soon\n"))
	assert.ErrorContains(t, err, "wait_timeout")

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
