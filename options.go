package andor3

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultQueueLength is the ring depth cameras are opened with unless the
// options say otherwise.
const DefaultQueueLength = 4

// Options contains configuration applied when opening a camera.
type Options struct {
	// QueueLength is the number of frame buffers in the acquisition
	// ring. Must be at least 1.
	QueueLength int `yaml:"queue_length"`

	// WaitTimeout is the timeout NextImage uses: negative blocks until a
	// frame arrives, zero polls, positive bounds the wait.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// NewOptions returns the default options: a ring of DefaultQueueLength
// buffers and an unbounded wait.
func NewOptions() *Options {
	return &Options{
		QueueLength: DefaultQueueLength,
		WaitTimeout: -1,
	}
}

// UnmarshalYAML decodes options from YAML, accepting wait_timeout as a
// Go duration string ("250ms", "5s", "-1ns"). Fields absent from the
// document keep their current values, so unmarshalling over NewOptions
// yields defaults for anything unset.
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		QueueLength *int    `yaml:"queue_length"`
		WaitTimeout *string `yaml:"wait_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.QueueLength != nil {
		o.QueueLength = *raw.QueueLength
	}
	if raw.WaitTimeout != nil {
		d, err := time.ParseDuration(*raw.WaitTimeout)
		if err != nil {
			return fmt.Errorf("parsing wait_timeout: %w", err)
		}
		o.WaitTimeout = d
	}
	return nil
}

// Validate checks the options for values the acquisition core would
// reject later.
func (o *Options) Validate() error {
	if o.QueueLength < 1 {
		return fmt.Errorf("options: queue length %d, must be >= 1", o.QueueLength)
	}
	return nil
}

// LoadOptions reads options from a YAML file, filling unset fields with
// the defaults from NewOptions.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options file: %w", err)
	}
	opts := NewOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing options file %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
