// Package andor3 is a Go bridge to SDK3-class Andor scientific cameras.
//
// The package exposes the SDK's string-keyed feature model through typed
// accessors and manages frame acquisition on the caller's behalf: it owns
// the ring of aligned frame buffers, drives the queue/start/wait/requeue
// cycle, and decodes camera-native pixel encodings into dense typed
// arrays.
//
// Example:
//
//	drv := sim.New() // or a cgo-backed production driver
//
//	cam, err := andor3.Open(drv, 0, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Close()
//
//	if err := cam.StartAcquisition(); err != nil {
//	    log.Fatal(err)
//	}
//	for i := 0; i < 10; i++ {
//	    img, err := cam.WaitImage(5 * time.Second)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    process(img)
//	}
//	if err := cam.StopAcquisition(); err != nil {
//	    log.Fatal(err)
//	}
package andor3

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/andor3/acquisition"
	"github.com/opd-ai/andor3/pixel"
	"github.com/opd-ai/andor3/sdk"
)

// Camera is one open camera device. It owns the device handle and the
// acquisition session exclusively; both are released exactly once, on
// Close.
//
// A Camera is driven by a single goroutine. The hardware fills frame
// buffers asynchronously, but it is only observed through the blocking
// WaitImage call, so the type carries no locks.
type Camera struct {
	drv     sdk.Driver
	handle  sdk.Handle
	device  int
	opts    *Options
	session *acquisition.Session
	closed  bool
}

// DeviceCount reports the number of cameras the driver can see.
func DeviceCount(drv sdk.Driver) (int, error) {
	return drv.DeviceCount()
}

// Devices lists the model names of all attached cameras. Each device is
// opened just long enough to read its model string.
func Devices(drv sdk.Driver) ([]string, error) {
	count, err := drv.DeviceCount()
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, count)
	for dev := 0; dev < count; dev++ {
		h, err := drv.Open(dev)
		if err != nil {
			return nil, err
		}
		model, err := drv.GetString(h, sdk.FeatureCameraModel)
		if err != nil {
			_ = drv.Close(h)
			return nil, err
		}
		if err := drv.Close(h); err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	return models, nil
}

// Open establishes a session with the camera at the given zero-based
// device index. A nil opts uses NewOptions.
func Open(drv sdk.Driver, device int, opts *Options) (*Camera, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	count, err := drv.DeviceCount()
	if err != nil {
		return nil, err
	}
	if device < 0 || device >= count {
		return nil, fmt.Errorf("device index %d out of range [0,%d)", device, count)
	}

	h, err := drv.Open(device)
	if err != nil {
		return nil, err
	}
	c := &Camera{
		drv:     drv,
		handle:  h,
		device:  device,
		opts:    opts,
		session: acquisition.NewSession(drv, h),
	}
	if err := c.session.SetQueueLength(opts.QueueLength); err != nil {
		_ = drv.Close(h)
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function":     "Open",
		"device":       device,
		"queue_length": opts.QueueLength,
	}).Info("Camera opened")
	return c, nil
}

// Close tears the camera down: a forced acquisition stop with errors
// suppressed, release of the frame ring, then release of the device
// handle. Idempotent; only the first call does any work.
func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.session.Teardown()
	return c.drv.Close(c.handle)
}

// Device returns the zero-based device index this camera was opened with.
func (c *Camera) Device() int { return c.device }

// Model reads the camera's model string.
func (c *Camera) Model() (string, error) {
	return c.drv.GetString(c.handle, sdk.FeatureCameraModel)
}

// SetQueueLength configures the acquisition ring depth. Valid only while
// the camera is not acquiring.
func (c *Camera) SetQueueLength(n int) error {
	return c.session.SetQueueLength(n)
}

// StartAcquisition begins continuous frame acquisition.
func (c *Camera) StartAcquisition() error {
	return c.session.Start()
}

// StopAcquisition halts frame acquisition. Stopping an idle camera warns
// and returns nil.
func (c *Camera) StopAcquisition() error {
	return c.session.Stop(false)
}

// WaitImage blocks until the camera delivers a frame, decodes it and
// returns it. Negative timeout blocks indefinitely, zero polls, positive
// bounds the wait (sdk.ErrTimedOut on elapse).
func (c *Camera) WaitImage(timeout time.Duration) (*pixel.Image, error) {
	return c.session.WaitImage(timeout)
}

// NextImage waits for a frame using the timeout from the camera's
// options.
func (c *Camera) NextImage() (*pixel.Image, error) {
	return c.session.WaitImage(c.opts.WaitTimeout)
}

// Acquiring reports whether an acquisition run is active.
func (c *Camera) Acquiring() bool { return c.session.Acquiring() }

// QueueLength returns the configured ring depth.
func (c *Camera) QueueLength() int { return c.session.QueueLength() }

// BufferAddr returns the base address of the ring memory (zero before the
// first acquisition).
func (c *Camera) BufferAddr() uintptr { return c.session.BufferAddr() }

// BufferSize returns the total ring size in bytes.
func (c *Camera) BufferSize() int { return c.session.BufferSize() }

// FrameSize returns the per-frame byte size captured at the last start.
func (c *Camera) FrameSize() int { return c.session.Geometry().SizeBytes }

// FrameWidth returns the frame width captured at the last start.
func (c *Camera) FrameWidth() int { return c.session.Geometry().Width }

// FrameHeight returns the frame height captured at the last start.
func (c *Camera) FrameHeight() int { return c.session.Geometry().Height }

// RowStride returns the row stride in bytes captured at the last start.
func (c *Camera) RowStride() int { return c.session.Geometry().RowStride }

// PixelEncoding returns the encoding resolved at the last start.
func (c *Camera) PixelEncoding() pixel.Encoding { return c.session.Encoding() }

// LostSlots counts ring slots forfeited by failed waits.
func (c *Camera) LostSlots() int { return c.session.LostSlots() }

// Command executes an SDK command by name. The acquisition commands are
// intercepted and routed through the managed state machine, because
// starting the hardware without queueing the ring would bypass the
// buffer manager; everything else is forwarded to the driver verbatim.
// The SDK accepts an optional space between "Acquisition" and the verb.
func (c *Camera) Command(name string) error {
	if rest, ok := strings.CutPrefix(name, "Acquisition"); ok {
		switch strings.TrimPrefix(rest, " ") {
		case "Start":
			return c.session.Start()
		case "Stop":
			return c.session.Stop(false)
		}
	}
	return c.drv.Command(c.handle, name)
}

// Typed feature accessors: mechanical pass-throughs to the driver for the
// open handle.

// GetInt reads an integer feature.
func (c *Camera) GetInt(feature string) (int64, error) {
	return c.drv.GetInt(c.handle, feature)
}

// GetIntMin reads the lower bound of an integer feature.
func (c *Camera) GetIntMin(feature string) (int64, error) {
	return c.drv.GetIntMin(c.handle, feature)
}

// GetIntMax reads the upper bound of an integer feature.
func (c *Camera) GetIntMax(feature string) (int64, error) {
	return c.drv.GetIntMax(c.handle, feature)
}

// SetInt writes an integer feature.
func (c *Camera) SetInt(feature string, value int64) error {
	return c.drv.SetInt(c.handle, feature, value)
}

// GetFloat reads a floating-point feature.
func (c *Camera) GetFloat(feature string) (float64, error) {
	return c.drv.GetFloat(c.handle, feature)
}

// GetFloatMin reads the lower bound of a float feature.
func (c *Camera) GetFloatMin(feature string) (float64, error) {
	return c.drv.GetFloatMin(c.handle, feature)
}

// GetFloatMax reads the upper bound of a float feature.
func (c *Camera) GetFloatMax(feature string) (float64, error) {
	return c.drv.GetFloatMax(c.handle, feature)
}

// SetFloat writes a floating-point feature.
func (c *Camera) SetFloat(feature string, value float64) error {
	return c.drv.SetFloat(c.handle, feature, value)
}

// GetBool reads a boolean feature.
func (c *Camera) GetBool(feature string) (bool, error) {
	return c.drv.GetBool(c.handle, feature)
}

// SetBool writes a boolean feature.
func (c *Camera) SetBool(feature string, value bool) error {
	return c.drv.SetBool(c.handle, feature, value)
}

// GetString reads a string feature.
func (c *Camera) GetString(feature string) (string, error) {
	return c.drv.GetString(c.handle, feature)
}

// SetString writes a string feature.
func (c *Camera) SetString(feature, value string) error {
	return c.drv.SetString(c.handle, feature, value)
}

// GetEnumIndex reads the current index of an enumerated feature.
func (c *Camera) GetEnumIndex(feature string) (int, error) {
	return c.drv.GetEnumIndex(c.handle, feature)
}

// SetEnumIndex selects an enumerated feature value by index.
func (c *Camera) SetEnumIndex(feature string, index int) error {
	return c.drv.SetEnumIndex(c.handle, feature, index)
}

// GetEnumCount reads the number of values of an enumerated feature.
func (c *Camera) GetEnumCount(feature string) (int, error) {
	return c.drv.GetEnumCount(c.handle, feature)
}

// GetEnumStringByIndex resolves an enumerated feature index to its string.
func (c *Camera) GetEnumStringByIndex(feature string, index int) (string, error) {
	return c.drv.GetEnumStringByIndex(c.handle, feature, index)
}

// GetEnumString reads the current value of an enumerated feature as a
// string.
func (c *Camera) GetEnumString(feature string) (string, error) {
	return sdk.GetEnumString(c.drv, c.handle, feature)
}

// SetEnumString selects an enumerated feature value by name.
func (c *Camera) SetEnumString(feature, value string) error {
	return c.drv.SetEnumString(c.handle, feature, value)
}

// IsImplemented reports whether the camera has the feature at all.
func (c *Camera) IsImplemented(feature string) (bool, error) {
	return c.drv.IsImplemented(c.handle, feature)
}

// IsReadable reports whether the feature can currently be read.
func (c *Camera) IsReadable(feature string) (bool, error) {
	return c.drv.IsReadable(c.handle, feature)
}

// IsWritable reports whether the feature can currently be written.
func (c *Camera) IsWritable(feature string) (bool, error) {
	return c.drv.IsWritable(c.handle, feature)
}

// IsReadOnly reports whether the feature is permanently read-only.
func (c *Camera) IsReadOnly(feature string) (bool, error) {
	return c.drv.IsReadOnly(c.handle, feature)
}
