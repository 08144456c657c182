// Package sim provides a software camera implementing sdk.Driver.
//
// The simulator mirrors the production driver surface but operates
// entirely in memory: a feature registry stands in for the camera's
// feature set and a synthetic frame source fills queued buffers. Tests and
// demos drive the full acquisition core against it without hardware, with
// deterministic frame content and injectable failures.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/andor3/sdk"
)

// DefaultModel is the camera model string the simulator reports.
const DefaultModel = "SimCam 3000"

type enumFeature struct {
	values []string
	index  int
}

type failure struct {
	code sdk.Status
	skip int // successful calls to allow before failing
}

// Camera is an in-memory sdk.Driver. One Camera simulates the whole
// driver library; every device index exposes the same feature registry.
//
// Unlike a real Session, the simulator is safe for concurrent use — its
// own mutex guards the registry and the frame queue so tests may poke at
// it while a wait is in flight.
type Camera struct {
	mu sync.Mutex

	devices       int
	frameInterval time.Duration

	open       map[sdk.Handle]bool
	nextHandle sdk.Handle

	ints    map[string]int64
	floats  map[string]float64
	bools   map[string]bool
	strings map[string]string
	enums   map[string]*enumFeature

	queued       [][]byte
	acquiring    bool
	readyAt      time.Time
	frameCounter uint64

	failures map[string]*failure
	calls    []string
}

// Option configures a simulated camera.
type Option func(*Camera)

// WithGeometry sets the sensor and AOI geometry. Row stride is width times
// bytesPerPixel plus rowPadding; ImageSizeBytes follows from the stride.
func WithGeometry(width, height, bytesPerPixel, rowPadding int) Option {
	return func(c *Camera) { c.setGeometry(width, height, bytesPerPixel, rowPadding) }
}

// WithPixelEncoding sets the current pixel encoding. The name is appended
// to the encoding enum when the firmware set does not already carry it, so
// tests can present encodings the decoder has never heard of.
func WithPixelEncoding(name string) Option {
	return func(c *Camera) { c.setEnum(sdk.FeaturePixelEncoding, name) }
}

// WithFrameInterval sets the simulated exposure interval: a queued buffer
// only completes once the interval has elapsed since the previous frame.
// Zero (the default) completes frames immediately.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Camera) { c.frameInterval = d }
}

// WithDeviceCount sets the number of devices the driver reports.
func WithDeviceCount(n int) Option {
	return func(c *Camera) { c.devices = n }
}

// WithoutAOI removes the AOI geometry features so geometry discovery
// falls back to the sensor-level features.
func WithoutAOI() Option {
	return func(c *Camera) {
		delete(c.ints, sdk.FeatureAOIWidth)
		delete(c.ints, sdk.FeatureAOIHeight)
	}
}

// New creates a simulated camera with one device and a 64x48 Mono16
// sensor, then applies the options.
func New(opts ...Option) *Camera {
	c := &Camera{
		devices:    1,
		open:       map[sdk.Handle]bool{},
		nextHandle: sdk.HandleSystem + 1,
		ints:       map[string]int64{},
		floats:     map[string]float64{"ExposureTime": 0.01},
		bools:      map[string]bool{"SensorCooling": false},
		strings:    map[string]string{sdk.FeatureCameraModel: DefaultModel},
		enums: map[string]*enumFeature{
			sdk.FeaturePixelEncoding: {
				values: []string{"Mono12", "Mono12Packed", "Mono16", "Mono32"},
				index:  2,
			},
			sdk.FeatureCycleMode: {
				values: []string{"Fixed", sdk.CycleModeContinuous},
				index:  0,
			},
		},
		failures: map[string]*failure{},
	}
	c.setGeometry(64, 48, 2, 0)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Camera) setGeometry(width, height, bytesPerPixel, rowPadding int) {
	stride := width*bytesPerPixel + rowPadding
	c.ints[sdk.FeatureAOIWidth] = int64(width)
	c.ints[sdk.FeatureAOIHeight] = int64(height)
	c.ints[sdk.FeatureSensorWidth] = int64(width)
	c.ints[sdk.FeatureSensorHeight] = int64(height)
	c.ints[sdk.FeatureAOIStride] = int64(stride)
	c.ints[sdk.FeatureImageSize] = int64(stride * height)
}

// SetGeometry reconfigures the simulated sensor between acquisitions, the
// way a driver reflects an AOI change in ImageSizeBytes.
func (c *Camera) SetGeometry(width, height, bytesPerPixel, rowPadding int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setGeometry(width, height, bytesPerPixel, rowPadding)
}

func (c *Camera) setEnum(feature, value string) {
	e := c.enums[feature]
	if e == nil {
		e = &enumFeature{}
		c.enums[feature] = e
	}
	for i, v := range e.values {
		if v == value {
			e.index = i
			return
		}
	}
	e.values = append(e.values, value)
	e.index = len(e.values) - 1
}

// FailOn arranges for calls to the named driver method (for example
// "QueueBuffer") to succeed skip times and then fail once with the given
// status code.
func (c *Camera) FailOn(method string, code sdk.Status, skip int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = &failure{code: code, skip: skip}
}

// Calls returns the driver methods invoked so far, in order.
func (c *Camera) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (c *Camera) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, op := range c.calls {
		if op == method {
			n++
		}
	}
	return n
}

// QueuedBuffers returns the number of buffers currently queued.
func (c *Camera) QueuedBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// record logs the call and applies any injected failure. Callers hold mu.
func (c *Camera) record(method string) error {
	c.calls = append(c.calls, method)
	f := c.failures[method]
	if f == nil {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(c.failures, method)
	return sdk.Fail("AT_"+method, f.code)
}

func (c *Camera) checkHandle(method string, h sdk.Handle) error {
	if h == sdk.HandleSystem || c.open[h] {
		return nil
	}
	return sdk.Fail("AT_"+method, sdk.StatusInvalidHandle)
}

// DeviceCount reports the simulated device count.
func (c *Camera) DeviceCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("DeviceCount"); err != nil {
		return 0, err
	}
	return c.devices, nil
}

// Open establishes a session with a simulated device.
func (c *Camera) Open(device int) (sdk.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("Open"); err != nil {
		return 0, err
	}
	if device < 0 || device >= c.devices {
		return 0, sdk.Fail("AT_Open", sdk.StatusConnection)
	}
	c.nextHandle++
	h := c.nextHandle
	c.open[h] = true
	return h, nil
}

// Close releases a session handle.
func (c *Camera) Close(h sdk.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("Close"); err != nil {
		return err
	}
	if !c.open[h] {
		return sdk.Fail("AT_Close", sdk.StatusInvalidHandle)
	}
	delete(c.open, h)
	return nil
}

// IsImplemented reports whether the feature exists in the registry.
func (c *Camera) IsImplemented(h sdk.Handle, feature string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("IsImplemented"); err != nil {
		return false, err
	}
	if err := c.checkHandle("IsImplemented", h); err != nil {
		return false, err
	}
	if _, ok := c.ints[feature]; ok {
		return true, nil
	}
	if _, ok := c.floats[feature]; ok {
		return true, nil
	}
	if _, ok := c.bools[feature]; ok {
		return true, nil
	}
	if _, ok := c.strings[feature]; ok {
		return true, nil
	}
	_, ok := c.enums[feature]
	return ok, nil
}

// IsReadable reports true for every implemented feature.
func (c *Camera) IsReadable(h sdk.Handle, feature string) (bool, error) {
	return c.IsImplemented(h, feature)
}

// IsWritable reports true for every implemented feature.
func (c *Camera) IsWritable(h sdk.Handle, feature string) (bool, error) {
	return c.IsImplemented(h, feature)
}

// IsReadOnly reports false for every feature.
func (c *Camera) IsReadOnly(h sdk.Handle, feature string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("IsReadOnly"); err != nil {
		return false, err
	}
	return false, c.checkHandle("IsReadOnly", h)
}

// GetInt reads an integer feature. DeviceCount is served on the system
// handle like the real library does.
func (c *Camera) GetInt(h sdk.Handle, feature string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetInt"); err != nil {
		return 0, err
	}
	if feature == sdk.FeatureDeviceCount {
		return int64(c.devices), nil
	}
	if err := c.checkHandle("GetInt", h); err != nil {
		return 0, err
	}
	v, ok := c.ints[feature]
	if !ok {
		return 0, sdk.Fail(fmt.Sprintf("AT_GetInt %q", feature), sdk.StatusNotImplemented)
	}
	return v, nil
}

// GetIntMin returns zero for every integer feature.
func (c *Camera) GetIntMin(h sdk.Handle, feature string) (int64, error) {
	_, err := c.GetInt(h, feature)
	return 0, err
}

// GetIntMax returns a wide open range for every integer feature.
func (c *Camera) GetIntMax(h sdk.Handle, feature string) (int64, error) {
	if _, err := c.GetInt(h, feature); err != nil {
		return 0, err
	}
	return 1 << 31, nil
}

// SetInt writes an integer feature.
func (c *Camera) SetInt(h sdk.Handle, feature string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetInt"); err != nil {
		return err
	}
	if err := c.checkHandle("SetInt", h); err != nil {
		return err
	}
	if _, ok := c.ints[feature]; !ok {
		return sdk.Fail(fmt.Sprintf("AT_SetInt %q", feature), sdk.StatusNotImplemented)
	}
	c.ints[feature] = value
	return nil
}

// GetFloat reads a floating-point feature.
func (c *Camera) GetFloat(h sdk.Handle, feature string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetFloat"); err != nil {
		return 0, err
	}
	if err := c.checkHandle("GetFloat", h); err != nil {
		return 0, err
	}
	v, ok := c.floats[feature]
	if !ok {
		return 0, sdk.Fail(fmt.Sprintf("AT_GetFloat %q", feature), sdk.StatusNotImplemented)
	}
	return v, nil
}

// GetFloatMin returns zero for every float feature.
func (c *Camera) GetFloatMin(h sdk.Handle, feature string) (float64, error) {
	_, err := c.GetFloat(h, feature)
	return 0, err
}

// GetFloatMax returns a generous bound for every float feature.
func (c *Camera) GetFloatMax(h sdk.Handle, feature string) (float64, error) {
	if _, err := c.GetFloat(h, feature); err != nil {
		return 0, err
	}
	return 1e6, nil
}

// SetFloat writes a floating-point feature.
func (c *Camera) SetFloat(h sdk.Handle, feature string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetFloat"); err != nil {
		return err
	}
	if err := c.checkHandle("SetFloat", h); err != nil {
		return err
	}
	if _, ok := c.floats[feature]; !ok {
		return sdk.Fail(fmt.Sprintf("AT_SetFloat %q", feature), sdk.StatusNotImplemented)
	}
	c.floats[feature] = value
	return nil
}

// GetBool reads a boolean feature.
func (c *Camera) GetBool(h sdk.Handle, feature string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetBool"); err != nil {
		return false, err
	}
	if err := c.checkHandle("GetBool", h); err != nil {
		return false, err
	}
	v, ok := c.bools[feature]
	if !ok {
		return false, sdk.Fail(fmt.Sprintf("AT_GetBool %q", feature), sdk.StatusNotImplemented)
	}
	return v, nil
}

// SetBool writes a boolean feature.
func (c *Camera) SetBool(h sdk.Handle, feature string, value bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetBool"); err != nil {
		return err
	}
	if err := c.checkHandle("SetBool", h); err != nil {
		return err
	}
	if _, ok := c.bools[feature]; !ok {
		return sdk.Fail(fmt.Sprintf("AT_SetBool %q", feature), sdk.StatusNotImplemented)
	}
	c.bools[feature] = value
	return nil
}

// GetString reads a string feature.
func (c *Camera) GetString(h sdk.Handle, feature string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetString"); err != nil {
		return "", err
	}
	if err := c.checkHandle("GetString", h); err != nil {
		return "", err
	}
	v, ok := c.strings[feature]
	if !ok {
		return "", sdk.Fail(fmt.Sprintf("AT_GetString %q", feature), sdk.StatusNotImplemented)
	}
	return v, nil
}

// SetString writes a string feature.
func (c *Camera) SetString(h sdk.Handle, feature, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetString"); err != nil {
		return err
	}
	if err := c.checkHandle("SetString", h); err != nil {
		return err
	}
	if _, ok := c.strings[feature]; !ok {
		return sdk.Fail(fmt.Sprintf("AT_SetString %q", feature), sdk.StatusNotImplemented)
	}
	c.strings[feature] = value
	return nil
}

func (c *Camera) enum(method string, h sdk.Handle, feature string) (*enumFeature, error) {
	if err := c.checkHandle(method, h); err != nil {
		return nil, err
	}
	e, ok := c.enums[feature]
	if !ok {
		return nil, sdk.Fail(fmt.Sprintf("AT_%s %q", method, feature), sdk.StatusNotImplemented)
	}
	return e, nil
}

// GetEnumIndex reads the current index of an enumerated feature.
func (c *Camera) GetEnumIndex(h sdk.Handle, feature string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetEnumIndex"); err != nil {
		return 0, err
	}
	e, err := c.enum("GetEnumIndex", h, feature)
	if err != nil {
		return 0, err
	}
	return e.index, nil
}

// SetEnumIndex selects an enumerated feature value by index.
func (c *Camera) SetEnumIndex(h sdk.Handle, feature string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetEnumIndex"); err != nil {
		return err
	}
	e, err := c.enum("SetEnumIndex", h, feature)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(e.values) {
		return sdk.Fail(fmt.Sprintf("AT_SetEnumIndex %q", feature), sdk.StatusOutOfRange)
	}
	e.index = index
	return nil
}

// GetEnumCount reports the number of values of an enumerated feature.
func (c *Camera) GetEnumCount(h sdk.Handle, feature string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetEnumCount"); err != nil {
		return 0, err
	}
	e, err := c.enum("GetEnumCount", h, feature)
	if err != nil {
		return 0, err
	}
	return len(e.values), nil
}

// GetEnumStringByIndex resolves an enumerated feature index to its string.
func (c *Camera) GetEnumStringByIndex(h sdk.Handle, feature string, index int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetEnumStringByIndex"); err != nil {
		return "", err
	}
	e, err := c.enum("GetEnumStringByIndex", h, feature)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(e.values) {
		return "", sdk.Fail(fmt.Sprintf("AT_GetEnumStringByIndex %q", feature), sdk.StatusIndexNotAvailable)
	}
	return e.values[index], nil
}

// SetEnumString selects an enumerated feature value by name.
func (c *Camera) SetEnumString(h sdk.Handle, feature, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetEnumString"); err != nil {
		return err
	}
	e, err := c.enum("SetEnumString", h, feature)
	if err != nil {
		return err
	}
	for i, v := range e.values {
		if v == value {
			e.index = i
			return nil
		}
	}
	return sdk.Fail(fmt.Sprintf("AT_SetEnumString %q %q", feature, value), sdk.StatusIndexNotAvailable)
}

// IsEnumIndexAvailable reports whether the index selects a value.
func (c *Camera) IsEnumIndexAvailable(h sdk.Handle, feature string, index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("IsEnumIndexAvailable"); err != nil {
		return false, err
	}
	e, err := c.enum("IsEnumIndexAvailable", h, feature)
	if err != nil {
		return false, err
	}
	return index >= 0 && index < len(e.values), nil
}

// IsEnumIndexImplemented mirrors IsEnumIndexAvailable in the simulator.
func (c *Camera) IsEnumIndexImplemented(h sdk.Handle, feature string, index int) (bool, error) {
	return c.IsEnumIndexAvailable(h, feature, index)
}

// Command executes a simulated SDK command. AcquisitionStart and
// AcquisitionStop toggle the frame source; other commands are accepted
// and ignored.
func (c *Camera) Command(h sdk.Handle, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("Command"); err != nil {
		return err
	}
	if err := c.checkHandle("Command", h); err != nil {
		return err
	}
	switch name {
	case sdk.CommandAcquisitionStart:
		c.acquiring = true
		c.readyAt = time.Now().Add(c.frameInterval)
	case sdk.CommandAcquisitionStop:
		c.acquiring = false
	}
	return nil
}

// Flush discards all queued buffers.
func (c *Camera) Flush(h sdk.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("Flush"); err != nil {
		return err
	}
	if err := c.checkHandle("Flush", h); err != nil {
		return err
	}
	c.queued = nil
	return nil
}

// QueueBuffer appends a buffer to the fill queue.
func (c *Camera) QueueBuffer(h sdk.Handle, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("QueueBuffer"); err != nil {
		return err
	}
	if err := c.checkHandle("QueueBuffer", h); err != nil {
		return err
	}
	if len(buf) == 0 {
		return sdk.Fail("AT_QueueBuffer", sdk.StatusOutOfRange)
	}
	c.queued = append(c.queued, buf)
	return nil
}

// WaitBuffer returns the next completed frame, honoring the timeout
// contract: negative blocks indefinitely, zero polls, positive bounds the
// wait. A frame completes when the camera is acquiring, a buffer is
// queued, and the simulated exposure interval has elapsed.
func (c *Camera) WaitBuffer(h sdk.Handle, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if err := c.record("WaitBuffer"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.checkHandle("WaitBuffer", h); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		c.mu.Lock()
		if c.acquiring && len(c.queued) > 0 && !time.Now().Before(c.readyAt) {
			buf := c.queued[0]
			c.queued = c.queued[1:]
			c.frameCounter++
			fillPattern(buf, c.frameCounter)
			c.readyAt = time.Now().Add(c.frameInterval)
			c.mu.Unlock()
			return buf, nil
		}
		c.mu.Unlock()

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, sdk.Fail("AT_WaitBuffer", sdk.StatusTimedOut)
		}
		time.Sleep(200 * time.Microsecond)
	}
}

// fillPattern writes a deterministic per-frame byte pattern so tests can
// tell frames apart and verify decoded content.
func fillPattern(buf []byte, frame uint64) {
	for i := range buf {
		buf[i] = byte(uint64(i) + frame*7)
	}
}
