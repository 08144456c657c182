// Package sdk defines the control surface of an SDK3-class scientific
// camera driver.
//
// The package models the vendor SDK as a Go interface so that the
// acquisition core can be driven either by a cgo-backed production driver
// or by the in-memory simulator in package sim. Feature access follows the
// SDK's string-keyed model: every camera property is addressed by a feature
// name and read or written through a typed getter or setter.
package sdk

import "time"

// Handle identifies one open device session within a Driver.
//
// Handles are opaque to callers; they are produced by Open and remain
// valid until the matching Close. HandleSystem addresses the SDK itself
// rather than a particular camera and is always valid.
type Handle int32

// HandleSystem is the well-known handle for library-level features such
// as DeviceCount.
const HandleSystem Handle = 1

// Well-known feature and command names used by the acquisition core.
//
// Geometry features follow the AOI naming of the SDK; when an AOI feature
// is not implemented by a camera the sensor-level feature is used instead.
const (
	FeatureDeviceCount   = "DeviceCount"
	FeatureCameraModel   = "Camera Model"
	FeatureAOIWidth      = "AOI Width"
	FeatureAOIHeight     = "AOI Height"
	FeatureSensorWidth   = "Sensor Width"
	FeatureSensorHeight  = "Sensor Height"
	FeatureAOIStride     = "AOIStride"
	FeatureImageSize     = "ImageSizeBytes"
	FeaturePixelEncoding = "PixelEncoding"
	FeatureCycleMode     = "CycleMode"

	CycleModeContinuous = "Continuous"

	CommandAcquisitionStart = "AcquisitionStart"
	CommandAcquisitionStop  = "AcquisitionStop"
)

// Driver is the set of primitives the acquisition core needs from the
// underlying SDK.
//
// All methods are synchronous. WaitBuffer is the only call that may block:
// a negative timeout blocks until a frame completes, zero polls, and a
// positive timeout bounds the wait. Implementations report failures as
// *StatusError values carrying the SDK status code and the operation name.
type Driver interface {
	// DeviceCount reports the number of attached devices.
	DeviceCount() (int, error)

	// Open establishes a session with the given zero-based device index.
	Open(device int) (Handle, error)

	// Close releases a session handle.
	Close(h Handle) error

	// Feature capability introspection.
	IsImplemented(h Handle, feature string) (bool, error)
	IsReadable(h Handle, feature string) (bool, error)
	IsWritable(h Handle, feature string) (bool, error)
	IsReadOnly(h Handle, feature string) (bool, error)

	// Integer features.
	GetInt(h Handle, feature string) (int64, error)
	GetIntMin(h Handle, feature string) (int64, error)
	GetIntMax(h Handle, feature string) (int64, error)
	SetInt(h Handle, feature string, value int64) error

	// Floating-point features.
	GetFloat(h Handle, feature string) (float64, error)
	GetFloatMin(h Handle, feature string) (float64, error)
	GetFloatMax(h Handle, feature string) (float64, error)
	SetFloat(h Handle, feature string, value float64) error

	// Boolean features.
	GetBool(h Handle, feature string) (bool, error)
	SetBool(h Handle, feature string, value bool) error

	// String features.
	GetString(h Handle, feature string) (string, error)
	SetString(h Handle, feature, value string) error

	// Enumerated features.
	GetEnumIndex(h Handle, feature string) (int, error)
	SetEnumIndex(h Handle, feature string, index int) error
	GetEnumCount(h Handle, feature string) (int, error)
	GetEnumStringByIndex(h Handle, feature string, index int) (string, error)
	SetEnumString(h Handle, feature, value string) error
	IsEnumIndexAvailable(h Handle, feature string, index int) (bool, error)
	IsEnumIndexImplemented(h Handle, feature string, index int) (bool, error)

	// Command executes a parameterless SDK command.
	Command(h Handle, name string) error

	// Flush discards all buffers currently queued to the device.
	Flush(h Handle) error

	// QueueBuffer submits a frame buffer to the device's fill queue. The
	// device writes into buf asynchronously; the memory must stay valid
	// until the buffer is returned by WaitBuffer or discarded by Flush.
	QueueBuffer(h Handle, buf []byte) error

	// WaitBuffer blocks until a queued buffer has been filled and returns
	// it. The returned slice aliases a buffer previously passed to
	// QueueBuffer. A timeout < 0 blocks indefinitely, 0 polls, > 0 bounds
	// the wait; an elapsed timeout is reported via ErrTimedOut.
	WaitBuffer(h Handle, timeout time.Duration) ([]byte, error)
}

// GetEnumString resolves the current value of an enumerated feature to its
// string form, combining GetEnumIndex and GetEnumStringByIndex.
func GetEnumString(d Driver, h Handle, feature string) (string, error) {
	index, err := d.GetEnumIndex(h, feature)
	if err != nil {
		return "", err
	}
	return d.GetEnumStringByIndex(h, feature, index)
}
