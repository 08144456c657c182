package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/andor3/sdk"
)

func TestOpenClose(t *testing.T) {
	c := New()

	h, err := c.Open(0)
	require.NoError(t, err)
	require.NoError(t, c.Close(h))

	// Closed handles are invalid.
	err = c.Close(h)
	assert.ErrorIs(t, err, sdk.ErrInvalidHandle)

	_, err = c.Open(1)
	assert.Error(t, err, "only one device by default")
	_, err = c.Open(-1)
	assert.Error(t, err)
}

func TestDeviceCountOnSystemHandle(t *testing.T) {
	c := New(WithDeviceCount(3))

	n, err := c.DeviceCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := c.GetInt(sdk.HandleSystem, sdk.FeatureDeviceCount)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestFeatureRegistry(t *testing.T) {
	c := New(WithGeometry(320, 240, 2, 16))
	h, err := c.Open(0)
	require.NoError(t, err)

	width, err := c.GetInt(h, sdk.FeatureAOIWidth)
	require.NoError(t, err)
	assert.EqualValues(t, 320, width)

	stride, err := c.GetInt(h, sdk.FeatureAOIStride)
	require.NoError(t, err)
	assert.EqualValues(t, 320*2+16, stride)

	size, err := c.GetInt(h, sdk.FeatureImageSize)
	require.NoError(t, err)
	assert.EqualValues(t, (320*2+16)*240, size)

	ok, err := c.IsImplemented(h, sdk.FeatureAOIWidth)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.IsImplemented(h, "NoSuchFeature")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.GetInt(h, "NoSuchFeature")
	assert.ErrorIs(t, err, sdk.ErrNotImplemented)

	model, err := c.GetString(h, sdk.FeatureCameraModel)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, model)

	require.NoError(t, c.SetFloat(h, "ExposureTime", 0.05))
	exp, err := c.GetFloat(h, "ExposureTime")
	require.NoError(t, err)
	assert.Equal(t, 0.05, exp)
}

func TestEnumFeatures(t *testing.T) {
	c := New()
	h, err := c.Open(0)
	require.NoError(t, err)

	name, err := sdk.GetEnumString(c, h, sdk.FeaturePixelEncoding)
	require.NoError(t, err)
	assert.Equal(t, "Mono16", name)

	count, err := c.GetEnumCount(h, sdk.FeaturePixelEncoding)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, c.SetEnumString(h, sdk.FeaturePixelEncoding, "Mono12Packed"))
	name, err = sdk.GetEnumString(c, h, sdk.FeaturePixelEncoding)
	require.NoError(t, err)
	assert.Equal(t, "Mono12Packed", name)

	err = c.SetEnumString(h, sdk.FeaturePixelEncoding, "NoSuchEncoding")
	assert.Error(t, err)

	_, err = c.GetEnumStringByIndex(h, sdk.FeaturePixelEncoding, 99)
	assert.Error(t, err)

	ok, err := c.IsEnumIndexAvailable(h, sdk.FeaturePixelEncoding, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.IsEnumIndexAvailable(h, sdk.FeaturePixelEncoding, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithPixelEncodingExtendsEnum(t *testing.T) {
	c := New(WithPixelEncoding("Weird12"))
	h, err := c.Open(0)
	require.NoError(t, err)

	name, err := sdk.GetEnumString(c, h, sdk.FeaturePixelEncoding)
	require.NoError(t, err)
	assert.Equal(t, "Weird12", name)
}

func TestQueueWaitCycle(t *testing.T) {
	c := New()
	h, err := c.Open(0)
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.NoError(t, c.QueueBuffer(h, buf))
	assert.Equal(t, 1, c.QueuedBuffers())

	// Not acquiring yet: a poll times out.
	_, err = c.WaitBuffer(h, 0)
	assert.ErrorIs(t, err, sdk.ErrTimedOut)

	require.NoError(t, c.Command(h, sdk.CommandAcquisitionStart))
	got, err := c.WaitBuffer(h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, &buf[0], &got[0], "returned frame aliases the queued buffer")
	assert.Zero(t, c.QueuedBuffers())

	// Deterministic fill pattern for frame 1.
	assert.Equal(t, byte(7), got[0])
	assert.Equal(t, byte(8), got[1])

	require.NoError(t, c.Command(h, sdk.CommandAcquisitionStop))
}

func TestFlushDiscardsQueue(t *testing.T) {
	c := New()
	h, err := c.Open(0)
	require.NoError(t, err)

	require.NoError(t, c.QueueBuffer(h, make([]byte, 8)))
	require.NoError(t, c.QueueBuffer(h, make([]byte, 8)))
	require.NoError(t, c.Flush(h))
	assert.Zero(t, c.QueuedBuffers())
}

func TestFrameInterval(t *testing.T) {
	c := New(WithFrameInterval(40 * time.Millisecond))
	h, err := c.Open(0)
	require.NoError(t, err)

	require.NoError(t, c.QueueBuffer(h, make([]byte, 8)))
	require.NoError(t, c.Command(h, sdk.CommandAcquisitionStart))

	_, err = c.WaitBuffer(h, 0)
	assert.ErrorIs(t, err, sdk.ErrTimedOut, "frame not ready before the interval")

	start := time.Now()
	_, err = c.WaitBuffer(h, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFailOn(t *testing.T) {
	c := New()
	h, err := c.Open(0)
	require.NoError(t, err)

	c.FailOn("QueueBuffer", sdk.StatusConnection, 1)
	require.NoError(t, c.QueueBuffer(h, make([]byte, 8)))

	err = c.QueueBuffer(h, make([]byte, 8))
	var stErr *sdk.StatusError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, sdk.StatusConnection, stErr.Code)
	assert.Equal(t, "AT_QueueBuffer", stErr.Op)

	// The injected failure fires once.
	require.NoError(t, c.QueueBuffer(h, make([]byte, 8)))
}

func TestCallLog(t *testing.T) {
	c := New()
	h, err := c.Open(0)
	require.NoError(t, err)
	require.NoError(t, c.Flush(h))
	require.NoError(t, c.Flush(h))

	assert.Equal(t, 2, c.CallCount("Flush"))
	assert.Contains(t, c.Calls(), "Open")
}
