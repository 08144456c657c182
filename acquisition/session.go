// Package acquisition drives the frame acquisition lifecycle of one open
// camera: queueing the buffer ring, starting and stopping the hardware,
// and the steady-state wait/decode/requeue cycle.
//
// A Session is single-threaded by contract: one goroutine drives the state
// machine and the wait loop. The hardware fills buffers asynchronously but
// is only ever observed through the blocking wait call, so the session
// holds no locks. Concurrent use of one Session is undefined behavior, not
// a supported configuration.
package acquisition

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/andor3/buffer"
	"github.com/opd-ai/andor3/pixel"
	"github.com/opd-ai/andor3/sdk"
)

// State is the acquisition state of a session.
type State uint8

const (
	// Idle means no acquisition is running; configuration may change.
	Idle State = iota
	// Acquiring means the hardware is cycling the buffer ring.
	Acquiring
)

// String returns the state name.
func (s State) String() string {
	if s == Acquiring {
		return "Acquiring"
	}
	return "Idle"
}

// Session owns the acquisition state for one open camera handle: the
// buffer ring, the geometry snapshot taken at start, and the decoder
// selected for the run.
type Session struct {
	drv    sdk.Driver
	handle sdk.Handle
	trace  string // stable ID carried in every log line of this session

	state       State
	queueLength int

	// Snapshot taken in Start; stale while Idle.
	geom     pixel.Geometry
	encoding pixel.Encoding
	decode   pixel.DecodeFunc

	block     *buffer.Block
	lostSlots int
}

// NewSession creates an idle session over an open device handle. The queue
// length starts unset; SetQueueLength must be called before Start.
func NewSession(drv sdk.Driver, h sdk.Handle) *Session {
	s := &Session{
		drv:    drv,
		handle: h,
		trace:  uuid.New().String(),
	}
	logrus.WithFields(logrus.Fields{
		"function": "NewSession",
		"session":  s.trace,
		"handle":   h,
	}).Debug("Acquisition session created")
	return s
}

// log returns the session's base log entry.
func (s *Session) log(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function": function,
		"session":  s.trace,
	})
}

// SetQueueLength configures the number of buffer slots in the ring. Valid
// only while idle; the length takes effect at the next Start.
func (s *Session) SetQueueLength(n int) error {
	if s.state != Idle {
		return fmt.Errorf("%w: cannot change queue length while %s",
			ErrConfiguration, s.state)
	}
	if n < 1 {
		return fmt.Errorf("%w: queue length %d, must be >= 1", ErrConfiguration, n)
	}
	s.queueLength = n
	return nil
}

// QueueLength returns the configured number of ring slots.
func (s *Session) QueueLength() int { return s.queueLength }

// Acquiring reports whether the session is in the Acquiring state.
func (s *Session) Acquiring() bool { return s.state == Acquiring }

// Geometry returns the frame geometry snapshot taken at the last Start.
// Undefined while the session has never acquired.
func (s *Session) Geometry() pixel.Geometry { return s.geom }

// Encoding returns the pixel encoding resolved at the last Start.
func (s *Session) Encoding() pixel.Encoding { return s.encoding }

// BufferAddr returns the base address of the ring memory, zero when no
// ring is allocated.
func (s *Session) BufferAddr() uintptr { return s.block.Base() }

// BufferSize returns the total size of the ring memory in bytes.
func (s *Session) BufferSize() int { return s.block.Size() }

// LostSlots counts ring slots forfeited by wait failures. A slot consumed
// by a failed wait is not requeued, so the active ring shrinks by one for
// the remainder of the session; this counter makes the shrinkage
// observable instead of silent.
func (s *Session) LostSlots() int { return s.lostSlots }

// resolveDecoder reads the camera's current pixel encoding and selects the
// decoding routine for this run. Unknown encodings degrade to the raw
// decoder with a warning; they never block acquisition.
func (s *Session) resolveDecoder() error {
	name, err := sdk.GetEnumString(s.drv, s.handle, sdk.FeaturePixelEncoding)
	if err != nil {
		return err
	}
	enc, known := pixel.Parse(name)
	if !known {
		s.log("resolveDecoder").WithField("encoding", name).
			Warn("Unknown pixel encoding, frames will be extracted as raw data")
		enc = pixel.EncodingRaw
	}
	s.encoding = enc
	s.decode = pixel.Decoder(enc)
	return nil
}

// geometryInt reads one integer geometry feature, preferring the AOI
// feature and falling back to the sensor-level feature when the camera
// does not implement the AOI one.
func (s *Session) geometryInt(aoiFeature, sensorFeature string) (int, error) {
	feature := aoiFeature
	if sensorFeature != "" {
		available, err := s.drv.IsImplemented(s.handle, aoiFeature)
		if err != nil {
			return 0, err
		}
		if !available {
			feature = sensorFeature
		}
	}
	v, err := s.drv.GetInt(s.handle, feature)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > int64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("invalid value %d for feature %q", v, feature)
	}
	return int(v), nil
}

// snapshotGeometry captures the frame geometry the ring will be sized for.
func (s *Session) snapshotGeometry() error {
	size, err := s.geometryInt(sdk.FeatureImageSize, "")
	if err != nil {
		return err
	}
	width, err := s.geometryInt(sdk.FeatureAOIWidth, sdk.FeatureSensorWidth)
	if err != nil {
		return err
	}
	height, err := s.geometryInt(sdk.FeatureAOIHeight, sdk.FeatureSensorHeight)
	if err != nil {
		return err
	}
	stride, err := s.geometryInt(sdk.FeatureAOIStride, "")
	if err != nil {
		return err
	}
	s.geom = pixel.Geometry{
		SizeBytes: size,
		Width:     width,
		Height:    height,
		RowStride: stride,
	}
	return nil
}

// ensureRing allocates or reuses the ring memory for the current geometry
// and queue length. An existing block of exactly the required size is
// reused verbatim; otherwise the session's reference is cleared before the
// old memory is released, then a fresh block is allocated.
func (s *Session) ensureRing() error {
	if s.block.Fits(s.geom.SizeBytes, s.queueLength) {
		return s.block.Relayout(s.geom.SizeBytes, s.queueLength)
	}
	old := s.block
	s.block = nil
	old.Release()
	blk, err := buffer.New(s.geom.SizeBytes, s.queueLength)
	if err != nil {
		return err
	}
	s.block = blk
	s.log("ensureRing").WithFields(logrus.Fields{
		"frame_size":   s.geom.SizeBytes,
		"queue_length": s.queueLength,
		"ring_bytes":   blk.Size(),
	}).Debug("Frame ring allocated")
	return nil
}

// Start begins continuous acquisition: it selects the decoder, snapshots
// the frame geometry, sizes the ring, queues every slot, switches the
// camera to continuous cycling and issues the start command.
//
// A failure after slots were queued flushes the hardware queue before
// returning, so acquisition never ends up half-started with stale buffers
// queued.
func (s *Session) Start() error {
	if s.state != Idle {
		return fmt.Errorf("%w: acquisition already running", ErrInvalidState)
	}
	if s.queueLength < 1 {
		return fmt.Errorf("%w: set queue length first", ErrQueueLengthUnset)
	}

	if err := s.resolveDecoder(); err != nil {
		return err
	}

	// Make sure no buffers from an earlier run are still queued. Failure
	// here is not actionable; the queue loop below will surface real
	// trouble.
	_ = s.drv.Flush(s.handle)

	if err := s.snapshotGeometry(); err != nil {
		return err
	}
	if err := s.ensureRing(); err != nil {
		return err
	}

	for i := 0; i < s.block.Slots(); i++ {
		if err := s.drv.QueueBuffer(s.handle, s.block.Slot(i)); err != nil {
			_ = s.drv.Flush(s.handle)
			return fmt.Errorf("queueing slot %d: %w", i, err)
		}
	}

	if err := s.drv.SetEnumString(s.handle, sdk.FeatureCycleMode, sdk.CycleModeContinuous); err != nil {
		_ = s.drv.Flush(s.handle)
		return err
	}
	if err := s.drv.Command(s.handle, sdk.CommandAcquisitionStart); err != nil {
		_ = s.drv.Flush(s.handle)
		return err
	}

	s.state = Acquiring
	s.log("Start").WithFields(logrus.Fields{
		"encoding":     s.encoding.String(),
		"width":        s.geom.Width,
		"height":       s.geom.Height,
		"frame_size":   s.geom.SizeBytes,
		"row_stride":   s.geom.RowStride,
		"queue_length": s.queueLength,
	}).Info("Acquisition started")
	return nil
}

// Stop halts acquisition and flushes the hardware queue. Calling Stop on
// an idle session warns and returns nil.
//
// With final set (the teardown path) hardware failures are downgraded to
// warnings: teardown must never be blocked by a stuck camera. Without
// final the first failure is returned. The session transitions to Idle
// unconditionally either way.
func (s *Session) Stop(final bool) error {
	if s.state != Acquiring {
		s.log("Stop").Warn("Camera not acquiring")
		return nil
	}

	var firstErr error
	if err := s.drv.Command(s.handle, sdk.CommandAcquisitionStop); err != nil {
		if final {
			s.log("Stop").WithError(err).Warn("Acquisition stop failed during teardown")
		} else {
			firstErr = err
		}
	}
	if err := s.drv.Flush(s.handle); err != nil {
		if final {
			s.log("Stop").WithError(err).Warn("Queue flush failed during teardown")
		} else if firstErr == nil {
			firstErr = err
		}
	}

	s.state = Idle
	s.log("Stop").WithField("final", final).Info("Acquisition stopped")
	return firstErr
}

// checkFrame diagnoses the frame the hardware returned against the
// session's slot layout. Mismatches indicate a broken assumption about how
// the SDK recycles buffers, not a correctness failure at this layer, so
// they are logged as warnings and the frame is processed anyway.
func (s *Session) checkFrame(frame []byte) {
	if len(frame) != s.geom.SizeBytes {
		s.log("checkFrame").WithFields(logrus.Fields{
			"frame_size":    len(frame),
			"expected_size": s.geom.SizeBytes,
		}).Warn("Returned frame size differs from geometry snapshot")
	}
	loc := s.block.Locate(frame)
	switch {
	case !loc.Inside:
		s.log("checkFrame").Warn("Returned frame address is outside our ring")
	case !loc.Aligned:
		s.log("checkFrame").Warn("Returned frame is not aligned with one of our slots")
	}
}

// WaitImage blocks until the hardware delivers a completed frame, decodes
// it and returns the slot to the ring.
//
// Timeout semantics: negative blocks indefinitely, zero polls, positive
// bounds the wait; an elapsed timeout is reported via sdk.ErrTimedOut.
// Decoding happens strictly before the slot is requeued, because the
// slot's memory may be overwritten by the next DMA cycle the instant it
// re-enters the queue. A wait failure other than a timeout forfeits the
// slot (see LostSlots); a requeue failure is fatal.
func (s *Session) WaitImage(timeout time.Duration) (*pixel.Image, error) {
	if s.state != Acquiring {
		return nil, fmt.Errorf("%w: camera is not acquiring", ErrInvalidState)
	}

	frame, err := s.drv.WaitBuffer(s.handle, timeout)
	if err != nil {
		if errors.Is(err, sdk.ErrTimedOut) {
			return nil, err
		}
		// The consumed slot is not requeued on a wait failure, so the
		// active ring shrinks for the rest of the run. Known gap: there
		// is no agreed retry policy, so the loss is counted, not hidden.
		s.lostSlots++
		s.log("WaitImage").WithError(err).WithField("lost_slots", s.lostSlots).
			Warn("Wait failed, ring slot forfeited")
		return nil, err
	}

	s.checkFrame(frame)

	img, decodeErr := s.decode(s.geom, frame)

	if err := s.drv.QueueBuffer(s.handle, frame); err != nil {
		s.lostSlots++
		return nil, fmt.Errorf("requeueing frame slot: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return img, nil
}

// Teardown force-stops acquisition and releases the ring. Hardware errors
// are suppressed; the ring reference is cleared before its memory is
// released so an interruption can never leave the session pointing at a
// dangling block. Safe to call more than once.
func (s *Session) Teardown() {
	if s.state == Acquiring {
		_ = s.Stop(true)
	}
	blk := s.block
	s.block = nil
	blk.Release()
}
