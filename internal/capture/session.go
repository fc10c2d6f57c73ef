// Package capture runs capture sessions on top of V4L2 cameras: one
// session per device, serialized grabs, optional decoding to RGB and image
// encoding for snapshots.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/internal/metrics"
	"github.com/smazurov/vcap/pkg/decode"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// Device is the camera handle a Session drives. *v4l2.Camera implements it.
type Device interface {
	Device() string
	Info() v4l2.DeviceInfo
	State() v4l2.State

	Open() error
	Close() error
	Start() error
	Stop() error
	GrabFrame() (v4l2.RawFrame, error)
	SetGrabTimeout(d time.Duration)

	Formats() ([]v4l2.FormatInfo, error)
	Format() (v4l2.Format, error)
	SetFormat(f v4l2.Format) (v4l2.Format, error)
	AutoSetFormat() (v4l2.Format, error)
	FrameRates(f v4l2.Format) ([]v4l2.Framerate, error)
	FrameRate() (v4l2.Framerate, error)
	SetFrameRate(fr v4l2.Framerate) (v4l2.Framerate, error)

	Controls() ([]v4l2.ControlInfo, error)
	ControlValue(id v4l2.ControlID) (int32, error)
	SetControlValue(id v4l2.ControlID, value int32) error
}

var _ Device = (*v4l2.Camera)(nil)

// Options tune a Session.
type Options struct {
	// WarmUp is slept after Start so auto exposure can settle.
	WarmUp time.Duration
	// GrabTimeout bounds each grab when the context has no deadline.
	GrabTimeout time.Duration
	// MaxFrameBytes caps the decoded frame size; zero means no limit.
	MaxFrameBytes int
}

// Frame is one captured frame. Data is raw in Format unless Decoded is set,
// in which case it is packed RGB24 (BGR24 when BGR is set).
type Frame struct {
	Data   []byte
	Format pixfmt.FourCC
	Width  uint32
	Height uint32
	// Stride is the driver's bytes per line of raw Data; zero once decoded.
	Stride    uint32
	Sequence  uint32
	Timestamp time.Duration
	Decoded   bool
	BGR       bool
}

// ProfileResult reports what ApplyProfile changed.
type ProfileResult struct {
	Format    v4l2.Format
	Framerate v4l2.Framerate
	Applied   []string
	Failed    map[string]error
}

// Session serializes access to one Device and adds logging, metrics and
// events around it.
type Session struct {
	dev    Device
	id     string
	opts   Options
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	format  v4l2.Format
	decoder *decode.Decoder
}

// NewSession wraps dev. bus may be nil.
func NewSession(dev Device, opts Options, bus *events.Bus) *Session {
	return &Session{
		dev:    dev,
		id:     uuid.NewString(),
		opts:   opts,
		bus:    bus,
		logger: logging.GetLogger("capture").With("device", dev.Device()),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Device returns the device path.
func (s *Session) Device() string { return s.dev.Device() }

// Camera returns the underlying device handle.
func (s *Session) Camera() Device { return s.dev }

// State returns the device lifecycle state.
func (s *Session) State() v4l2.State { return s.dev.State() }

// Format returns the format negotiated by the last Open or profile.
func (s *Session) Format() v4l2.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Open opens the device, negotiates the best decodable format and then
// applies profile, if given, on top of it. A profile the device rejects is
// logged and leaves the automatic format in place.
func (s *Session) Open(profile *config.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.Open(); err != nil {
		return s.fail("open", err)
	}
	s.publishState()

	f, err := s.dev.AutoSetFormat()
	if err != nil {
		_ = s.dev.Close()
		s.publishState()
		return s.fail("format", err)
	}
	s.setFormat(f)

	if profile != nil {
		if _, err := s.applyProfile(*profile); err != nil {
			s.logger.Warn("Failed to apply profile", "error", err)
		}
	}
	s.logger.Info("Session opened", "session", s.id, "format", s.format.String())
	return nil
}

// Start begins streaming and waits out the warm-up delay.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	if err := s.dev.Start(); err != nil {
		return s.fail("start", err)
	}
	metrics.SetStreaming(s.Device(), true)
	s.publishState()
	s.logger.Info("Streaming started", "session", s.id, "format", s.format.String())

	if s.opts.WarmUp > 0 {
		select {
		case <-time.After(s.opts.WarmUp):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop ends streaming.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop()
}

func (s *Session) stop() error {
	err := s.dev.Stop()
	metrics.SetStreaming(s.Device(), false)
	if err != nil {
		return s.fail("stop", err)
	}
	s.publishState()
	s.logger.Info("Streaming stopped", "session", s.id)
	return nil
}

// Close stops streaming if needed and closes the device.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.dev.State() == v4l2.StateStreaming {
		if err := s.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.dev.State() == v4l2.StateOpened {
		if err := s.dev.Close(); err != nil {
			errs = append(errs, s.fail("close", err))
		}
	}
	s.publishState()
	return errors.Join(errs...)
}

// Grab captures one frame, decoding it to RGB24 (or BGR24) when decoded is
// set. Grabs on one session never overlap. The context deadline, if any,
// replaces the session grab timeout.
func (s *Session) Grab(ctx context.Context, decoded, bgr bool) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := s.opts.GrabTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	s.dev.SetGrabTimeout(timeout)

	start := time.Now()
	raw, err := s.dev.GrabFrame()
	if err != nil {
		return nil, s.fail("grab", err)
	}
	metrics.RecordGrab(s.Device(), len(raw.Data), time.Since(start))

	frame := &Frame{
		Data:      raw.Data,
		Format:    s.format.PixelFormat,
		Width:     s.format.Width,
		Height:    s.format.Height,
		Stride:    s.format.BytesPerLine,
		Sequence:  raw.Sequence,
		Timestamp: raw.Timestamp,
	}

	if decoded {
		if err := s.decode(frame, bgr); err != nil {
			return nil, err
		}
	}

	s.bus.Publish(events.FrameCapturedEvent{
		Device:      s.Device(),
		SessionID:   s.id,
		PixelFormat: frame.Format.String(),
		Width:       frame.Width,
		Height:      frame.Height,
		Sequence:    frame.Sequence,
		Bytes:       len(frame.Data),
		Decoded:     frame.Decoded,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	return frame, nil
}

func (s *Session) decode(frame *Frame, bgr bool) error {
	format := frame.Format.String()
	start := time.Now()
	rgb, err := s.decoder.DecodeStride(frame.Data, frame.Format, frame.Width, frame.Height, frame.Stride, bgr)
	if err != nil {
		metrics.RecordDecodeError(format, decodeErrorKind(err))
		s.logger.Debug("Decode failed", "format", format, "bytes", len(frame.Data), "error", err)
		s.publishError("decode", err)
		return fmt.Errorf("decode %s: %w", s.format, err)
	}
	metrics.RecordDecode(format, time.Since(start))

	frame.Data = rgb
	frame.Stride = 0
	frame.Decoded = true
	frame.BGR = bgr
	return nil
}

// ApplyProfile sets the profile's format, frame rate and controls. Changing
// the format of a streaming device restarts the stream.
func (s *Session) ApplyProfile(ctx context.Context, p config.Profile) (ProfileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev.State() == v4l2.StateClosed {
		return ProfileResult{}, fmt.Errorf("%w: apply profile while closed", v4l2.ErrInvalidState)
	}

	restart := false
	if s.dev.State() == v4l2.StateStreaming && profileChangesFormat(p, s.format) {
		if err := s.stop(); err != nil {
			return ProfileResult{}, err
		}
		restart = true
	}

	res, err := s.applyProfile(p)
	if restart {
		if startErr := s.start(ctx); startErr != nil {
			return res, errors.Join(err, startErr)
		}
	}
	return res, err
}

func profileChangesFormat(p config.Profile, cur v4l2.Format) bool {
	if p.PixelFormat != "" && p.PixelFormat != cur.PixelFormat.String() {
		return true
	}
	if p.Width != 0 && p.Width != cur.Width {
		return true
	}
	if p.Height != 0 && p.Height != cur.Height {
		return true
	}
	return p.FPS != 0
}

// applyProfile does the work of ApplyProfile. Callers hold mu. A rejected
// format is returned as an error after the controls have been tried;
// control failures are only reported in the result.
func (s *Session) applyProfile(p config.Profile) (ProfileResult, error) {
	res := ProfileResult{Failed: make(map[string]error)}

	formatErr := s.applyProfileFormat(p)
	if formatErr != nil {
		res.Failed["format"] = formatErr
	}
	res.Format = s.format

	if p.FPS != 0 {
		fr, err := s.dev.SetFrameRate(v4l2.Framerate{Numerator: 1, Denominator: p.FPS})
		if err != nil {
			res.Failed["fps"] = err
			s.logger.Warn("Failed to set frame rate", "fps", p.FPS, "error", err)
		} else {
			res.Framerate = fr
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Controls)) {
		value := p.Controls[name]
		id, err := v4l2.ParseControl(name)
		if err == nil {
			err = s.dev.SetControlValue(id, value)
		}
		if err != nil {
			res.Failed[name] = err
			s.logger.Warn("Failed to set control", "control", name, "value", value, "error", err)
			continue
		}
		res.Applied = append(res.Applied, name)
	}

	s.bus.Publish(events.ProfileAppliedEvent{
		Device:    s.Device(),
		Format:    s.format.String(),
		Applied:   res.Applied,
		Failed:    slices.Sorted(maps.Keys(res.Failed)),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	s.logger.Info("Profile applied", "format", s.format.String(), "applied", len(res.Applied), "failed", len(res.Failed))
	return res, formatErr
}

func (s *Session) applyProfileFormat(p config.Profile) error {
	if p.PixelFormat == "" && p.Width == 0 && p.Height == 0 {
		return nil
	}

	// The driver picks stride and colorimetry for the new size.
	want := v4l2.Format{PixelFormat: s.format.PixelFormat, Width: s.format.Width, Height: s.format.Height}
	if p.PixelFormat != "" {
		code, err := pixfmt.Parse(p.PixelFormat)
		if err != nil {
			return fmt.Errorf("profile pixel format: %w", err)
		}
		want.PixelFormat = code
	}
	if p.Width != 0 {
		want.Width = p.Width
	}
	if p.Height != 0 {
		want.Height = p.Height
	}

	got, err := s.dev.SetFormat(want)
	if err != nil {
		return s.fail("format", err)
	}
	if got.PixelFormat != want.PixelFormat {
		s.logger.Warn("Driver substituted pixel format", "want", want.PixelFormat.String(), "got", got.PixelFormat.String())
	}
	s.setFormat(got)
	return nil
}

// setFormat records a negotiated format and picks a decoder for its
// colorimetry. Callers hold mu.
func (s *Session) setFormat(f v4l2.Format) {
	s.format = f
	d := v4l2.DecoderFor(f)
	opts := []decode.Option{
		decode.WithEncoding(d.Encoding()),
		decode.WithQuantization(d.Quantization()),
	}
	if s.opts.MaxFrameBytes > 0 {
		opts = append(opts, decode.WithMaxFrameBytes(s.opts.MaxFrameBytes))
	}
	s.decoder = decode.New(opts...)
}

// fail records a failed operation and returns err unchanged.
func (s *Session) fail(op string, err error) error {
	metrics.RecordGrabError(s.Device(), op)
	s.logger.Error("Capture operation failed", "op", op, "session", s.id, "error", err)
	s.publishError(op, err)
	return err
}

func (s *Session) publishError(op string, err error) {
	s.bus.Publish(events.CaptureErrorEvent{
		Device:    s.Device(),
		Op:        op,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Session) publishState() {
	s.bus.Publish(events.SessionStateEvent{
		Device:    s.Device(),
		SessionID: s.id,
		State:     s.dev.State().String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// decodeErrorKind maps a decode error to its metrics label.
func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, decode.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, decode.ErrTruncatedInput):
		return "truncated"
	case errors.Is(err, decode.ErrInvalidSize):
		return "invalid_size"
	case errors.Is(err, decode.ErrAllocationFailure):
		return "allocation"
	case errors.Is(err, decode.ErrCorruptFrame):
		return "corrupt"
	default:
		return "other"
	}
}
