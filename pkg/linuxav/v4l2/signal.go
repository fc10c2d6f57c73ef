//go:build linux

package v4l2

import (
	"encoding/binary"
	"errors"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// btTimings holds the fields of struct v4l2_bt_timings used to report signal
// state.
type btTimings struct {
	width, height uint32
	interlaced    uint32
	pixelclock    uint64

	hfrontporch, hsync, hbackporch uint32
	vfrontporch, vsync, vbackporch uint32
}

// bt decodes the BT.656/1120 timings that follow the type field.
func (t *v4l2DVTimings) bt() btTimings {
	le := binary.LittleEndian
	r := t.raw[:]
	return btTimings{
		width:       le.Uint32(r[4:]),
		height:      le.Uint32(r[8:]),
		interlaced:  le.Uint32(r[12:]),
		pixelclock:  le.Uint64(r[20:]),
		hfrontporch: le.Uint32(r[28:]),
		hsync:       le.Uint32(r[32:]),
		hbackporch:  le.Uint32(r[36:]),
		vfrontporch: le.Uint32(r[40:]),
		vsync:       le.Uint32(r[44:]),
		vbackporch:  le.Uint32(r[48:]),
	}
}

func (bt btTimings) locked() bool {
	return bt.width > 0 && bt.height > 0 && bt.pixelclock > 0
}

// GetDeviceType returns the type of a V4L2 device (webcam, HDMI, or unknown).
func GetDeviceType(devicePath string) DeviceType {
	return GetDeviceStatus(devicePath).DeviceType
}

// GetDeviceStatus returns the combined device type and ready status.
func GetDeviceStatus(devicePath string) DeviceStatus {
	status := DeviceStatus{DeviceType: DeviceTypeUnknown}

	fd, err := open(devicePath)
	if err != nil {
		return status
	}
	defer closeFd(fd)

	info, err := queryCapability(fd, devicePath)
	if err != nil {
		return status
	}

	// Devices answering G_DV_TIMINGS (even with "no link") are HDMI receivers.
	var timings v4l2DVTimings
	err = ioctl(fd, vidiocGDVTimings, unsafe.Pointer(&timings))
	if err == nil || errors.Is(err, syscall.ENOLINK) || errors.Is(err, syscall.ENOLCK) {
		status.DeviceType = DeviceTypeHDMI
		status.Ready = err == nil && timings.bt().locked()
		return status
	}

	if info.Driver == "uvcvideo" {
		status.DeviceType = DeviceTypeWebcam
	}
	status.Ready = true
	return status
}

// GetDVTimings returns the current DV timings and signal status for HDMI devices.
func GetDVTimings(devicePath string) SignalStatus {
	status := SignalStatus{State: SignalStateNoDevice}

	fd, err := open(devicePath)
	if err != nil {
		return status
	}
	defer closeFd(fd)

	var timings v4l2DVTimings
	err = ioctl(fd, vidiocGDVTimings, unsafe.Pointer(&timings))
	if err == nil {
		bt := timings.bt()
		if !bt.locked() {
			status.State = SignalStateNoSignal
			return status
		}
		status.State = SignalStateLocked
		status.Width = bt.width
		status.Height = bt.height
		status.FPS = calculateFPS(bt)
		status.Interlaced = bt.interlaced != 0
		return status
	}

	switch {
	case errors.Is(err, syscall.ENOLINK):
		status.State = SignalStateNoLink
	case errors.Is(err, syscall.ENOLCK):
		status.State = SignalStateUnstable
	case errors.Is(err, syscall.ERANGE):
		status.State = SignalStateOutOfRange
	case errors.Is(err, syscall.ENOTTY):
		status.State = SignalStateNotSupported
	default:
		status.State = SignalStateNoSignal
	}
	return status
}

// WaitForSourceChange waits for a source change event. It returns the change
// flags, or 0 when the timeout expires. A zero timeout waits forever.
func WaitForSourceChange(devicePath string, timeout time.Duration) (uint32, error) {
	fd, err := open(devicePath)
	if err != nil {
		return 0, deviceError("open", devicePath, err)
	}
	defer closeFd(fd)

	sub := v4l2EventSubscription{typ: v4l2EventSourceChange}
	if err := ioctl(fd, vidiocSubscribeEvent, unsafe.Pointer(&sub)); err != nil {
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
			return 0, ErrEventsNotSupported
		}
		return 0, deviceError("VIDIOC_SUBSCRIBE_EVENT", devicePath, err)
	}
	defer func() { _ = ioctl(fd, vidiocUnsubscribeEvent, unsafe.Pointer(&sub)) }()

	ms := -1
	if timeout > 0 {
		ms = int(timeout / time.Millisecond)
	}

	// V4L2 events are signalled as priority data.
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLPRI}}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, deviceError("poll", devicePath, err)
		}
		if n == 0 {
			return 0, nil
		}
		break
	}

	var event v4l2Event
	if err := ioctl(fd, vidiocDqevent, unsafe.Pointer(&event)); err != nil {
		return 0, deviceError("VIDIOC_DQEVENT", devicePath, err)
	}
	return event.srcChangeChanges(), nil
}

// IsDeviceReady checks if a V4L2 device is ready (has signal for HDMI, exists for webcam).
func IsDeviceReady(devicePath string) bool {
	return GetDeviceStatus(devicePath).Ready
}

// calculateFPS calculates the frame rate from DV timings.
func calculateFPS(bt btTimings) float64 {
	if bt.pixelclock == 0 {
		return 0
	}

	totalWidth := uint64(bt.width + bt.hfrontporch + bt.hsync + bt.hbackporch)
	totalHeight := uint64(bt.height + bt.vfrontporch + bt.vsync + bt.vbackporch)

	if bt.interlaced != 0 {
		totalHeight /= 2
	}

	if totalWidth == 0 || totalHeight == 0 {
		return 0
	}

	return float64(bt.pixelclock) / float64(totalWidth*totalHeight)
}
