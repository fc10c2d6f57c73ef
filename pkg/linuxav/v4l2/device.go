//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

const (
	sysfsVideoDir = "/sys/class/video4linux"
	byIDDir       = "/dev/v4l/by-id"
)

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		info, err := queryDevice(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("skipping video device", "path", devicePath, "error", err)
			continue
		}

		// Only include video capture devices
		if info.Caps&v4l2CapVideoCapture == 0 {
			continue
		}

		// Get device index from sysfs
		indexValue := readSysfsInt(filepath.Join(sysfsVideoDir, entry.Name(), "index"))

		// Find stable ID from /dev/v4l/by-id/
		info.DeviceID = findStableID(entry.Name(), indexValue)
		if info.DeviceID == "" {
			info.DeviceID = syntheticID(info.BusInfo, indexValue)
		}

		devices = append(devices, info)
	}

	return devices, nil
}

// Cameras returns an unopened Camera for every capture device.
func Cameras() ([]*Camera, error) {
	devices, err := FindDevices()
	if err != nil {
		return nil, err
	}
	cameras := make([]*Camera, 0, len(devices))
	for _, dev := range devices {
		cam := NewCamera(dev.DevicePath)
		cam.info = dev
		cameras = append(cameras, cam)
	}
	return cameras, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

// queryDevice opens a device just long enough to read its capabilities.
func queryDevice(devicePath string) (DeviceInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return DeviceInfo{}, deviceError("open", devicePath, err)
	}
	defer closeFd(fd)
	return queryCapability(fd, devicePath)
}

func queryCapability(fd int, devicePath string) (DeviceInfo, error) {
	capability := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&capability)); err != nil {
		return DeviceInfo{}, deviceError("VIDIOC_QUERYCAP", devicePath, err)
	}

	// Get the effective capabilities
	caps := capability.capabilities
	if caps&v4l2CapDeviceCaps != 0 {
		caps = capability.deviceCaps
	}

	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: cstr(capability.card[:]),
		Driver:     cstr(capability.driver[:]),
		BusInfo:    cstr(capability.busInfo[:]),
		Caps:       caps,
	}, nil
}

// syntheticID builds a fallback ID from bus_info and the sysfs index.
func syntheticID(busInfo string, index int) string {
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
