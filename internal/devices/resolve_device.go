package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// ResolveDevicePath converts a device ID or path to a /dev node path.
func ResolveDevicePath(deviceID string) (string, error) {
	// If it's already a full path, use it directly
	if strings.HasPrefix(deviceID, "/dev/") {
		return deviceID, nil
	}

	// Stable symlinks from udev, by-id for USB and by-path for platform devices
	for _, dir := range []string{"/dev/v4l/by-id", "/dev/v4l/by-path"} {
		link := filepath.Join(dir, deviceID)
		if _, err := os.Stat(link); err == nil {
			if target, err := filepath.EvalSymlinks(link); err == nil {
				return target, nil
			}
			return link, nil
		}
	}

	// Synthetic IDs only exist in enumeration results.
	if path, err := v4l2.GetDevicePathByID(deviceID); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", v4l2.ErrDeviceNotFound, deviceID)
}
