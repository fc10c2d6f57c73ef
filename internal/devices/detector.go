// Package devices tracks the V4L2 cameras present on the system and
// publishes discovery events when they come and go.
package devices

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// Discovery actions reported in events.DeviceDiscoveryEvent.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionChanged = "changed"
)

// DeviceInfo describes one capture device.
type DeviceInfo struct {
	DevicePath string          `json:"device_path" example:"/dev/video0"`
	DeviceName string          `json:"device_name" example:"HD Pro Webcam C920"`
	DeviceID   string          `json:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0"`
	Driver     string          `json:"driver" example:"uvcvideo"`
	BusInfo    string          `json:"bus_info" example:"usb-0000:00:14.0-1"`
	Type       v4l2.DeviceType `json:"-"`
	Ready      bool            `json:"ready" doc:"Webcams are always ready; HDMI receivers need a locked signal"`
}

// Lister returns the devices currently present.
type Lister func() ([]DeviceInfo, error)

// Detector keeps the last known device set and reports differences.
type Detector struct {
	list   Lister
	bus    *events.Bus
	settle time.Duration
	poll   time.Duration
	logger *slog.Logger

	mu          sync.Mutex
	lastDevices map[string]DeviceInfo // key is DeviceID
	onRemove    []func(DeviceInfo)
}

// Option configures a Detector.
type Option func(*Detector)

// WithLister replaces V4L2 enumeration, mainly for tests.
func WithLister(l Lister) Option {
	return func(d *Detector) { d.list = l }
}

// WithSettleDelay sets how long to wait after a kernel add event before
// enumerating, giving udev time to create the by-id symlinks.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Detector) { d.settle = delay }
}

// WithPollInterval sets the rescan interval used when netlink is unavailable.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Detector) { d.poll = interval }
}

// NewDetector creates a detector publishing to bus (which may be nil).
func NewDetector(bus *events.Bus, opts ...Option) *Detector {
	d := &Detector{
		list:        FindDevices,
		bus:         bus,
		settle:      time.Second,
		poll:        5 * time.Second,
		logger:      logging.GetLogger("devices"),
		lastDevices: make(map[string]DeviceInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FindDevices enumerates V4L2 capture devices with their type and readiness.
func FindDevices() ([]DeviceInfo, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, len(found))
	for i, dev := range found {
		// Get device type and ready status in single device open
		status := v4l2.GetDeviceStatus(dev.DevicePath)
		devices[i] = DeviceInfo{
			DevicePath: dev.DevicePath,
			DeviceName: dev.DeviceName,
			DeviceID:   dev.DeviceID,
			Driver:     dev.Driver,
			BusInfo:    dev.BusInfo,
			Type:       status.DeviceType,
			Ready:      status.Ready,
		}
	}
	return devices, nil
}

// OnRemove registers a callback run after a device disappears.
func (d *Detector) OnRemove(fn func(DeviceInfo)) {
	d.mu.Lock()
	d.onRemove = append(d.onRemove, fn)
	d.mu.Unlock()
}

// Devices returns the last known devices ordered by path.
func (d *Detector) Devices() []DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make([]DeviceInfo, 0, len(d.lastDevices))
	for _, dev := range d.lastDevices {
		result = append(result, dev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DevicePath < result[j].DevicePath })
	return result
}

// Lookup finds a known device by stable ID or /dev path.
func (d *Detector) Lookup(idOrPath string) (DeviceInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dev, ok := d.lastDevices[idOrPath]; ok {
		return dev, true
	}
	for _, dev := range d.lastDevices {
		if dev.DevicePath == idOrPath {
			return dev, true
		}
	}
	return DeviceInfo{}, false
}

// Refresh re-enumerates devices and publishes added, removed and changed
// events for the differences.
func (d *Detector) Refresh() error {
	devices, err := d.list()
	if err != nil {
		d.logger.Error("Error getting device data", "error", err)
		return err
	}

	currentDevices := make(map[string]DeviceInfo, len(devices))
	for _, device := range devices {
		currentDevices[device.DeviceID] = device
	}

	d.mu.Lock()
	var removed []DeviceInfo
	for deviceID, oldDevice := range d.lastDevices {
		if _, exists := currentDevices[deviceID]; !exists {
			d.broadcast(ActionRemoved, oldDevice)
			d.logger.Info("Device removed", "device", oldDevice.DevicePath, "name", oldDevice.DeviceName, "id", deviceID)
			delete(d.lastDevices, deviceID)
			removed = append(removed, oldDevice)
		}
	}

	for deviceID, newDevice := range currentDevices {
		oldDevice, exists := d.lastDevices[deviceID]
		switch {
		case !exists:
			d.broadcast(ActionAdded, newDevice)
			d.logger.Info("Device added", "device", newDevice.DevicePath, "name", newDevice.DeviceName, "id", deviceID)
			d.logHDMIStatus(newDevice)
		case oldDevice != newDevice:
			d.broadcast(ActionChanged, newDevice)
			d.logger.Info("Device changed", "device", newDevice.DevicePath, "name", newDevice.DeviceName, "id", deviceID)
		}
		d.lastDevices[deviceID] = newDevice
	}
	handlers := append([]func(DeviceInfo){}, d.onRemove...)
	d.mu.Unlock()

	for _, dev := range removed {
		for _, fn := range handlers {
			fn(dev)
		}
	}
	return nil
}

func (d *Detector) broadcast(action string, device DeviceInfo) {
	d.bus.Publish(events.DeviceDiscoveryEvent{
		Device:    device.DevicePath,
		DeviceID:  device.DeviceID,
		Name:      device.DeviceName,
		Action:    action,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (d *Detector) logHDMIStatus(device DeviceInfo) {
	if device.Type != v4l2.DeviceTypeHDMI {
		return
	}
	status := v4l2.GetDVTimings(device.DevicePath)
	if status.State == v4l2.SignalStateLocked {
		d.logger.Info("HDMI device has signal",
			"device_id", device.DeviceID,
			"resolution", fmt.Sprintf("%dx%d", status.Width, status.Height),
			"fps", fmt.Sprintf("%.2f", status.FPS))
		return
	}
	d.logger.Info("HDMI device without signal",
		"device_id", device.DeviceID,
		"state", status.State.String())
}

// Run publishes the initial device set, then follows kernel hotplug events
// until ctx is cancelled. Without netlink it falls back to polling.
func (d *Detector) Run(ctx context.Context) error {
	if err := d.Refresh(); err != nil {
		d.logger.Warn("Failed to get initial device list", "error", err)
	} else {
		d.logger.Info("Initialized with V4L2 devices", "count", len(d.Devices()))
	}

	changes, err := watchHotplug(ctx)
	if err != nil {
		d.logger.Warn("Hotplug monitor unavailable, polling for devices", "error", err, "interval", d.poll)
		return d.pollLoop(ctx)
	}

	d.logger.Info("Hotplug monitoring started for video4linux devices")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Hotplug monitor stopped")
			return ctx.Err()
		case action, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			if action == hotplugAdd && d.settle > 0 {
				select {
				case <-time.After(d.settle):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			_ = d.Refresh()
		}
	}
}

func (d *Detector) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = d.Refresh()
		}
	}
}
