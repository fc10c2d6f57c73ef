//go:build linux

// Package hotplug reports camera add and remove events by listening to
// kernel uevents on a netlink socket, without cgo or udev.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"path"
	"sync"

	"golang.org/x/sys/unix"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystem names a Monitor can filter on.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemUSB         = "usb"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = unix.NETLINK_KOBJECT_UEVENT

// kernelGroup is the multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// pollInterval bounds how long Run waits before re-checking its context.
const pollInterval = 500 // ms

// Event is one kernel device event.
type Event struct {
	Action    string // "add", "remove", "change", ...
	KObj      string // sysfs path from the header, e.g. /devices/pci0000:00/.../video4linux/video0
	Subsystem string
	DevName   string // node name relative to /dev, e.g. "video0"
	Seqnum    string
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" when the
// event carries none.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return path.Join("/dev", e.DevName)
}

// IsCamera reports whether the event concerns a video4linux device node.
func (e Event) IsCamera() bool {
	return e.Subsystem == SubsystemVideo4Linux && e.DevName != ""
}

// Monitor listens for kernel device events via netlink.
type Monitor struct {
	fd int

	mu      sync.RWMutex
	filters map[string]struct{}
}

// NewMonitor opens a netlink socket bound to the kernel uevent group.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Monitor{fd: fd, filters: make(map[string]struct{})}, nil
}

// NewCameraMonitor returns a Monitor that only reports video4linux events.
func NewCameraMonitor() (*Monitor, error) {
	m, err := NewMonitor()
	if err != nil {
		return nil, err
	}
	m.AddSubsystemFilter(SubsystemVideo4Linux)
	return m, nil
}

// AddSubsystemFilter restricts Run to events from the given subsystem. With
// no filters every event passes. Safe for concurrent use.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.mu.Lock()
	m.filters[subsystem] = struct{}{}
	m.mu.Unlock()
}

func (m *Monitor) accepts(subsystem string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.filters) == 0 {
		return true
	}
	_, ok := m.filters[subsystem]
	return ok
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run delivers matching events until ctx is cancelled or the socket fails.
// The events channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if errors.Is(err, unix.EINTR) || n == 0 {
			continue
		}
		if err != nil {
			return err
		}

		n, _, err = unix.Recvfrom(m.fd, buf, 0)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}

		event, ok := ParseUEvent(buf[:n])
		if !ok || !m.accepts(event.Subsystem) {
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...".
func ParseUEvent(data []byte) (Event, bool) {
	fields := bytes.Split(data, []byte{0})
	if len(fields) == 0 {
		return Event{}, false
	}

	action, kobj, found := bytes.Cut(fields[0], []byte("@"))
	if !found || len(action) == 0 {
		return Event{}, false
	}

	event := Event{
		Action: string(action),
		KObj:   string(kobj),
		Env:    make(map[string]string),
	}

	for _, field := range fields[1:] {
		key, value, found := bytes.Cut(field, []byte("="))
		if !found || len(key) == 0 {
			continue
		}
		k, v := string(key), string(value)
		event.Env[k] = v

		switch k {
		case "SUBSYSTEM":
			event.Subsystem = v
		case "DEVNAME":
			event.DevName = v
		case "SEQNUM":
			event.Seqnum = v
		}
	}

	return event, true
}
