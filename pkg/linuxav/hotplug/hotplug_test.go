//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		want   Event
		wantOK bool
	}{
		{
			name:  "empty input",
			input: []byte{},
		},
		{
			name:  "nil input",
			input: nil,
		},
		{
			name:  "no @ separator",
			input: []byte("invalid"),
		},
		{
			name:  "missing action",
			input: []byte("@/devices/foo"),
		},
		{
			name:  "only null bytes",
			input: []byte{0, 0, 0, 0},
		},
		{
			name:  "camera added",
			input: []byte("add@/devices/pci0000:00/usb1/1-1/1-1:1.0/video4linux/video0\x00ACTION=add\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00SEQNUM=4711\x00"),
			want: Event{
				Action:    "add",
				KObj:      "/devices/pci0000:00/usb1/1-1/1-1:1.0/video4linux/video0",
				Subsystem: "video4linux",
				DevName:   "video0",
				Seqnum:    "4711",
				Env: map[string]string{
					"ACTION":    "add",
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "video0",
					"SEQNUM":    "4711",
				},
			},
			wantOK: true,
		},
		{
			name:  "usb device removed",
			input: []byte("remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVNAME=bus/usb/001/004\x00PRODUCT=46d/825/12\x00"),
			want: Event{
				Action:    "remove",
				KObj:      "/devices/usb/1-1",
				Subsystem: "usb",
				DevName:   "bus/usb/001/004",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVNAME":   "bus/usb/001/004",
					"PRODUCT":   "46d/825/12",
				},
			},
			wantOK: true,
		},
		{
			name:  "empty values and trailing nulls",
			input: []byte("bind@/devices/test\x00KEY1=value1\x00KEY2=\x00\x00\x00"),
			want: Event{
				Action: "bind",
				KObj:   "/devices/test",
				Env:    map[string]string{"KEY1": "value1", "KEY2": ""},
			},
			wantOK: true,
		},
		{
			name:  "equals inside value",
			input: []byte("change@/dev/foo\x00KEY=val=ue\x00=orphan\x00"),
			want: Event{
				Action: "change",
				KObj:   "/dev/foo",
				Env:    map[string]string{"KEY": "val=ue"},
			},
			wantOK: true,
		},
		{
			name:  "very long path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00"),
			want: Event{
				Action: "add",
				KObj:   "/devices/" + strings.Repeat("a", 500),
				Env:    map[string]string{},
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseUEvent(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseUEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}

			if got.Action != tt.want.Action {
				t.Errorf("Action = %q, want %q", got.Action, tt.want.Action)
			}
			if got.KObj != tt.want.KObj {
				t.Errorf("KObj = %q, want %q", got.KObj, tt.want.KObj)
			}
			if got.Subsystem != tt.want.Subsystem {
				t.Errorf("Subsystem = %q, want %q", got.Subsystem, tt.want.Subsystem)
			}
			if got.DevName != tt.want.DevName {
				t.Errorf("DevName = %q, want %q", got.DevName, tt.want.DevName)
			}
			if got.Seqnum != tt.want.Seqnum {
				t.Errorf("Seqnum = %q, want %q", got.Seqnum, tt.want.Seqnum)
			}
			if len(got.Env) != len(tt.want.Env) {
				t.Errorf("Env = %v, want %v", got.Env, tt.want.Env)
			}
			for k, v := range tt.want.Env {
				if got.Env[k] != v {
					t.Errorf("Env[%q] = %q, want %q", k, got.Env[k], v)
				}
			}
		})
	}
}

func TestEventNode(t *testing.T) {
	tests := []struct {
		event    Event
		node     string
		isCamera bool
	}{
		{Event{Subsystem: SubsystemVideo4Linux, DevName: "video2"}, "/dev/video2", true},
		{Event{Subsystem: SubsystemVideo4Linux}, "", false},
		{Event{Subsystem: SubsystemUSB, DevName: "bus/usb/001/004"}, "/dev/bus/usb/001/004", false},
	}

	for _, tt := range tests {
		if got := tt.event.Node(); got != tt.node {
			t.Errorf("Node() = %q, want %q", got, tt.node)
		}
		if got := tt.event.IsCamera(); got != tt.isCamera {
			t.Errorf("IsCamera(%+v) = %v, want %v", tt.event, got, tt.isCamera)
		}
	}
}

func TestMonitorAccepts(t *testing.T) {
	m := &Monitor{filters: make(map[string]struct{})}

	if !m.accepts(SubsystemUSB) {
		t.Error("accepts(usb) = false with no filters, want true")
	}

	m.AddSubsystemFilter(SubsystemVideo4Linux)
	if !m.accepts(SubsystemVideo4Linux) {
		t.Error("accepts(video4linux) = false, want true")
	}
	if m.accepts(SubsystemUSB) {
		t.Error("accepts(usb) = true with video4linux filter, want false")
	}
}

// Run with -race.
func TestMonitorConcurrentFilterAdd(t *testing.T) {
	m := &Monitor{filters: make(map[string]struct{})}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.AddSubsystemFilter(SubsystemVideo4Linux)
				m.AddSubsystemFilter(SubsystemUSB)
				_ = m.accepts(SubsystemUSB)
			}
		}()
	}
	wg.Wait()

	if len(m.filters) != 2 {
		t.Errorf("len(filters) = %d, want 2", len(m.filters))
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m, err := NewCameraMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 1)
	if runErr := m.Run(ctx, events); !errors.Is(runErr, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", runErr)
	}
	if _, open := <-events; open {
		t.Error("events channel still open after Run returned")
	}
}
