package api

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/internal/events"
)

func newHTTPServer(t *testing.T, bus *events.Bus) *httptest.Server {
	t.Helper()

	detector := devices.NewDetector(bus, devices.WithLister(func() ([]devices.DeviceInfo, error) {
		return nil, nil
	}))
	manager := capture.NewManager(capture.Options{}, bus, capture.WithDeviceFactory(func(path string) capture.Device {
		return newStubCamera(path)
	}))
	t.Cleanup(func() { _ = manager.Close() })

	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Manager:      manager,
		Detector:     detector,
		Profiles:     config.NewProfileStore(t.TempDir() + "/profiles.toml"),
		EventBus:     bus,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestBasicAuth(t *testing.T) {
	ts := newHTTPServer(t, events.New())

	tests := []struct {
		name string
		path string
		auth string
		want int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"missing credentials", "/api/devices", "", http.StatusUnauthorized},
		{"wrong password", "/api/devices", "test:nope", http.StatusUnauthorized},
		{"valid credentials", "/api/devices", "test:test", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(tt.auth)))
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSSEConnectionAndEvents(t *testing.T) {
	bus := events.New()
	ts := newHTTPServer(t, bus)

	// The handler subscribes before it writes anything, and the response
	// headers may not arrive until the first event, so keep publishing
	// until one is delivered.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Publish(events.DeviceDiscoveryEvent{
					Device:    "/dev/video7",
					DeviceID:  "usb-test-cam",
					Action:    "added",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}
	}()

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	sseURL := fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials)

	resp, err := http.Get(sseURL)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
				select {
				case lines <- line:
				case <-stop:
					return
				}
			}
		}
	}()

	deadline := time.After(2 * time.Second)
	var got []string
	for len(got) < 2 {
		select {
		case line := <-lines:
			got = append(got, line)
		case <-deadline:
			t.Fatalf("Timeout waiting for device discovery event, got %v", got)
		}
	}

	if !strings.Contains(got[0], "device-discovery") {
		t.Errorf("event line = %q, want device-discovery", got[0])
	}
	if !strings.Contains(got[1], "usb-test-cam") || !strings.Contains(got[1], `"action":"added"`) {
		t.Errorf("data line = %q, want discovery payload", got[1])
	}
}
