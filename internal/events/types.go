package events

// Event type constants for kelindar/event.
const (
	TypeFrameCaptured uint32 = iota + 1
	TypeCaptureError
	TypeDeviceDiscovery
	TypeSessionState
	TypeProfileApplied
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameCapturedEvent is published after every successful grab.
type FrameCapturedEvent struct {
	Device      string `json:"device" example:"/dev/video0" doc:"Path to the video device"`
	SessionID   string `json:"session_id" doc:"Capture session identifier"`
	PixelFormat string `json:"pixel_format" example:"YUYV" doc:"Raw pixel format FOURCC"`
	Width       uint32 `json:"width" example:"640"`
	Height      uint32 `json:"height" example:"480"`
	Sequence    uint32 `json:"sequence" doc:"Driver frame sequence number"`
	Bytes       int    `json:"bytes" doc:"Size of the returned frame data"`
	Decoded     bool   `json:"decoded" doc:"Whether the frame was converted to RGB24/BGR24"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// CaptureErrorEvent is published when opening, streaming, grabbing or
// decoding fails.
type CaptureErrorEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Path to the video device"`
	Op        string `json:"op" example:"grab" doc:"Operation that failed"`
	Error     string `json:"error" example:"truncated input" doc:"Detailed error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// DeviceDiscoveryEvent represents camera hotplug events.
type DeviceDiscoveryEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Path to the video device"`
	DeviceID  string `json:"device_id,omitempty" doc:"Stable device identifier"`
	Name      string `json:"name,omitempty" example:"HD Pro Webcam C920" doc:"Card name"`
	Action    string `json:"action" example:"added" doc:"Action type: added, removed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// SessionStateEvent reports a capture session moving between closed,
// opened and streaming.
type SessionStateEvent struct {
	Device    string `json:"device" example:"/dev/video0"`
	SessionID string `json:"session_id"`
	State     string `json:"state" example:"streaming" doc:"closed, opened or streaming"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// ProfileAppliedEvent reports the result of applying a camera profile.
type ProfileAppliedEvent struct {
	Device    string   `json:"device" example:"/dev/video0"`
	Format    string   `json:"format,omitempty" example:"YUYV 640x480" doc:"Negotiated format"`
	Applied   []string `json:"applied,omitempty" doc:"Controls set successfully"`
	Failed    []string `json:"failed,omitempty" doc:"Controls the device rejected"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z"`
}

// Type returns the event type identifier for ProfileAppliedEvent.
func (e ProfileAppliedEvent) Type() uint32 { return TypeProfileApplied }
