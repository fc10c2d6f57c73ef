// Package models holds the request and response bodies of the HTTP API.
package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Version   string `json:"version" example:"1.2.0"`
	GitCommit string `json:"git_commit" example:"a1b2c3d"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z"`
	GoVersion string `json:"go_version" example:"go1.24.11"`
	Platform  string `json:"platform" example:"linux/arm64"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string `json:"device_name" example:"HD Pro Webcam C920" doc:"Card name reported by the driver"`
	DeviceID   string `json:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier"`
	Driver     string `json:"driver" example:"uvcvideo"`
	Type       string `json:"type" example:"webcam" enum:"webcam,hdmi,unknown"`
	Ready      bool   `json:"ready" doc:"Webcams are always ready; HDMI receivers need a locked signal"`
	State      string `json:"state" example:"streaming" enum:"closed,opened,streaming" doc:"Capture session state"`
	Session    string `json:"session_id,omitempty" doc:"Active capture session"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count" example:"1"`
}

type DeviceResponse struct {
	Body DeviceData
}

type Size struct {
	Width  uint32 `json:"width" example:"1280"`
	Height uint32 `json:"height" example:"720"`
}

type FormatInfo struct {
	PixelFormat string `json:"pixel_format" example:"YUYV" doc:"FOURCC"`
	Description string `json:"description" example:"YUYV 4:2:2"`
	Compressed  bool   `json:"compressed"`
	Emulated    bool   `json:"emulated" doc:"Converted in software by libv4l"`
	Decodable   bool   `json:"decodable" doc:"Frames in this format can be decoded to RGB"`
	Sizes       []Size `json:"sizes"`
}

type FormatsData struct {
	DevicePath string       `json:"device_path" example:"/dev/video0"`
	Formats    []FormatInfo `json:"formats"`
}

type FormatsResponse struct {
	Body FormatsData
}

type Framerate struct {
	Numerator   uint32  `json:"numerator" example:"1"`
	Denominator uint32  `json:"denominator" example:"30"`
	FPS         float64 `json:"fps" example:"30"`
}

type FrameratesData struct {
	Framerates []Framerate `json:"framerates"`
}

type FrameratesResponse struct {
	Body FrameratesData
}

type CurrentFormatData struct {
	DevicePath   string     `json:"device_path" example:"/dev/video0"`
	PixelFormat  string     `json:"pixel_format" example:"YUYV"`
	Width        uint32     `json:"width" example:"1280"`
	Height       uint32     `json:"height" example:"720"`
	BytesPerLine uint32     `json:"bytes_per_line" example:"2560"`
	SizeImage    uint32     `json:"size_image" example:"1843200"`
	Encoding     string     `json:"encoding" example:"bt601" doc:"YCbCr matrix used to decode frames"`
	Quantization string     `json:"quantization" example:"limited" doc:"YCbCr value range used to decode frames"`
	Framerate    *Framerate `json:"framerate,omitempty"`
}

type CurrentFormatResponse struct {
	Body CurrentFormatData
}

// Control models
type MenuItem struct {
	Name  string `json:"name" example:"Manual Mode"`
	Value int32  `json:"value" example:"1"`
}

type ControlInfo struct {
	Name     string     `json:"name" example:"brightness" doc:"Control identifier used in profiles and PUT requests"`
	Label    string     `json:"label" example:"Brightness" doc:"Driver supplied name"`
	Type     string     `json:"type" example:"range" enum:"range,boolean,menu,button"`
	Min      int32      `json:"min"`
	Max      int32      `json:"max"`
	Step     int32      `json:"step"`
	Default  int32      `json:"default"`
	Value    *int32     `json:"value,omitempty" doc:"Current value; absent for write-only controls"`
	ReadOnly bool       `json:"read_only"`
	Inactive bool       `json:"inactive"`
	Menu     []MenuItem `json:"menu,omitempty"`
}

type ControlsData struct {
	Controls []ControlInfo `json:"controls"`
}

type ControlsResponse struct {
	Body ControlsData
}

type ControlValueData struct {
	Name  string `json:"name" example:"brightness"`
	Value int32  `json:"value" example:"128"`
}

type ControlValueResponse struct {
	Body ControlValueData
}

// Profile models
type ProfileData struct {
	Device      string           `json:"device" example:"usb-046d_HD_Pro_Webcam_C920-video-index0"`
	PixelFormat string           `json:"pixel_format,omitempty" example:"YUYV"`
	Width       uint32           `json:"width,omitempty" example:"1280"`
	Height      uint32           `json:"height,omitempty" example:"720"`
	FPS         uint32           `json:"fps,omitempty" example:"30"`
	Controls    map[string]int32 `json:"controls,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitzero"`
}

type ProfileResponse struct {
	Body ProfileData
}

type ProfilesData struct {
	Profiles []ProfileData `json:"profiles"`
	Count    int           `json:"count"`
}

type ProfilesResponse struct {
	Body ProfilesData
}

// Stats models
type DeviceStats struct {
	Frames    uint64    `json:"frames"`
	Bytes     uint64    `json:"bytes"`
	Errors    uint64    `json:"errors"`
	Streaming bool      `json:"streaming"`
	LastFrame time.Time `json:"last_frame,omitzero"`
}

type StatsData struct {
	Devices map[string]DeviceStats `json:"devices"`
}

type StatsResponse struct {
	Body StatsData
}
