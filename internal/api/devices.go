package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcap/internal/api/models"
	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/pkg/decode"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// DevicePathInput selects a device by stable ID or node name ("video0").
type DevicePathInput struct {
	DeviceID string `path:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier or node name"`
}

// DeviceFrameratesInput selects a format and size; empty fields use the
// current format.
type DeviceFrameratesInput struct {
	DevicePathInput
	PixelFormat string `query:"pixel_format" example:"YUYV" doc:"FOURCC"`
	Width       uint32 `query:"width" example:"1280"`
	Height      uint32 `query:"height" example:"720"`
}

// devicePath resolves the device_id path parameter to a /dev node.
func (s *Server) devicePath(id string) (string, error) {
	if s.detector != nil {
		if dev, ok := s.detector.Lookup(id); ok {
			return dev.DevicePath, nil
		}
	}
	if strings.HasPrefix(id, "video") {
		return "/dev/" + id, nil
	}
	path, err := devices.ResolveDevicePath(id)
	if err != nil {
		return "", huma.Error404NotFound("Device not found", err)
	}
	return path, nil
}

// session returns the capture session for a device_id, opening the camera
// on first use.
func (s *Server) session(ctx context.Context, id string) (*capture.Session, error) {
	path, err := s.devicePath(id)
	if err != nil {
		return nil, err
	}
	sess, err := s.manager.Session(ctx, path)
	if err != nil {
		return nil, captureError("Failed to open device", err)
	}
	return sess, nil
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture devices with their capture session state",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*models.DeviceResponse, error) {
		list := s.detector.Devices()
		data := models.DeviceData{Devices: make([]models.DeviceInfo, 0, len(list)), Count: len(list)}
		for _, dev := range list {
			info := models.DeviceInfo{
				DevicePath: dev.DevicePath,
				DeviceName: dev.DeviceName,
				DeviceID:   dev.DeviceID,
				Driver:     dev.Driver,
				Type:       dev.Type.String(),
				Ready:      dev.Ready,
				State:      v4l2.StateClosed.String(),
			}
			if sess, ok := s.manager.Lookup(dev.DevicePath); ok {
				info.State = sess.State().String()
				info.Session = sess.ID()
			}
			data.Devices = append(data.Devices, info)
		}
		return &models.DeviceResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-formats",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/formats",
		Summary:     "Formats",
		Description: "List supported pixel formats and frame sizes for a device",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500},
	}, func(ctx context.Context, input *DevicePathInput) (*models.FormatsResponse, error) {
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		formats, err := sess.Camera().Formats()
		if err != nil {
			return nil, captureError("Failed to get device formats", err)
		}

		data := models.FormatsData{DevicePath: sess.Device(), Formats: make([]models.FormatInfo, 0, len(formats))}
		for _, f := range formats {
			info := models.FormatInfo{
				PixelFormat: f.PixelFormat.String(),
				Description: f.FormatName,
				Compressed:  f.Compressed,
				Emulated:    f.Emulated,
				Decodable:   decode.Supports(f.PixelFormat),
				Sizes:       make([]models.Size, len(f.Sizes)),
			}
			for i, size := range f.Sizes {
				info.Sizes[i] = models.Size{Width: size.Width, Height: size.Height}
			}
			data.Formats = append(data.Formats, info)
		}
		return &models.FormatsResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-framerates",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/framerates",
		Summary:     "Framerates",
		Description: "List frame rates for a format and size, the current format by default",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 500},
	}, func(ctx context.Context, input *DeviceFrameratesInput) (*models.FrameratesResponse, error) {
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		f := sess.Format()
		if input.PixelFormat != "" {
			code, err := pixfmt.Parse(input.PixelFormat)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid pixel format", err)
			}
			f.PixelFormat = code
		}
		if input.Width != 0 {
			f.Width = input.Width
		}
		if input.Height != 0 {
			f.Height = input.Height
		}

		rates, err := sess.Camera().FrameRates(f)
		if err != nil {
			return nil, captureError("Failed to get device framerates", err)
		}
		data := models.FrameratesData{Framerates: make([]models.Framerate, len(rates))}
		for i, r := range rates {
			data.Framerates[i] = framerate(r)
		}
		return &models.FrameratesResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-format",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/format",
		Summary:     "Current Format",
		Description: "Get the negotiated capture format and frame rate",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *DevicePathInput) (*models.CurrentFormatResponse, error) {
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		f, err := sess.Camera().Format()
		if err != nil {
			return nil, captureError("Failed to get format", err)
		}
		data := models.CurrentFormatData{
			DevicePath:   sess.Device(),
			PixelFormat:  f.PixelFormat.String(),
			Width:        f.Width,
			Height:       f.Height,
			BytesPerLine: f.BytesPerLine,
			SizeImage:    f.SizeImage,
		}
		d := v4l2.DecoderFor(f)
		data.Encoding = d.Encoding().String()
		data.Quantization = d.Quantization().String()
		// Not every driver implements G_PARM.
		if fr, err := sess.Camera().FrameRate(); err == nil && fr.Numerator != 0 {
			rate := framerate(fr)
			data.Framerate = &rate
		}
		return &models.CurrentFormatResponse{Body: data}, nil
	})
}

func framerate(fr v4l2.Framerate) models.Framerate {
	return models.Framerate{Numerator: fr.Numerator, Denominator: fr.Denominator, FPS: fr.FPS()}
}
