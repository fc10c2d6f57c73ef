package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcap/internal/capture"
)

// SnapshotInput selects the device and output encoding of a snapshot.
type SnapshotInput struct {
	DevicePathInput
	Format  string `query:"format" default:"png" enum:"png,jpeg,jpg,pgm,ppm,raw" doc:"Output encoding"`
	Quality int    `query:"quality" minimum:"0" maximum:"100" doc:"JPEG quality, 0 for the default"`
}

// SnapshotOutput is one encoded frame.
type SnapshotOutput struct {
	ContentType string `header:"Content-Type"`
	Sequence    string `header:"X-Frame-Sequence"`
	Size        string `header:"X-Frame-Size"`
	PixelFormat string `header:"X-Pixel-Format"`
	Body        []byte
}

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "device-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/snapshot",
		Summary:     "Snapshot",
		Description: "Grab one frame, decode it to RGB and return it as an image. format=raw returns the driver's bytes undecoded.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 409, 415, 500, 504},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Encoded frame",
				Content: map[string]*huma.MediaType{
					"image/png":                {},
					"image/jpeg":               {},
					"image/x-portable-graymap": {},
					"image/x-portable-pixmap":  {},
					"application/octet-stream": {},
				},
			},
		},
	}, func(ctx context.Context, input *SnapshotInput) (*SnapshotOutput, error) {
		format, err := capture.ParseImageFormat(input.Format)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid snapshot format", err)
		}
		path, err := s.devicePath(input.DeviceID)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(ctx, s.options.SnapshotTimeout)
		defer cancel()

		data, frame, err := s.manager.Snapshot(ctx, path, format, input.Quality)
		if err != nil {
			return nil, captureError("Failed to capture snapshot", err)
		}

		return &SnapshotOutput{
			ContentType: format.ContentType(),
			Sequence:    strconv.FormatUint(uint64(frame.Sequence), 10),
			Size:        strconv.FormatUint(uint64(frame.Width), 10) + "x" + strconv.FormatUint(uint64(frame.Height), 10),
			PixelFormat: frame.Format.String(),
			Body:        data,
		}, nil
	})
}
