package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcap/internal/api/models"
	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// ProfileInput names a profile by its device key.
type ProfileInput struct {
	DeviceID string `path:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier or /dev node name"`
}

// SetProfileInput replaces the profile for a device.
type SetProfileInput struct {
	ProfileInput
	Apply bool `query:"apply" default:"true" doc:"Apply to an open capture session right away"`
	Body  struct {
		PixelFormat string           `json:"pixel_format,omitempty" example:"YUYV" doc:"FOURCC"`
		Width       uint32           `json:"width,omitempty" example:"1280"`
		Height      uint32           `json:"height,omitempty" example:"720"`
		FPS         uint32           `json:"fps,omitempty" example:"30"`
		Controls    map[string]int32 `json:"controls,omitempty" doc:"Control name to value"`
	}
}

func profileData(p config.Profile) models.ProfileData {
	return models.ProfileData{
		Device:      p.Device,
		PixelFormat: p.PixelFormat,
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		Controls:    p.Controls,
		UpdatedAt:   p.UpdatedAt,
	}
}

// validateProfile rejects names the capture layer could never apply.
func validateProfile(p config.Profile) error {
	var errs []error
	if p.PixelFormat != "" {
		if _, err := pixfmt.Parse(p.PixelFormat); err != nil {
			errs = append(errs, &huma.ErrorDetail{Location: "body.pixel_format", Message: err.Error(), Value: p.PixelFormat})
		}
	}
	if (p.Width == 0) != (p.Height == 0) {
		errs = append(errs, &huma.ErrorDetail{Location: "body.height", Message: "width and height must be set together"})
	}
	for name, value := range p.Controls {
		if _, err := v4l2.ParseControl(name); err != nil {
			errs = append(errs, &huma.ErrorDetail{Location: "body.controls." + name, Message: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return huma.Error422UnprocessableEntity("Invalid profile", errs...)
	}
	return nil
}

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-profiles",
		Method:      http.MethodGet,
		Path:        "/api/profiles",
		Summary:     "List Profiles",
		Description: "List saved camera profiles",
		Tags:        []string{"profiles"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.ProfilesResponse, error) {
		all := s.profiles.All()
		data := models.ProfilesData{Profiles: make([]models.ProfileData, len(all)), Count: len(all)}
		for i, p := range all {
			data.Profiles[i] = profileData(p)
		}
		return &models.ProfilesResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/api/profiles/{device_id}",
		Summary:     "Get Profile",
		Description: "Get the saved profile for a device",
		Tags:        []string{"profiles"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *ProfileInput) (*models.ProfileResponse, error) {
		p, ok := s.profiles.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("Profile not found", config.ErrProfileNotFound)
		}
		return &models.ProfileResponse{Body: profileData(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-profile",
		Method:      http.MethodPut,
		Path:        "/api/profiles/{device_id}",
		Summary:     "Set Profile",
		Description: "Create or replace the profile for a device and save the profiles file",
		Tags:        []string{"profiles"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500},
	}, func(ctx context.Context, input *SetProfileInput) (*models.ProfileResponse, error) {
		p := config.Profile{
			Device:      input.DeviceID,
			PixelFormat: input.Body.PixelFormat,
			Width:       input.Body.Width,
			Height:      input.Body.Height,
			FPS:         input.Body.FPS,
			Controls:    input.Body.Controls,
		}
		if err := validateProfile(p); err != nil {
			return nil, err
		}

		if err := s.profiles.Set(p); err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid profile", err)
		}
		if err := s.profiles.Save(); err != nil {
			return nil, huma.Error500InternalServerError("Failed to save profiles", err)
		}
		saved, _ := s.profiles.Get(p.Device)
		s.logger.Info("Profile saved", "device", p.Device)

		if input.Apply {
			s.applyProfile(ctx, saved)
		}
		return &models.ProfileResponse{Body: profileData(saved)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-profile",
		Method:        http.MethodDelete,
		Path:          "/api/profiles/{device_id}",
		Summary:       "Delete Profile",
		Description:   "Delete the profile for a device. Open sessions keep their current settings.",
		Tags:          []string{"profiles"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
	}, func(ctx context.Context, input *ProfileInput) (*struct{}, error) {
		if err := s.profiles.Remove(input.DeviceID); err != nil {
			if errors.Is(err, config.ErrProfileNotFound) {
				return nil, huma.Error404NotFound("Profile not found", err)
			}
			return nil, huma.Error500InternalServerError("Failed to delete profile", err)
		}
		if err := s.profiles.Save(); err != nil {
			return nil, huma.Error500InternalServerError("Failed to save profiles", err)
		}
		s.logger.Info("Profile deleted", "device", input.DeviceID)
		return nil, nil
	})
}

// applyProfile pushes p to the device's session if one is open. Failures are
// reported on the event bus by the session, so they only get logged here.
func (s *Server) applyProfile(ctx context.Context, p config.Profile) {
	path, err := s.devicePath(p.Device)
	if err != nil {
		return
	}
	sess, ok := s.manager.Lookup(path)
	if !ok {
		return
	}
	if _, err := sess.ApplyProfile(ctx, p); err != nil {
		s.logger.Warn("Failed to apply profile", "device", path, "error", err)
	}
}
