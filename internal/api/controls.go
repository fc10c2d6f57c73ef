package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcap/internal/api/models"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// ControlInput selects one control on a device.
type ControlInput struct {
	DevicePathInput
	Control string `path:"control" example:"brightness" doc:"Control name"`
}

// SetControlInput carries the new value for a control.
type SetControlInput struct {
	ControlInput
	Body struct {
		Value int32 `json:"value" example:"128" doc:"New control value"`
	}
}

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-controls",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/controls",
		Summary:     "Controls",
		Description: "List the camera controls the device supports, with current values",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *DevicePathInput) (*models.ControlsResponse, error) {
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		cam := sess.Camera()
		infos, err := cam.Controls()
		if err != nil {
			return nil, captureError("Failed to query controls", err)
		}

		data := models.ControlsData{Controls: make([]models.ControlInfo, 0, len(infos))}
		for _, c := range infos {
			info := models.ControlInfo{
				Name:     c.ID.String(),
				Label:    c.Name,
				Type:     c.Type.String(),
				Min:      c.Min,
				Max:      c.Max,
				Step:     c.Step,
				Default:  c.Default,
				ReadOnly: c.ReadOnly,
				Inactive: c.Inactive,
			}
			for _, item := range c.Menu {
				info.Menu = append(info.Menu, models.MenuItem{Name: item.Name, Value: item.Value})
			}
			// Buttons are write-only.
			if c.Type != v4l2.ControlTypeButton {
				if v, err := cam.ControlValue(c.ID); err == nil {
					info.Value = &v
				}
			}
			data.Controls = append(data.Controls, info)
		}
		return &models.ControlsResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-control",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/controls/{control}",
		Summary:     "Get Control",
		Description: "Read the current value of a camera control",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *ControlInput) (*models.ControlValueResponse, error) {
		id, err := v4l2.ParseControl(input.Control)
		if err != nil {
			return nil, huma.Error404NotFound("Unknown control", err)
		}
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		v, err := sess.Camera().ControlValue(id)
		if err != nil {
			return nil, captureError("Failed to read control", err)
		}
		return &models.ControlValueResponse{Body: models.ControlValueData{Name: id.String(), Value: v}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-control",
		Method:      http.MethodPut,
		Path:        "/api/devices/{device_id}/controls/{control}",
		Summary:     "Set Control",
		Description: "Set a camera control. The value is not persisted; use profiles for that.",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 500},
	}, func(ctx context.Context, input *SetControlInput) (*models.ControlValueResponse, error) {
		id, err := v4l2.ParseControl(input.Control)
		if err != nil {
			return nil, huma.Error404NotFound("Unknown control", err)
		}
		sess, err := s.session(ctx, input.DeviceID)
		if err != nil {
			return nil, err
		}

		cam := sess.Camera()
		if err := cam.SetControlValue(id, input.Body.Value); err != nil {
			return nil, captureError("Failed to set control", err)
		}
		s.logger.Info("Control updated", "device", sess.Device(), "control", id.String(), "value", input.Body.Value)

		// Drivers clamp and round; report what stuck.
		v, err := cam.ControlValue(id)
		if err != nil {
			v = input.Body.Value
		}
		return &models.ControlValueResponse{Body: models.ControlValueData{Name: id.String(), Value: v}}, nil
	})
}
