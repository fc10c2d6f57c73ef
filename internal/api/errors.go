package api

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/pkg/decode"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// captureError maps capture, driver and decode errors to HTTP statuses.
func captureError(msg string, err error) error {
	switch {
	case errors.Is(err, v4l2.ErrDeviceNotFound), errors.Is(err, os.ErrNotExist),
		errors.Is(err, config.ErrProfileNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, v4l2.ErrUnknownControl):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, v4l2.ErrInvalidState), errors.Is(err, syscall.EBUSY):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, decode.ErrUnsupportedFormat), errors.Is(err, v4l2.ErrNoFormat),
		errors.Is(err, capture.ErrNotDecoded):
		return huma.Error415UnsupportedMediaType(msg, err)
	case errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ERANGE), errors.Is(err, syscall.EACCES):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, v4l2.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(msg, err)
	case errors.Is(err, capture.ErrManagerClosed):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
