//go:build linux

package devices

import (
	"context"

	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/pkg/linuxav/hotplug"
)

const hotplugAdd = hotplug.ActionAdd

// watchHotplug forwards the action of every video4linux uevent until ctx
// is cancelled.
func watchHotplug(ctx context.Context) (<-chan string, error) {
	mon, err := hotplug.NewCameraMonitor()
	if err != nil {
		return nil, err
	}

	raw := make(chan hotplug.Event, 16)
	actions := make(chan string, 16)
	logger := logging.GetLogger("devices")

	go func() {
		defer func() { _ = mon.Close() }()
		if err := mon.Run(ctx, raw); err != nil && ctx.Err() == nil {
			logger.Error("Hotplug monitor error", "error", err)
		}
	}()

	go func() {
		defer close(actions)
		for ev := range raw {
			if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
				continue
			}
			logger.Debug("Hotplug event", "action", ev.Action, "node", ev.Node(), "kobj", ev.KObj)
			select {
			case actions <- ev.Action:
			case <-ctx.Done():
			}
		}
	}()

	return actions, nil
}
