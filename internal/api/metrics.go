package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/vcap/internal/api/models"
	"github.com/smazurov/vcap/internal/metrics"
)

// StatsStreamInput sets the push interval of the stats stream.
type StatsStreamInput struct {
	Interval int `query:"interval" default:"1000" minimum:"100" maximum:"60000" doc:"Milliseconds between updates"`
}

func statsData() models.StatsData {
	all := metrics.AllStats()
	data := models.StatsData{Devices: make(map[string]models.DeviceStats, len(all))}
	for device, st := range all {
		data.Devices[device] = models.DeviceStats{
			Frames:    st.Frames,
			Bytes:     st.Bytes,
			Errors:    st.Errors,
			Streaming: st.Streaming,
			LastFrame: st.LastFrame,
		}
	}
	return data
}

// registerMetricsRoutes registers the capture statistics endpoints. The
// Prometheus exposition lives on /metrics outside the API.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Capture Statistics",
		Description: "Frame, byte and error totals per device",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{Body: statsData()}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "stats-stream",
		Method:      http.MethodGet,
		Path:        "/api/stats/stream",
		Summary:     "Statistics Server-Sent Events Stream",
		Description: "Periodic capture statistics snapshots",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stats": models.StatsData{},
	}, func(ctx context.Context, input *StatsStreamInput, send sse.Sender) {
		ticker := time.NewTicker(time.Duration(input.Interval) * time.Millisecond)
		defer ticker.Stop()

		if err := send.Data(statsData()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := send.Data(statsData()); err != nil {
					return
				}
			}
		}
	})
}
