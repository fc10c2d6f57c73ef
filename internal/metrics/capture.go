// Package metrics provides Prometheus metrics for camera capture and frame
// decoding.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vcap"

var (
	framesGrabbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames grabbed from the device",
	}, []string{"device"})

	bytesGrabbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "bytes_total",
		Help:      "Raw bytes grabbed from the device",
	}, []string{"device"})

	grabErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "errors_total",
		Help:      "Failed grabs by operation",
	}, []string{"device", "op"})

	grabDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "grab_duration_seconds",
		Help:      "Time spent waiting for and copying a frame",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"device"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "streaming",
		Help:      "1 while the device is streaming",
	}, []string{"device"})

	decodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "decode",
		Name:      "duration_seconds",
		Help:      "Raw to RGB conversion time by pixel format",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"format"})

	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decode",
		Name:      "errors_total",
		Help:      "Decode failures by pixel format and kind",
	}, []string{"format", "kind"})

	// Local cache for the stats endpoint.
	statsCache   = make(map[string]*DeviceStats)
	statsCacheMu sync.RWMutex
)

// DeviceStats holds running capture totals for one device.
type DeviceStats struct {
	Frames    uint64    `json:"frames"`
	Bytes     uint64    `json:"bytes"`
	Errors    uint64    `json:"errors"`
	Streaming bool      `json:"streaming"`
	LastFrame time.Time `json:"last_frame,omitzero"`
}

// RecordGrab counts a successful grab of n bytes that took d.
func RecordGrab(device string, n int, d time.Duration) {
	framesGrabbed.WithLabelValues(device).Inc()
	bytesGrabbed.WithLabelValues(device).Add(float64(n))
	grabDuration.WithLabelValues(device).Observe(d.Seconds())
	updateStats(device, func(s *DeviceStats) {
		s.Frames++
		s.Bytes += uint64(n)
		s.LastFrame = time.Now()
	})
}

// RecordGrabError counts a failed capture operation ("open", "start", "grab", ...).
func RecordGrabError(device, op string) {
	grabErrors.WithLabelValues(device, op).Inc()
	updateStats(device, func(s *DeviceStats) { s.Errors++ })
}

// SetStreaming records whether a device is streaming.
func SetStreaming(device string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	streaming.WithLabelValues(device).Set(v)
	updateStats(device, func(s *DeviceStats) { s.Streaming = on })
}

// RecordDecode observes a successful decode of the given pixel format.
func RecordDecode(format string, d time.Duration) {
	decodeDuration.WithLabelValues(format).Observe(d.Seconds())
}

// RecordDecodeError counts a decode failure; kind is a short error class
// such as "truncated" or "unsupported".
func RecordDecodeError(format, kind string) {
	decodeErrors.WithLabelValues(format, kind).Inc()
}

// DeleteDevice removes all per-device series, e.g. after hot-unplug.
func DeleteDevice(device string) {
	framesGrabbed.DeleteLabelValues(device)
	bytesGrabbed.DeleteLabelValues(device)
	grabDuration.DeleteLabelValues(device)
	streaming.DeleteLabelValues(device)
	grabErrors.DeletePartialMatch(prometheus.Labels{"device": device})

	statsCacheMu.Lock()
	delete(statsCache, device)
	statsCacheMu.Unlock()
}

// Stats returns a copy of a device's totals, or nil if none were recorded.
func Stats(device string) *DeviceStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	if s, ok := statsCache[device]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// AllStats returns totals for every device seen.
func AllStats() map[string]*DeviceStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	result := make(map[string]*DeviceStats, len(statsCache))
	for dev, s := range statsCache {
		dup := *s
		result[dev] = &dup
	}
	return result
}

func updateStats(device string, update func(*DeviceStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()
	s, ok := statsCache[device]
	if !ok {
		s = &DeviceStats{}
		statsCache[device] = s
	}
	update(s)
}
