// Package metrics provides Prometheus metrics for the supervised processes
// and the live-stream encoder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chesscast"

var (
	encoderFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoder frames per second",
	})

	encoderSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "speed",
		Help:      "Encoder processing speed multiplier",
	})

	encoderFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "frames",
		Help:      "Frames encoded by the current encoder process",
	})
)

// SetEncoderProgress records one progress report from the encoder.
func SetEncoderProgress(fps, speed float64, frames int64) {
	encoderFPS.Set(fps)
	encoderSpeed.Set(speed)
	encoderFrames.Set(float64(frames))
}

// ResetEncoder zeroes the encoder gauges, used when the encoder exits.
func ResetEncoder() {
	SetEncoderProgress(0, 0, 0)
}
