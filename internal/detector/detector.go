// Package detector holds the pluggable vision backends. The pipeline only
// sees the Detector interface; whether detections come from a YOLO network,
// a Haar cascade or nothing at all is a construction-time choice.
package detector

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// Backend identifies which detection backend is in use
type Backend string

const (
	BackendNeural  Backend = "neural"
	BackendCascade Backend = "cascade"
	BackendNone    Backend = "none"
)

// Detector produces raw detections from a camera frame
type Detector interface {
	Detect(ctx context.Context, frame *models.Frame) ([]models.RawDetection, error)
	Close() error
}

// MotionEstimator reports the foreground-pixel ratio of a frame against a
// learned background model.
type MotionEstimator interface {
	Ratio(frame *models.Frame) (float64, error)
	Close() error
}

// NewVehicleDetector selects the best available backend. The neural backend
// is preferred; when its model artifacts are missing the cascade backend is
// used instead, reported as a degraded-status event rather than an error.
// Only when no backend can be constructed does detection become a no-op, so
// a bad model directory never prevents pipeline startup.
func NewVehicleDetector(cfg *config.Config) (Detector, Backend) {
	if det, err := NewNeuralDetector(cfg.YOLOWeightsPath, cfg.YOLOConfigPath); err == nil {
		log.Info().Str("backend", string(BackendNeural)).Msg("Vehicle detector ready")
		return det, BackendNeural
	} else {
		log.Warn().Err(err).Msg("Neural backend unavailable, falling back to cascade (degraded)")
	}

	if det, err := NewCascadeDetector(cfg.CascadeModelPath); err == nil {
		log.Info().Str("backend", string(BackendCascade)).Msg("Vehicle detector ready")
		return det, BackendCascade
	} else {
		log.Warn().Err(err).Msg("Cascade backend unavailable, vehicle detection disabled")
	}

	return noopDetector{}, BackendNone
}

type noopDetector struct{}

func (noopDetector) Detect(context.Context, *models.Frame) ([]models.RawDetection, error) {
	return nil, nil
}

func (noopDetector) Close() error { return nil }
