// Package classify turns raw detections and signal measurements into leveled
// hazard observations. Everything here is pure and deterministic; the
// thresholds come from the configuration tables so the cascade and neural
// backends can carry different tunings.
package classify

import (
	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/dsp"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// Classifier maps detections and measurements to hazard observations
type Classifier struct {
	breakpoints [3]float64
	motionRatio float64
	audio       config.AudioThresholds
	hornBand    config.FrequencyBand
	sirenBand   config.FrequencyBand
	sampleRate  int
}

// New creates a classifier from the loaded configuration
func New(cfg *config.Config) *Classifier {
	return &Classifier{
		breakpoints: cfg.VehicleSizeBreakpoints,
		motionRatio: cfg.MotionRatioThreshold,
		audio:       cfg.AudioThresholds,
		hornBand:    cfg.HornBand,
		sirenBand:   cfg.SirenBand,
		sampleRate:  cfg.SampleRate,
	}
}

// LevelForSize maps a relative bounding-box size to a hazard level using the
// configured breakpoints. The mapping is a monotonic step function.
func (c *Classifier) LevelForSize(relativeSize float64) models.HazardLevel {
	switch {
	case relativeSize >= c.breakpoints[2]:
		return models.HazardLevelCritical
	case relativeSize >= c.breakpoints[1]:
		return models.HazardLevelHigh
	case relativeSize >= c.breakpoints[0]:
		return models.HazardLevelMedium
	default:
		return models.HazardLevelLow
	}
}

// ClassifyDetection sizes one raw detection against the frame it came from.
// A zero frame area yields no observation.
func (c *Classifier) ClassifyDetection(det models.RawDetection, frameWidth, frameHeight int) (models.HazardObservation, bool) {
	frameArea := frameWidth * frameHeight
	if frameArea <= 0 || det.Box.Area() <= 0 {
		return models.HazardObservation{}, false
	}

	relativeSize := float64(det.Box.Area()) / float64(frameArea)
	box := det.Box
	return models.HazardObservation{
		Type:   models.HazardTypeVehicle,
		Level:  c.LevelForSize(relativeSize),
		Score:  relativeSize,
		Region: &box,
	}, true
}

// ClassifyMotion raises an informational motion observation when the
// foreground-pixel ratio crosses the configured threshold. Motion alone is
// never alert-worthy; it only annotates the frame.
func (c *Classifier) ClassifyMotion(ratio float64) (models.HazardObservation, bool) {
	if ratio <= c.motionRatio {
		return models.HazardObservation{}, false
	}
	return models.HazardObservation{
		Type:  models.HazardTypeMotion,
		Level: models.HazardLevelLow,
		Score: ratio,
	}, true
}

// Measure computes the audio features of one chunk: RMS loudness and the
// spectral energy in the horn and siren bands.
func (c *Classifier) Measure(chunk *models.AudioChunk) models.Measurement {
	sampleRate := chunk.SampleRate
	if sampleRate <= 0 {
		sampleRate = c.sampleRate
	}

	m := models.Measurement{RMS: dsp.RMS(chunk.Samples)}
	if len(chunk.Samples) == 0 {
		return m
	}

	spectrum := dsp.FFT(chunk.Samples)
	m.HornEnergy = dsp.BandEnergy(spectrum, sampleRate, c.hornBand.Low, c.hornBand.High)
	m.SirenEnergy = dsp.BandEnergy(spectrum, sampleRate, c.sirenBand.Low, c.sirenBand.High)
	return m
}

// ClassifyAudio maps an audio measurement to zero or more observations. A
// single chunk can raise loud_noise, horn and siren simultaneously; each
// becomes its own alert downstream.
func (c *Classifier) ClassifyAudio(m models.Measurement) []models.HazardObservation {
	var observations []models.HazardObservation

	if c.audio.Loud > 0 && m.RMS > c.audio.Loud {
		observations = append(observations, models.HazardObservation{
			Type:  models.HazardTypeLoudNoise,
			Level: models.HazardLevelHigh,
			Score: m.RMS,
		})
	}

	if c.audio.Horn > 0 && m.HornEnergy > c.audio.Horn {
		observations = append(observations, models.HazardObservation{
			Type:  models.HazardTypeHorn,
			Level: models.HazardLevelCritical,
			Score: m.HornEnergy,
		})
	}

	if c.audio.Siren > 0 && m.SirenEnergy > c.audio.Siren {
		observations = append(observations, models.HazardObservation{
			Type:  models.HazardTypeSiren,
			Level: models.HazardLevelCritical,
			Score: m.SirenEnergy,
		})
	}

	return observations
}

// AlertLevelFor returns the minimum level at which an observation of the
// given type becomes an alert. Motion never alerts on its own.
func AlertLevelFor(t models.HazardType) (models.HazardLevel, bool) {
	switch t {
	case models.HazardTypeVehicle:
		return models.HazardLevelHigh, true
	case models.HazardTypeHorn, models.HazardTypeSiren:
		return models.HazardLevelCritical, true
	case models.HazardTypeLoudNoise:
		return models.HazardLevelHigh, true
	default:
		return models.HazardLevelNone, false
	}
}

// ShouldAlert reports whether an observation crosses the alerting threshold
// for its type.
func ShouldAlert(obs models.HazardObservation) bool {
	min, ok := AlertLevelFor(obs.Type)
	if !ok {
		return false
	}
	return obs.Level >= min
}
