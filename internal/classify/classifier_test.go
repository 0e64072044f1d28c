package classify

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Preset:                 config.PresetEnhanced,
		VehicleSizeBreakpoints: [3]float64{0.10, 0.20, 0.35},
		MotionRatioThreshold:   0.05,
		AudioThresholds:        config.AudioThresholds{Loud: 0.25, Horn: 800, Siren: 1000},
		HornBand:               config.FrequencyBand{Low: 300, High: 700},
		SirenBand:              config.FrequencyBand{Low: 800, High: 1500},
		SampleRate:             44100,
	}
}

func TestLevelForSizeBreakpoints(t *testing.T) {
	c := New(testConfig())

	assert.Equal(t, models.HazardLevelLow, c.LevelForSize(0.05))
	assert.Equal(t, models.HazardLevelMedium, c.LevelForSize(0.12))
	assert.Equal(t, models.HazardLevelHigh, c.LevelForSize(0.25))
	assert.Equal(t, models.HazardLevelCritical, c.LevelForSize(0.40))

	// Boundaries belong to the higher level
	assert.Equal(t, models.HazardLevelMedium, c.LevelForSize(0.10))
	assert.Equal(t, models.HazardLevelHigh, c.LevelForSize(0.20))
	assert.Equal(t, models.HazardLevelCritical, c.LevelForSize(0.35))
}

func TestLevelForSizeIsMonotonic(t *testing.T) {
	c := New(testConfig())

	previous := models.HazardLevelNone
	for size := 0.0; size <= 1.0; size += 0.001 {
		level := c.LevelForSize(size)
		assert.GreaterOrEqual(t, level, previous, "size %.3f", size)
		previous = level
	}
}

func TestClassifyDetectionRelativeSize(t *testing.T) {
	c := New(testConfig())

	// 200x200 box in a 1000x100 frame is 40% of frame area
	det := models.RawDetection{
		Label: "car",
		Box:   models.BoundingBox{X: 10, Y: 10, Width: 200, Height: 200},
	}
	obs, ok := c.ClassifyDetection(det, 1000, 100)
	require.True(t, ok)
	assert.Equal(t, models.HazardTypeVehicle, obs.Type)
	assert.Equal(t, models.HazardLevelCritical, obs.Level)
	assert.InDelta(t, 0.40, obs.Score, 1e-9)
	require.NotNil(t, obs.Region)
	assert.Equal(t, det.Box, *obs.Region)

	// 12% of frame area is medium
	det.Box = models.BoundingBox{X: 0, Y: 0, Width: 120, Height: 100}
	obs, ok = c.ClassifyDetection(det, 1000, 100)
	require.True(t, ok)
	assert.Equal(t, models.HazardLevelMedium, obs.Level)
}

func TestClassifyDetectionRejectsDegenerateFrames(t *testing.T) {
	c := New(testConfig())

	det := models.RawDetection{Box: models.BoundingBox{Width: 10, Height: 10}}
	_, ok := c.ClassifyDetection(det, 0, 0)
	assert.False(t, ok)
}

func TestClassifyMotion(t *testing.T) {
	c := New(testConfig())

	_, ok := c.ClassifyMotion(0.04)
	assert.False(t, ok)

	obs, ok := c.ClassifyMotion(0.08)
	require.True(t, ok)
	assert.Equal(t, models.HazardTypeMotion, obs.Type)
	assert.Equal(t, models.HazardLevelLow, obs.Level)
}

// tone builds a sine chunk snapped to the nearest FFT bin, with a
// power-of-two length so the spectrum has no leakage into neighbor bands.
func tone(freq, amplitude float64, sampleRate int) *models.AudioChunk {
	const n = 32768
	binWidth := float64(sampleRate) / float64(n)
	freq = math.Round(freq/binWidth) * binWidth

	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return &models.AudioChunk{Samples: samples, SampleRate: sampleRate, Timestamp: time.Now()}
}

func TestClassifyAudioHornTone(t *testing.T) {
	c := New(testConfig())

	chunk := tone(500, 0.5, 44100)
	m := c.Measure(chunk)
	assert.Greater(t, m.HornEnergy, 800.0)

	observations := c.ClassifyAudio(m)

	var horn *models.HazardObservation
	for i := range observations {
		if observations[i].Type == models.HazardTypeHorn {
			horn = &observations[i]
		}
		assert.NotEqual(t, models.HazardTypeSiren, observations[i].Type)
	}
	require.NotNil(t, horn, "expected a horn observation for a 500 Hz tone")
	assert.Equal(t, models.HazardLevelCritical, horn.Level)
}

func TestClassifyAudioSirenTone(t *testing.T) {
	c := New(testConfig())

	chunk := tone(1200, 0.5, 44100)
	m := c.Measure(chunk)

	observations := c.ClassifyAudio(m)

	found := false
	for _, obs := range observations {
		if obs.Type == models.HazardTypeSiren {
			found = true
			assert.Equal(t, models.HazardLevelCritical, obs.Level)
		}
		assert.NotEqual(t, models.HazardTypeHorn, obs.Type)
	}
	assert.True(t, found, "expected a siren observation for a 1200 Hz tone")
}

func TestClassifyAudioSilence(t *testing.T) {
	c := New(testConfig())

	chunk := &models.AudioChunk{
		Samples:    make([]float64, 44100/2),
		SampleRate: 44100,
		Timestamp:  time.Now(),
	}
	m := c.Measure(chunk)
	assert.Zero(t, m.RMS)

	observations := c.ClassifyAudio(m)
	assert.Empty(t, observations)
}

func TestClassifyAudioLoudNoise(t *testing.T) {
	c := New(testConfig())

	// A loud 5 kHz tone sits outside both bands but trips the RMS threshold
	chunk := tone(5000, 0.6, 44100)
	m := c.Measure(chunk)
	assert.Greater(t, m.RMS, 0.25)

	observations := c.ClassifyAudio(m)

	found := false
	for _, obs := range observations {
		if obs.Type == models.HazardTypeLoudNoise {
			found = true
			assert.Equal(t, models.HazardLevelHigh, obs.Level)
		}
	}
	assert.True(t, found)
}

func TestSirenDetectionDisabledByZeroThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.AudioThresholds.Siren = 0
	c := New(cfg)

	chunk := tone(1200, 0.5, 44100)
	observations := c.ClassifyAudio(c.Measure(chunk))

	for _, obs := range observations {
		assert.NotEqual(t, models.HazardTypeSiren, obs.Type)
	}
}

func TestShouldAlert(t *testing.T) {
	assert.True(t, ShouldAlert(models.HazardObservation{Type: models.HazardTypeVehicle, Level: models.HazardLevelHigh}))
	assert.True(t, ShouldAlert(models.HazardObservation{Type: models.HazardTypeVehicle, Level: models.HazardLevelCritical}))
	assert.False(t, ShouldAlert(models.HazardObservation{Type: models.HazardTypeVehicle, Level: models.HazardLevelMedium}))
	assert.True(t, ShouldAlert(models.HazardObservation{Type: models.HazardTypeHorn, Level: models.HazardLevelCritical}))
	assert.False(t, ShouldAlert(models.HazardObservation{Type: models.HazardTypeMotion, Level: models.HazardLevelLow}))
}
