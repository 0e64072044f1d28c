package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, PresetEnhanced, cfg.Preset)
	assert.Equal(t, [3]float64{0.10, 0.20, 0.35}, cfg.VehicleSizeBreakpoints)
	assert.Equal(t, 3, cfg.AlertHistoryCap)
	assert.Equal(t, 0.25, cfg.AudioThresholds.Loud)
	assert.Equal(t, 800.0, cfg.AudioThresholds.Horn)
	assert.Equal(t, 1000.0, cfg.AudioThresholds.Siren)
	assert.Equal(t, FrequencyBand{Low: 300, High: 700}, cfg.HornBand)
	assert.Equal(t, 0.05, cfg.MotionRatioThreshold)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 1500*time.Millisecond, cfg.AudioChunkLen)
	assert.Equal(t, 10, cfg.FrameQueueCapacity)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
}

func TestLoadBasicPreset(t *testing.T) {
	t.Setenv("DETECTION_PRESET", "basic")

	cfg := Load()

	assert.Equal(t, PresetBasic, cfg.Preset)
	assert.Equal(t, [3]float64{0.15, 0.30, 0.45}, cfg.VehicleSizeBreakpoints)
	assert.Equal(t, 5, cfg.AlertHistoryCap)
	assert.Equal(t, 0.30, cfg.AudioThresholds.Loud)
	assert.Equal(t, 1000.0, cfg.AudioThresholds.Horn)
	assert.Zero(t, cfg.AudioThresholds.Siren)
	assert.Equal(t, FrequencyBand{Low: 400, High: 600}, cfg.HornBand)
}

func TestUnknownPresetFallsBackToEnhanced(t *testing.T) {
	t.Setenv("DETECTION_PRESET", "turbo")

	cfg := Load()

	assert.Equal(t, PresetEnhanced, cfg.Preset)
	assert.Equal(t, [3]float64{0.10, 0.20, 0.35}, cfg.VehicleSizeBreakpoints)
}

func TestThresholdOverridesBeatPreset(t *testing.T) {
	t.Setenv("DETECTION_PRESET", "enhanced")
	t.Setenv("AUDIO_HORN_THRESHOLD", "950")
	t.Setenv("ALERT_HISTORY_CAP", "8")
	t.Setenv("VEHICLE_SIZE_BREAKPOINTS", "0.12, 0.24, 0.40")

	cfg := Load()

	assert.Equal(t, 950.0, cfg.AudioThresholds.Horn)
	assert.Equal(t, 8, cfg.AlertHistoryCap)
	assert.Equal(t, [3]float64{0.12, 0.24, 0.40}, cfg.VehicleSizeBreakpoints)
}

func TestParseBreakpoints(t *testing.T) {
	bp, ok := parseBreakpoints("0.1,0.2,0.3")
	assert.True(t, ok)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, bp)

	_, ok = parseBreakpoints("")
	assert.False(t, ok)

	_, ok = parseBreakpoints("0.1,0.2")
	assert.False(t, ok)

	_, ok = parseBreakpoints("a,b,c")
	assert.False(t, ok)
}
