package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DetectionPreset names a bundled threshold tuning. The two presets mirror
// the tunings observed with the cascade-only and the extended detector sets;
// neither is more "correct", they are just different field calibrations.
type DetectionPreset string

const (
	PresetBasic    DetectionPreset = "basic"
	PresetEnhanced DetectionPreset = "enhanced"
)

// AudioThresholds holds the alerting thresholds for the audio classifier
type AudioThresholds struct {
	Loud  float64 // RMS above this raises loud_noise
	Horn  float64 // horn-band spectral energy threshold
	Siren float64 // siren-band spectral energy threshold; <=0 disables siren detection
}

// FrequencyBand is an inclusive spectral range in Hz
type FrequencyBand struct {
	Low  float64
	High float64
}

type Config struct {
	// Application
	Version     string
	Environment string
	MonitorID   string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// NATS (for alert fan-out)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string

	// Cameras
	FrontCameraURL  string // device index ("0") or stream URL
	RearCameraURL   string
	FrontGoProIP    string // empty disables GoPro control for that position
	RearGoProIP     string
	GoProResolution string
	GoProFPS        int
	GoProFOV        string
	ControlTimeout  time.Duration

	// Audio capture
	AudioEnabled  bool
	SampleRate    int
	AudioChunkLen time.Duration

	// Detector backends
	Preset           DetectionPreset
	CascadeModelPath string
	YOLOWeightsPath  string
	YOLOConfigPath   string

	// Classification thresholds
	VehicleSizeBreakpoints [3]float64 // low/medium, medium/high, high/critical
	MotionRatioThreshold   float64
	AudioThresholds        AudioThresholds
	HornBand               FrequencyBand
	SirenBand              FrequencyBand

	// Pipeline
	FrameQueueCapacity int // per-position display channel
	AlertChannelSize   int
	AlertHistoryCap    int
	PollInterval       time.Duration

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		MonitorID:   getEnv("MONITOR_ID", "cyclesafe-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1),
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "cyclesafe.alerts"),

		// Cameras
		FrontCameraURL:  getEnv("FRONT_CAMERA_URL", "0"),
		RearCameraURL:   getEnv("REAR_CAMERA_URL", "1"),
		FrontGoProIP:    getEnv("FRONT_GOPRO_IP", ""),
		RearGoProIP:     getEnv("REAR_GOPRO_IP", ""),
		GoProResolution: getEnv("GOPRO_RESOLUTION", "1080p"),
		GoProFPS:        getEnvInt("GOPRO_FPS", 30),
		GoProFOV:        getEnv("GOPRO_FOV", "linear"),
		ControlTimeout:  getEnvDuration("GOPRO_CONTROL_TIMEOUT", 5*time.Second),

		// Audio
		AudioEnabled:  getEnvBool("AUDIO_ENABLED", true),
		SampleRate:    getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		AudioChunkLen: getEnvDuration("AUDIO_CHUNK_LEN", 1500*time.Millisecond),

		// Detector backends
		Preset:           DetectionPreset(getEnv("DETECTION_PRESET", string(PresetEnhanced))),
		CascadeModelPath: getEnv("CASCADE_MODEL_PATH", "models/haarcascade_car.xml"),
		YOLOWeightsPath:  getEnv("YOLO_WEIGHTS_PATH", "models/yolov3-tiny.weights"),
		YOLOConfigPath:   getEnv("YOLO_CONFIG_PATH", "models/yolov3-tiny.cfg"),

		// Pipeline
		FrameQueueCapacity: getEnvInt("FRAME_QUEUE_CAPACITY", 10),
		AlertChannelSize:   getEnvInt("ALERT_CHANNEL_SIZE", 64),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 100*time.Millisecond),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	cfg.applyPreset()

	// Individual threshold overrides take precedence over the preset
	cfg.MotionRatioThreshold = getEnvFloat("MOTION_RATIO_THRESHOLD", cfg.MotionRatioThreshold)
	cfg.AudioThresholds.Loud = getEnvFloat("AUDIO_LOUD_THRESHOLD", cfg.AudioThresholds.Loud)
	cfg.AudioThresholds.Horn = getEnvFloat("AUDIO_HORN_THRESHOLD", cfg.AudioThresholds.Horn)
	cfg.AudioThresholds.Siren = getEnvFloat("AUDIO_SIREN_THRESHOLD", cfg.AudioThresholds.Siren)
	cfg.AlertHistoryCap = getEnvInt("ALERT_HISTORY_CAP", cfg.AlertHistoryCap)
	if bp, ok := parseBreakpoints(os.Getenv("VEHICLE_SIZE_BREAKPOINTS")); ok {
		cfg.VehicleSizeBreakpoints = bp
	}

	return cfg
}

// applyPreset fills the threshold tables for the selected preset. Unknown
// preset names fall back to enhanced.
func (c *Config) applyPreset() {
	switch c.Preset {
	case PresetBasic:
		c.VehicleSizeBreakpoints = [3]float64{0.15, 0.30, 0.45}
		c.AlertHistoryCap = 5
		c.AudioThresholds = AudioThresholds{Loud: 0.30, Horn: 1000, Siren: 0}
		c.HornBand = FrequencyBand{Low: 400, High: 600}
		c.SirenBand = FrequencyBand{Low: 800, High: 1500}
	default:
		if c.Preset != PresetEnhanced {
			log.Warn().Str("preset", string(c.Preset)).Msg("Unknown detection preset, using enhanced")
			c.Preset = PresetEnhanced
		}
		c.VehicleSizeBreakpoints = [3]float64{0.10, 0.20, 0.35}
		c.AlertHistoryCap = 3
		c.AudioThresholds = AudioThresholds{Loud: 0.25, Horn: 800, Siren: 1000}
		c.HornBand = FrequencyBand{Low: 300, High: 700}
		c.SirenBand = FrequencyBand{Low: 800, High: 1500}
	}
	c.MotionRatioThreshold = 0.05
}

// parseBreakpoints parses "0.10,0.20,0.35" into a breakpoint table
func parseBreakpoints(value string) ([3]float64, bool) {
	var bp [3]float64
	if value == "" {
		return bp, false
	}
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return bp, false
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bp, false
		}
		bp[i] = f
	}
	return bp, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
