package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/samyakrajbayar/cyclesafe/internal/api"
	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/detector"
	"github.com/samyakrajbayar/cyclesafe/internal/logging"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
	"github.com/samyakrajbayar/cyclesafe/internal/pipeline"
	"github.com/samyakrajbayar/cyclesafe/internal/sensor"
	"github.com/samyakrajbayar/cyclesafe/internal/services/display"
	"github.com/samyakrajbayar/cyclesafe/internal/services/messaging"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs into the embedded Logdy web viewer
	if cfg.LogdyEnabled {
		if w, url, err := logging.StartLogdy(cfg); err == nil {
			console := zerolog.ConsoleWriter{Out: os.Stderr}
			log.Logger = log.Output(io.MultiWriter(console, w))
			log.Info().Str("url", url).Msg("Log viewer started")
		} else {
			log.Warn().Err(err).Msg("Logdy startup failed, console logging only")
		}
	}

	log.Info().
		Str("monitor_id", cfg.MonitorID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Str("preset", string(cfg.Preset)).
		Int("port", cfg.Port).
		Bool("audio_enabled", cfg.AudioEnabled).
		Msg("Starting CycleSafe monitor")

	deps := buildDeps(cfg)
	sink := display.NewSink()
	deps.Display = sink

	if cfg.NatsEnabled {
		if svc, err := messaging.NewService(cfg); err == nil {
			deps.Notifier = svc
			defer func() {
				_ = svc.Shutdown(context.Background())
			}()
		} else {
			log.Warn().Err(err).Msg("NATS unavailable, alert fan-out disabled")
		}
	}

	supervisor := pipeline.NewSupervisor(cfg, deps)
	supervisor.Start()

	// Create and start the HTTP surface
	server := api.NewServer(cfg, supervisor, sink)
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup API server")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("API server stopped")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	supervisor.Stop()

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("API server forced to shutdown")
	}

	sink.Shutdown()
	log.Info().Msg("Monitor shutdown complete")
}

// buildDeps wires the physical sensors into the pipeline. Missing hardware
// surfaces at worker start, not here, so the monitor always comes up.
func buildDeps(cfg *config.Config) pipeline.Deps {
	deps := pipeline.Deps{
		FrameSources: map[models.Position]func() sensor.FrameSource{
			models.PositionFront: func() sensor.FrameSource {
				return sensor.NewCameraSource(models.PositionFront, cfg.FrontCameraURL)
			},
			models.PositionRear: func() sensor.FrameSource {
				return sensor.NewCameraSource(models.PositionRear, cfg.RearCameraURL)
			},
		},
		Controllers: map[models.Position]sensor.Controller{},
		VehicleDetector: func() (detector.Detector, detector.Backend) {
			return detector.NewVehicleDetector(cfg)
		},
		MotionEstimator: func() detector.MotionEstimator {
			return detector.NewMOG2Estimator()
		},
		Annotator: detector.NewOverlayAnnotator(),
	}

	if cfg.FrontGoProIP != "" {
		deps.Controllers[models.PositionFront] = sensor.NewGoProController("front", cfg.FrontGoProIP, cfg.ControlTimeout)
	}
	if cfg.RearGoProIP != "" {
		deps.Controllers[models.PositionRear] = sensor.NewGoProController("rear", cfg.RearGoProIP, cfg.ControlTimeout)
	}

	if cfg.AudioEnabled {
		deps.AudioSource = func() sensor.AudioSource {
			return sensor.NewMicrophoneSource(cfg.SampleRate, cfg.AudioChunkLen)
		}
	}

	return deps
}
