package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/samyakrajbayar/cyclesafe/internal/classify"
	"github.com/samyakrajbayar/cyclesafe/internal/detector"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
	"github.com/samyakrajbayar/cyclesafe/internal/sensor"
)

// cameraWorker owns one camera from open to close. It never touches shared
// state directly; alerts go through the batch channel and health through its
// own sourceStatus.
type cameraWorker struct {
	position   models.Position
	source     sensor.FrameSource
	controller sensor.Controller
	vehicles   detector.Detector
	motion     detector.MotionEstimator
	classifier *classify.Classifier
	annotator  Annotator
	display    chan *models.Frame
	alerts     chan<- AlertBatch
	status     *sourceStatus
	log        zerolog.Logger
	poll       time.Duration

	// Remote camera settings applied through the controller
	resolution string
	fps        int
	fov        string
}

func (w *cameraWorker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("Camera worker panic recovered")
		}
		w.status.setConnected(false)
	}()

	if w.controller != nil {
		w.prepareRemoteCamera(ctx)
	}

	if err := w.source.Open(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Camera unavailable, worker ending")
		return
	}
	defer func() {
		if err := w.source.Close(); err != nil {
			w.log.Warn().Err(err).Msg("Camera close failed")
		}
		if w.controller != nil {
			w.controller.Disconnect(context.Background())
		}
	}()

	w.status.setConnected(true)
	w.log.Info().Msg("Camera worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("Camera worker cancelled")
			return
		default:
		}

		frame, err := w.source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if errors.Is(err, sensor.ErrEndOfStream) || errors.Is(err, sensor.ErrSourceUnavailable) {
				w.log.Warn().Err(err).Msg("Camera stream ended, worker ending")
				return
			}
			w.log.Warn().Err(err).Msg("Frame read failed")
			continue
		}

		w.status.recordFrame(frame.Timestamp)
		w.processFrame(ctx, frame)

		// Pace the capture loop so a fast source does not spin the detector
		if w.poll > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.poll):
			}
		}
	}
}

// prepareRemoteCamera wakes and configures a network camera. Failures are
// logged only; the stream is still attempted at whatever settings the camera
// has.
func (w *cameraWorker) prepareRemoteCamera(ctx context.Context) {
	if err := w.controller.Connect(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Remote camera wake failed, trying stream anyway")
		return
	}
	if err := w.controller.Configure(ctx, w.resolution, w.fps, w.fov); err != nil {
		w.log.Warn().Err(err).Msg("Remote camera configuration failed, using current settings")
	}
}

func (w *cameraWorker) processFrame(ctx context.Context, frame *models.Frame) {
	observations := make([]models.HazardObservation, 0, 4)

	detections, err := w.vehicles.Detect(ctx, frame)
	if err != nil {
		w.log.Warn().Err(err).Msg("Vehicle detection failed")
	}
	for _, det := range detections {
		if obs, ok := w.classifier.ClassifyDetection(det, frame.Width, frame.Height); ok {
			observations = append(observations, obs)
		}
	}

	var motionRatio float64
	if w.motion != nil {
		ratio, err := w.motion.Ratio(frame)
		if err == nil {
			motionRatio = ratio
			if obs, ok := w.classifier.ClassifyMotion(ratio); ok {
				observations = append(observations, obs)
			}
		}
	}

	if w.annotator != nil {
		w.annotator.Annotate(frame, observations, motionRatio)
	}

	// Display is best effort. A slow consumer costs us frames, never time.
	select {
	case w.display <- frame:
	default:
		w.status.recordDrop()
	}

	batch := AlertBatch{Source: w.position.String()}
	for _, obs := range observations {
		if classify.ShouldAlert(obs) {
			batch.Alerts = append(batch.Alerts, newAlert(w.position.String(), obs))
		}
	}
	sendBatch(ctx, w.alerts, batch)
}

// audioWorker captures microphone chunks and classifies them for horns,
// sirens and general loudness.
type audioWorker struct {
	source     sensor.AudioSource
	classifier *classify.Classifier
	alerts     chan<- AlertBatch
	status     *sourceStatus
	log        zerolog.Logger
}

func (w *audioWorker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("Audio worker panic recovered")
		}
		w.status.setConnected(false)
	}()

	if err := w.source.Open(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Microphone unavailable, audio worker ending")
		return
	}
	defer func() {
		if err := w.source.Close(); err != nil {
			w.log.Warn().Err(err).Msg("Microphone close failed")
		}
	}()

	w.status.setConnected(true)
	w.log.Info().Msg("Audio worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("Audio worker cancelled")
			return
		default:
		}

		chunk, err := w.source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if errors.Is(err, sensor.ErrEndOfStream) || errors.Is(err, sensor.ErrSourceUnavailable) {
				w.log.Warn().Err(err).Msg("Audio capture ended, worker ending")
				return
			}
			w.log.Warn().Err(err).Msg("Audio chunk read failed")
			continue
		}

		w.status.recordFrame(chunk.Timestamp)

		measurement := w.classifier.Measure(chunk)
		batch := AlertBatch{Source: models.SourceAudio}
		for _, obs := range w.classifier.ClassifyAudio(measurement) {
			if classify.ShouldAlert(obs) {
				batch.Alerts = append(batch.Alerts, newAlert(models.SourceAudio, obs))
			}
		}
		sendBatch(ctx, w.alerts, batch)
	}
}

// sendBatch pushes a non-empty batch onto the alert channel. The push may
// block briefly under backpressure; alerts are only abandoned when the whole
// pipeline is shutting down.
func sendBatch(ctx context.Context, alerts chan<- AlertBatch, batch AlertBatch) {
	if len(batch.Alerts) == 0 {
		return
	}
	select {
	case alerts <- batch:
	case <-ctx.Done():
	}
}

func newAlert(source string, obs models.HazardObservation) models.Alert {
	return models.Alert{
		Timestamp: time.Now(),
		Source:    source,
		Type:      obs.Type,
		Level:     obs.Level,
		Score:     obs.Score,
		Message:   alertMessage(source, obs),
	}
}

func alertMessage(source string, obs models.HazardObservation) string {
	switch obs.Type {
	case models.HazardTypeVehicle:
		return fmt.Sprintf("Vehicle at %.0f%% of %s view", obs.Score*100, source)
	case models.HazardTypeMotion:
		return fmt.Sprintf("Motion in %s view", source)
	case models.HazardTypeHorn:
		return "Horn detected nearby"
	case models.HazardTypeSiren:
		return "Siren detected nearby"
	case models.HazardTypeLoudNoise:
		return "Loud noise nearby"
	default:
		return obs.Type.String()
	}
}
