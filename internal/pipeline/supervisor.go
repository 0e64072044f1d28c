package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/samyakrajbayar/cyclesafe/internal/classify"
	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/detector"
	"github.com/samyakrajbayar/cyclesafe/internal/logging"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
	"github.com/samyakrajbayar/cyclesafe/internal/sensor"
)

// State is the supervisor run state
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Deps are the external collaborators the supervisor wires into workers.
// Factories are invoked on every start so a restart gets fresh device handles
// and detector instances.
type Deps struct {
	FrameSources    map[models.Position]func() sensor.FrameSource
	Controllers     map[models.Position]sensor.Controller
	AudioSource     func() sensor.AudioSource
	VehicleDetector func() (detector.Detector, detector.Backend)
	MotionEstimator func() detector.MotionEstimator
	Annotator       Annotator
	Display         DisplaySink
	Notifier        Notifier
}

// Status is the run-state view served by the status endpoint
type Status struct {
	State         string                `json:"state"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Sources       []models.SourceStatus `json:"sources"`
}

// Supervisor owns the pipeline lifecycle: it builds the channels, spawns one
// worker per sensor plus the aggregator, and joins them all on stop.
type Supervisor struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger

	state int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pumpWg sync.WaitGroup

	alerts   chan AlertBatch
	displays map[models.Position]chan *models.Frame

	mu        sync.RWMutex
	agg       *Aggregator
	statuses  []*sourceStatus
	startedAt time.Time
}

// NewSupervisor creates an idle supervisor
func NewSupervisor(cfg *config.Config, deps Deps) *Supervisor {
	return &Supervisor{
		cfg:  cfg,
		deps: deps,
		log:  logging.NewServiceLogger(cfg, "pipeline"),
	}
}

// State returns the current run state
func (s *Supervisor) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Start transitions idle to active: builds the alert and display channels,
// instantiates detectors and spawns the workers and the aggregator. Starting
// an already active pipeline is a no-op. The active state is only published
// once every run field is in place, so a concurrent Stop either loses the
// state race and no-ops or sees a fully initialized run.
func (s *Supervisor) Start() {
	if !atomic.CompareAndSwapInt32(&s.state, int32(StateIdle), int32(StateStarting)) {
		s.log.Debug().Str("state", s.State().String()).Msg("Start ignored, pipeline not idle")
		return
	}

	s.log.Info().Str("preset", string(s.cfg.Preset)).Msg("Starting monitor pipeline")

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.alerts = make(chan AlertBatch, s.cfg.AlertChannelSize)
	s.displays = make(map[models.Position]chan *models.Frame)

	agg := NewAggregator(s.cfg.AlertHistoryCap, s.deps.Notifier)
	statuses := make([]*sourceStatus, 0, 3)

	for _, position := range []models.Position{models.PositionFront, models.PositionRear} {
		factory, ok := s.deps.FrameSources[position]
		if !ok {
			continue
		}

		status := newSourceStatus(position.String())
		statuses = append(statuses, status)

		display := make(chan *models.Frame, s.cfg.FrameQueueCapacity)
		s.displays[position] = display
		s.startDisplayPump(position, display)

		var vehicles detector.Detector
		var backend detector.Backend
		if s.deps.VehicleDetector != nil {
			vehicles, backend = s.deps.VehicleDetector()
		} else {
			vehicles, backend = detector.NewVehicleDetector(s.cfg)
		}
		status.setBackend(string(backend))

		var motion detector.MotionEstimator
		if s.deps.MotionEstimator != nil {
			motion = s.deps.MotionEstimator()
		}

		worker := &cameraWorker{
			position:   position,
			source:     factory(),
			controller: s.deps.Controllers[position],
			vehicles:   vehicles,
			motion:     motion,
			classifier: classify.New(s.cfg),
			annotator:  s.deps.Annotator,
			display:    display,
			alerts:     s.alerts,
			status:     status,
			log:        logging.WithSource(s.log, position.String()),
			poll:       s.cfg.PollInterval,
			resolution: s.cfg.GoProResolution,
			fps:        s.cfg.GoProFPS,
			fov:        s.cfg.GoProFOV,
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer closeDetectors(worker.log, vehicles, motion)
			worker.run(s.ctx)
		}()
	}

	if s.deps.AudioSource != nil {
		status := newSourceStatus(models.SourceAudio)
		statuses = append(statuses, status)

		worker := &audioWorker{
			source:     s.deps.AudioSource(),
			classifier: classify.New(s.cfg),
			alerts:     s.alerts,
			status:     status,
			log:        logging.WithSource(s.log, models.SourceAudio),
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			worker.run(s.ctx)
		}()
	}

	go agg.Run(s.alerts)

	s.mu.Lock()
	s.agg = agg
	s.statuses = statuses
	s.startedAt = time.Now()
	s.mu.Unlock()

	atomic.StoreInt32(&s.state, int32(StateActive))
	s.log.Info().Int("sources", len(statuses)).Msg("Monitor pipeline active")
}

// Stop transitions active to idle: cancels the workers, waits for them, then
// closes the alert channel so the aggregator drains every pending alert
// before exiting. Stopping a pipeline that is not fully active, including one
// still starting up, is a no-op. Worst case latency is one poll interval plus
// the longest blocking acquisition in flight, which for audio is a full
// chunk.
func (s *Supervisor) Stop() {
	if !atomic.CompareAndSwapInt32(&s.state, int32(StateActive), int32(StateStopping)) {
		s.log.Debug().Str("state", s.State().String()).Msg("Stop ignored, pipeline not active")
		return
	}

	s.log.Info().Msg("Stopping monitor pipeline")

	s.cancel()
	s.wg.Wait()

	close(s.alerts)
	s.mu.RLock()
	agg := s.agg
	s.mu.RUnlock()

	select {
	case <-agg.Done():
	case <-time.After(s.cfg.ShutdownTimeout):
		s.log.Warn().Msg("Aggregator drain timed out")
	}

	for _, display := range s.displays {
		close(display)
	}
	s.pumpWg.Wait()
	s.displays = nil

	atomic.StoreInt32(&s.state, int32(StateIdle))
	s.log.Info().Msg("Monitor pipeline stopped")
}

// startDisplayPump forwards frames from a display channel to the sink. The
// pump drains until the supervisor closes the channel during Stop.
func (s *Supervisor) startDisplayPump(position models.Position, display <-chan *models.Frame) {
	s.pumpWg.Add(1)
	go func() {
		defer s.pumpWg.Done()
		for frame := range display {
			if s.deps.Display != nil {
				s.deps.Display.Push(position, frame)
			}
		}
	}()
}

// Status reports the run state and per-source health
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		State:   s.State().String(),
		Sources: make([]models.SourceStatus, 0, len(s.statuses)),
	}
	if s.State() == StateActive && !s.startedAt.IsZero() {
		status.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}
	for _, st := range s.statuses {
		status.Sources = append(status.Sources, st.snapshot())
	}
	return status
}

// Snapshot returns the aggregator's current view. Before the first start it
// reports all clear.
func (s *Supervisor) Snapshot() models.AlertSnapshot {
	s.mu.RLock()
	agg := s.agg
	s.mu.RUnlock()

	if agg == nil {
		return models.AlertSnapshot{
			AllClear: true,
			History:  []models.Alert{},
			Counters: map[string]int64{},
		}
	}
	return agg.Snapshot()
}

// History returns recorded alerts, most recent first
func (s *Supervisor) History() []models.Alert {
	s.mu.RLock()
	agg := s.agg
	s.mu.RUnlock()

	if agg == nil {
		return []models.Alert{}
	}
	return agg.History()
}

// Counters returns the per-source detection counters
func (s *Supervisor) Counters() map[string]int64 {
	s.mu.RLock()
	agg := s.agg
	s.mu.RUnlock()

	if agg == nil {
		return map[string]int64{}
	}
	return agg.Counters()
}

func closeDetectors(logger zerolog.Logger, vehicles detector.Detector, motion detector.MotionEstimator) {
	if vehicles != nil {
		if err := vehicles.Close(); err != nil {
			logger.Warn().Err(err).Msg("Vehicle detector close failed")
		}
	}
	if motion != nil {
		if err := motion.Close(); err != nil {
			logger.Warn().Err(err).Msg("Motion estimator close failed")
		}
	}
}
