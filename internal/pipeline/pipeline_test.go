package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/detector"
	"github.com/samyakrajbayar/cyclesafe/internal/models"
	"github.com/samyakrajbayar/cyclesafe/internal/sensor"
)

// TestMain verifies that every test leaves no goroutines behind, which is
// the whole point of the supervisor joining its workers.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	return &config.Config{
		Preset:                 config.PresetEnhanced,
		VehicleSizeBreakpoints: [3]float64{0.10, 0.20, 0.35},
		MotionRatioThreshold:   0.05,
		AudioThresholds:        config.AudioThresholds{Loud: 0.25, Horn: 800, Siren: 1000},
		HornBand:               config.FrequencyBand{Low: 300, High: 700},
		SirenBand:              config.FrequencyBand{Low: 800, High: 1500},
		SampleRate:             44100,
		AudioChunkLen:          100 * time.Millisecond,
		FrameQueueCapacity:     4,
		AlertChannelSize:       16,
		AlertHistoryCap:        3,
		PollInterval:           5 * time.Millisecond,
		ShutdownTimeout:        2 * time.Second,
	}
}

// stubFrameSource produces synthetic 100x100 frames at a fixed interval
type stubFrameSource struct {
	position models.Position
	interval time.Duration
	limit    int // 0 means unlimited
	failOpen bool
	reads    int
	frameID  int64
}

func (s *stubFrameSource) Open(ctx context.Context) error {
	if s.failOpen {
		return sensor.ErrSourceUnavailable
	}
	return nil
}

func (s *stubFrameSource) Read(ctx context.Context) (*models.Frame, error) {
	if s.limit > 0 && s.reads >= s.limit {
		return nil, sensor.ErrEndOfStream
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.interval):
	}
	s.reads++
	s.frameID++
	return &models.Frame{
		Position:  s.position,
		Data:      make([]byte, 100*100*3),
		Width:     100,
		Height:    100,
		FrameID:   s.frameID,
		Timestamp: time.Now(),
	}, nil
}

func (s *stubFrameSource) Close() error { return nil }

// stubAudioSource produces constant-amplitude chunks after a blocking wait,
// mimicking a microphone that records for the full chunk duration.
type stubAudioSource struct {
	chunkLen  time.Duration
	amplitude float64
}

func (s *stubAudioSource) Open(ctx context.Context) error { return nil }

func (s *stubAudioSource) Read(ctx context.Context) (*models.AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.chunkLen):
	}
	// Alternating sign keeps all spectral energy at Nyquist, far above the
	// horn and siren bands, while the RMS equals the amplitude.
	samples := make([]float64, 4096)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = s.amplitude
		} else {
			samples[i] = -s.amplitude
		}
	}
	return &models.AudioChunk{Samples: samples, SampleRate: 44100, Timestamp: time.Now()}, nil
}

func (s *stubAudioSource) Close() error { return nil }

// stubDetector reports the same boxes on every frame
type stubDetector struct {
	boxes []models.BoundingBox
}

func (d *stubDetector) Detect(ctx context.Context, frame *models.Frame) ([]models.RawDetection, error) {
	detections := make([]models.RawDetection, 0, len(d.boxes))
	for _, box := range d.boxes {
		detections = append(detections, models.RawDetection{Label: "car", Box: box, Confidence: 0.9})
	}
	return detections, nil
}

func (d *stubDetector) Close() error { return nil }

// countingSink counts display pushes
type countingSink struct {
	mu     sync.Mutex
	pushes int
}

func (s *countingSink) Push(position models.Position, frame *models.Frame) {
	s.mu.Lock()
	s.pushes++
	s.mu.Unlock()
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

// blockingSink blocks every push until released
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Push(position models.Position, frame *models.Frame) {
	<-s.release
}

func alert(source, message string) models.Alert {
	return models.Alert{
		Timestamp: time.Now(),
		Source:    source,
		Type:      models.HazardTypeVehicle,
		Level:     models.HazardLevelCritical,
		Message:   message,
	}
}

func TestAggregatorHistoryCapAndOrder(t *testing.T) {
	agg := NewAggregator(3, nil)
	batches := make(chan AlertBatch)
	go agg.Run(batches)

	for i := 1; i <= 5; i++ {
		batches <- AlertBatch{
			Source: "front",
			Alerts: []models.Alert{alert("front", fmt.Sprintf("a%d", i))},
		}
	}
	close(batches)
	<-agg.Done()

	history := agg.History()
	require.Len(t, history, 3)
	assert.Equal(t, "a5", history[0].Message)
	assert.Equal(t, "a4", history[1].Message)
	assert.Equal(t, "a3", history[2].Message)

	latest, ok := agg.Latest()
	require.True(t, ok)
	assert.Equal(t, "a5", latest.Message)

	assert.Equal(t, int64(5), agg.Counters()["front"])
}

func TestAggregatorCountsOncePerBatch(t *testing.T) {
	agg := NewAggregator(10, nil)
	batches := make(chan AlertBatch)
	go agg.Run(batches)

	// One cycle produced three observations; that is one detection event
	batches <- AlertBatch{
		Source: "front",
		Alerts: []models.Alert{
			alert("front", "b1"),
			alert("front", "b2"),
			alert("front", "b3"),
		},
	}
	batches <- AlertBatch{
		Source: "audio",
		Alerts: []models.Alert{alert("audio", "c1")},
	}
	close(batches)
	<-agg.Done()

	counters := agg.Counters()
	assert.Equal(t, int64(1), counters["front"])
	assert.Equal(t, int64(1), counters["audio"])
	assert.Len(t, agg.History(), 4)
}

func TestAggregatorEmptyBatchIsIgnored(t *testing.T) {
	agg := NewAggregator(3, nil)
	batches := make(chan AlertBatch)
	go agg.Run(batches)

	batches <- AlertBatch{Source: "front"}
	close(batches)
	<-agg.Done()

	assert.Empty(t, agg.History())
	assert.Empty(t, agg.Counters())
}

func TestAggregatorAllClearSentinel(t *testing.T) {
	agg := NewAggregator(3, nil)
	batches := make(chan AlertBatch)
	go agg.Run(batches)
	close(batches)
	<-agg.Done()

	_, ok := agg.Latest()
	assert.False(t, ok)

	snapshot := agg.Snapshot()
	assert.True(t, snapshot.AllClear)
	assert.Nil(t, snapshot.Latest)
	assert.Empty(t, snapshot.History)
}

func supervisorDeps(source *stubFrameSource, det *stubDetector, sink DisplaySink) Deps {
	return Deps{
		FrameSources: map[models.Position]func() sensor.FrameSource{
			source.position: func() sensor.FrameSource { return source },
		},
		VehicleDetector: func() (detector.Detector, detector.Backend) {
			return det, detector.BackendNone
		},
		Display: sink,
	}
}

func TestSupervisorStartStop(t *testing.T) {
	cfg := testConfig()
	source := &stubFrameSource{position: models.PositionFront, interval: 5 * time.Millisecond}
	// 70x60 of a 100x100 frame is 42 percent, critical on every cycle
	det := &stubDetector{boxes: []models.BoundingBox{{X: 10, Y: 10, Width: 70, Height: 60}}}
	sink := &countingSink{}

	sup := NewSupervisor(cfg, supervisorDeps(source, det, sink))
	assert.Equal(t, StateIdle, sup.State())

	sup.Start()
	assert.Equal(t, StateActive, sup.State())

	time.Sleep(150 * time.Millisecond)
	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())

	counters := sup.Counters()
	assert.GreaterOrEqual(t, counters["front"], int64(1))

	history := sup.History()
	require.NotEmpty(t, history)
	assert.LessOrEqual(t, len(history), cfg.AlertHistoryCap)
	for i := 0; i+1 < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i+1].Timestamp),
			"history must be ordered most recent first")
	}

	snapshot := sup.Snapshot()
	assert.False(t, snapshot.AllClear)
	require.NotNil(t, snapshot.Latest)
	assert.Equal(t, models.HazardTypeVehicle, snapshot.Latest.Type)
	assert.Equal(t, models.HazardLevelCritical, snapshot.Latest.Level)

	assert.Greater(t, sink.count(), 0)
}

func TestSupervisorStartAndStopAreIdempotent(t *testing.T) {
	cfg := testConfig()
	source := &stubFrameSource{position: models.PositionFront, interval: 5 * time.Millisecond}
	sup := NewSupervisor(cfg, supervisorDeps(source, &stubDetector{}, &countingSink{}))

	// Stop while idle is a no-op
	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())

	sup.Start()
	// Start while active is a no-op
	sup.Start()
	assert.Equal(t, StateActive, sup.State())

	sup.Stop()
	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestStopDuringStartupWindowIsSafe(t *testing.T) {
	cfg := testConfig()
	deps := Deps{
		FrameSources: map[models.Position]func() sensor.FrameSource{
			models.PositionFront: func() sensor.FrameSource {
				return &stubFrameSource{position: models.PositionFront, interval: time.Millisecond}
			},
		},
		VehicleDetector: func() (detector.Detector, detector.Backend) {
			return &stubDetector{}, detector.BackendNone
		},
		Display: &countingSink{},
	}
	sup := NewSupervisor(cfg, deps)

	// Fire Stop the instant the state leaves idle, so it lands either in the
	// startup window (where it must be a no-op) or on a fully built run.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for sup.State() == StateIdle {
			runtime.Gosched()
		}
		sup.Stop()
	}()

	sup.Start()
	<-done

	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestConcurrentStartStopRequests(t *testing.T) {
	cfg := testConfig()
	deps := Deps{
		FrameSources: map[models.Position]func() sensor.FrameSource{
			models.PositionFront: func() sensor.FrameSource {
				return &stubFrameSource{position: models.PositionFront, interval: time.Millisecond}
			},
		},
		VehicleDetector: func() (detector.Detector, detector.Backend) {
			return &stubDetector{}, detector.BackendNone
		},
		Display: &countingSink{},
	}
	sup := NewSupervisor(cfg, deps)

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-gate
			sup.Start()
		}()
		go func() {
			defer wg.Done()
			<-gate
			sup.Stop()
		}()
	}
	close(gate)
	wg.Wait()

	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisorRestart(t *testing.T) {
	cfg := testConfig()
	det := &stubDetector{boxes: []models.BoundingBox{{Width: 70, Height: 60}}}
	deps := Deps{
		FrameSources: map[models.Position]func() sensor.FrameSource{
			models.PositionFront: func() sensor.FrameSource {
				return &stubFrameSource{position: models.PositionFront, interval: 5 * time.Millisecond}
			},
		},
		VehicleDetector: func() (detector.Detector, detector.Backend) {
			return det, detector.BackendNone
		},
		Display: &countingSink{},
	}

	sup := NewSupervisor(cfg, deps)
	sup.Start()
	time.Sleep(60 * time.Millisecond)
	sup.Stop()

	sup.Start()
	assert.Equal(t, StateActive, sup.State())
	time.Sleep(60 * time.Millisecond)
	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestStopLatencyBoundedByChunkDuration(t *testing.T) {
	cfg := testConfig()
	deps := Deps{
		AudioSource: func() sensor.AudioSource {
			return &stubAudioSource{chunkLen: 300 * time.Millisecond, amplitude: 0.9}
		},
	}

	sup := NewSupervisor(cfg, deps)
	sup.Start()
	time.Sleep(50 * time.Millisecond)

	started := time.Now()
	sup.Stop()
	elapsed := time.Since(started)

	// One in-flight chunk plus a poll interval, with slack for scheduling
	assert.Less(t, elapsed, 300*time.Millisecond+cfg.PollInterval+200*time.Millisecond)
}

func TestPollIntervalPacesCapture(t *testing.T) {
	cfg := testConfig()
	cfg.PollInterval = 100 * time.Millisecond

	source := &stubFrameSource{position: models.PositionFront, interval: time.Millisecond}
	sup := NewSupervisor(cfg, supervisorDeps(source, &stubDetector{}, &countingSink{}))
	sup.Start()

	time.Sleep(250 * time.Millisecond)

	// A 1ms source throttled to the poll interval yields a handful of frames,
	// not hundreds
	status := sup.Status()
	require.Len(t, status.Sources, 1)
	front := status.Sources[0]
	assert.GreaterOrEqual(t, front.FrameCount, int64(1))
	assert.LessOrEqual(t, front.FrameCount, int64(5))

	sup.Stop()
}

func TestAudioWorkerRaisesLoudNoiseAlerts(t *testing.T) {
	cfg := testConfig()
	deps := Deps{
		AudioSource: func() sensor.AudioSource {
			return &stubAudioSource{chunkLen: 30 * time.Millisecond, amplitude: 0.9}
		},
	}

	sup := NewSupervisor(cfg, deps)
	sup.Start()
	time.Sleep(150 * time.Millisecond)
	sup.Stop()

	assert.GreaterOrEqual(t, sup.Counters()["audio"], int64(1))
	latest, ok := func() (models.Alert, bool) {
		snap := sup.Snapshot()
		if snap.Latest == nil {
			return models.Alert{}, false
		}
		return *snap.Latest, true
	}()
	require.True(t, ok)
	assert.Equal(t, models.HazardTypeLoudNoise, latest.Type)
	assert.Equal(t, models.HazardLevelHigh, latest.Level)
	assert.Equal(t, "audio", latest.Source)
}

func TestDisplayNeverBlocksCapture(t *testing.T) {
	cfg := testConfig()
	cfg.FrameQueueCapacity = 1

	source := &stubFrameSource{position: models.PositionFront, interval: time.Millisecond}
	sink := &blockingSink{release: make(chan struct{})}

	sup := NewSupervisor(cfg, supervisorDeps(source, &stubDetector{}, sink))
	sup.Start()

	time.Sleep(200 * time.Millisecond)

	// Capture kept going while the sink was stuck: frames were read and
	// the overflow was dropped, not blocked on.
	status := sup.Status()
	require.Len(t, status.Sources, 1)
	front := status.Sources[0]
	assert.Greater(t, front.FrameCount, int64(10))
	assert.Greater(t, front.DroppedFrames, int64(0))

	close(sink.release)
	sup.Stop()
}

func TestWorkerEndsQuietlyWhenSourceUnavailable(t *testing.T) {
	cfg := testConfig()
	source := &stubFrameSource{position: models.PositionFront, failOpen: true}

	sup := NewSupervisor(cfg, supervisorDeps(source, &stubDetector{}, &countingSink{}))
	sup.Start()
	time.Sleep(50 * time.Millisecond)

	status := sup.Status()
	require.Len(t, status.Sources, 1)
	assert.False(t, status.Sources[0].Connected)

	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestWorkerEndsOnEndOfStream(t *testing.T) {
	cfg := testConfig()
	source := &stubFrameSource{position: models.PositionFront, interval: time.Millisecond, limit: 5}
	det := &stubDetector{boxes: []models.BoundingBox{{Width: 70, Height: 60}}}

	sup := NewSupervisor(cfg, supervisorDeps(source, det, &countingSink{}))
	sup.Start()
	time.Sleep(100 * time.Millisecond)

	status := sup.Status()
	require.Len(t, status.Sources, 1)
	assert.Equal(t, int64(5), status.Sources[0].FrameCount)
	assert.False(t, status.Sources[0].Connected)

	sup.Stop()
	assert.GreaterOrEqual(t, sup.Counters()["front"], int64(1))
}
