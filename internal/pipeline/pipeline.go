// Package pipeline contains the concurrent core of the monitor: one worker
// per sensor feeding a bounded alert channel, a single aggregator owning the
// alert history and counters, and a supervisor that runs the whole thing.
package pipeline

import (
	"sync"
	"time"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// AlertBatch carries every alert produced by one worker cycle. The aggregator
// bumps the source counter once per batch, not once per alert, so a frame with
// three oversized vehicles still counts as a single detection event.
type AlertBatch struct {
	Source string
	Alerts []models.Alert
}

// Annotator draws hazard overlays onto a frame before display
type Annotator interface {
	Annotate(frame *models.Frame, observations []models.HazardObservation, motionRatio float64)
}

// DisplaySink receives annotated frames for presentation. Push is
// fire-and-forget and must not block.
type DisplaySink interface {
	Push(position models.Position, frame *models.Frame)
}

// Notifier fans a recorded alert out to external consumers
type Notifier interface {
	PublishAlert(alert models.Alert) error
}

// sourceStatus tracks health and throughput for one sensor, written by its
// worker and read by the status endpoint.
type sourceStatus struct {
	mu sync.Mutex
	s  models.SourceStatus
}

func newSourceStatus(source string) *sourceStatus {
	return &sourceStatus{s: models.SourceStatus{Source: source}}
}

func (st *sourceStatus) setConnected(connected bool) {
	st.mu.Lock()
	st.s.Connected = connected
	st.mu.Unlock()
}

func (st *sourceStatus) setBackend(backend string) {
	st.mu.Lock()
	st.s.Backend = backend
	st.mu.Unlock()
}

func (st *sourceStatus) recordFrame(at time.Time) {
	st.mu.Lock()
	st.s.FrameCount++
	st.s.LastFrameTime = at
	st.mu.Unlock()
}

func (st *sourceStatus) recordDrop() {
	st.mu.Lock()
	st.s.DroppedFrames++
	st.mu.Unlock()
}

func (st *sourceStatus) snapshot() models.SourceStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}
