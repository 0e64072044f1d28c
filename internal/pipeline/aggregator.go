package pipeline

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// Aggregator is the single consumer of the alert channel. It alone mutates
// the history and the counters; everyone else reads them through snapshots
// guarded by the read lock.
type Aggregator struct {
	historyCap int
	notifier   Notifier

	mu       sync.RWMutex
	history  []models.Alert
	counters map[string]int64

	done chan struct{}
}

// NewAggregator creates an aggregator with the given history cap. The
// notifier is optional; nil disables external fan-out.
func NewAggregator(historyCap int, notifier Notifier) *Aggregator {
	if historyCap < 1 {
		historyCap = 1
	}
	return &Aggregator{
		historyCap: historyCap,
		notifier:   notifier,
		history:    make([]models.Alert, 0, historyCap),
		counters:   make(map[string]int64),
		done:       make(chan struct{}),
	}
}

// Run drains the alert channel until it is closed, so every alert pushed
// before shutdown is recorded. Call it in its own goroutine; Done reports
// when it has exited.
func (a *Aggregator) Run(batches <-chan AlertBatch) {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Alert aggregator panic recovered")
		}
	}()

	for batch := range batches {
		a.record(batch)
	}

	log.Debug().Msg("Alert aggregator drained and stopped")
}

// Done reports aggregator exit
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

func (a *Aggregator) record(batch AlertBatch) {
	if len(batch.Alerts) == 0 {
		return
	}

	a.mu.Lock()
	a.counters[batch.Source]++
	for _, alert := range batch.Alerts {
		a.history = append([]models.Alert{alert}, a.history...)
		if len(a.history) > a.historyCap {
			a.history = a.history[:a.historyCap]
		}
	}
	a.mu.Unlock()

	for _, alert := range batch.Alerts {
		log.Info().
			Str("source", alert.Source).
			Str("type", alert.Type.String()).
			Str("level", alert.Level.String()).
			Float64("score", alert.Score).
			Msg(alert.Message)

		if a.notifier != nil {
			if err := a.notifier.PublishAlert(alert); err != nil {
				log.Warn().Err(err).Str("source", alert.Source).Msg("Alert fan-out failed")
			}
		}
	}
}

// Latest returns the most recent alert, or false when the history is empty
// and the monitor is all clear.
func (a *Aggregator) Latest() (models.Alert, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.history) == 0 {
		return models.Alert{}, false
	}
	return a.history[0], true
}

// History returns the recorded alerts, most recent first
func (a *Aggregator) History() []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Alert, len(a.history))
	copy(out, a.history)
	return out
}

// Counters returns a copy of the per-source detection counters
func (a *Aggregator) Counters() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int64, len(a.counters))
	for source, count := range a.counters {
		out[source] = count
	}
	return out
}

// Snapshot returns the full read-only view for the presentation layer
func (a *Aggregator) Snapshot() models.AlertSnapshot {
	snap := models.AlertSnapshot{
		History:  a.History(),
		Counters: a.Counters(),
	}
	if latest, ok := a.Latest(); ok {
		snap.Latest = &latest
	} else {
		snap.AllClear = true
	}
	return snap
}
