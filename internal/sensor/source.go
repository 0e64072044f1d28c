// Package sensor wraps the physical acquisition devices: cameras opened
// through OpenCV, GoPro cameras controlled over HTTP, and the microphone
// captured through miniaudio. The pipeline consumes everything through the
// FrameSource and AudioSource interfaces so tests can substitute stubs.
package sensor

import (
	"context"
	"errors"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

var (
	// ErrSourceUnavailable means the device or network open failed; the
	// worker for that source ends quietly and the pipeline continues.
	ErrSourceUnavailable = errors.New("sensor source unavailable")

	// ErrEndOfStream means the source stopped producing data
	ErrEndOfStream = errors.New("end of stream")
)

// FrameSource produces camera frames
type FrameSource interface {
	// Open connects to the device. Returns ErrSourceUnavailable when the
	// device cannot be opened.
	Open(ctx context.Context) error

	// Read blocks for at most the source's natural cadence and returns one
	// frame. Returns ErrEndOfStream when the stream ends and
	// ErrSourceUnavailable on unrecoverable read failures.
	Read(ctx context.Context) (*models.Frame, error)

	Close() error
}

// AudioSource produces fixed-duration audio chunks
type AudioSource interface {
	Open(ctx context.Context) error

	// Read blocks for one full chunk duration. The returned chunk is owned
	// by the caller until the next Read.
	Read(ctx context.Context) (*models.AudioChunk, error)

	Close() error
}

// Controller configures a remote camera before streaming. Configuration
// failures are never fatal; the camera still streams at default settings.
type Controller interface {
	Connect(ctx context.Context) error
	Configure(ctx context.Context, resolution string, fps int, fov string) error
	Disconnect(ctx context.Context)
}
