package sensor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// CameraSource reads frames from a local device or a stream URL through
// OpenCV. A numeric URL is treated as a device index.
type CameraSource struct {
	position models.Position
	url      string

	mu      sync.Mutex
	cap     *gocv.VideoCapture
	img     gocv.Mat
	frameID int64

	consecutiveErrors int
}

const maxConsecutiveReadErrors = 10

// NewCameraSource creates a camera source for one mount position
func NewCameraSource(position models.Position, url string) *CameraSource {
	return &CameraSource{
		position: position,
		url:      url,
	}
}

// Open opens the OpenCV capture. Device indexes and URLs are both accepted.
func (s *CameraSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		cap *gocv.VideoCapture
		err error
	)

	if deviceID, convErr := strconv.Atoi(s.url); convErr == nil {
		cap, err = gocv.OpenVideoCapture(deviceID)
	} else {
		cap, err = gocv.OpenVideoCaptureWithAPI(s.url, gocv.VideoCaptureFFmpeg)
	}
	if err != nil {
		return fmt.Errorf("%w: open %s for %s camera: %v", ErrSourceUnavailable, s.url, s.position, err)
	}

	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("%w: capture not opened for %s camera", ErrSourceUnavailable, s.position)
	}

	// Minimal buffering keeps the feed close to real time
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	s.cap = cap
	s.img = gocv.NewMat()

	log.Info().
		Str("position", s.position.String()).
		Str("url", s.url).
		Float64("fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Camera opened")

	return nil
}

// Read returns the next frame. Transient read failures are retried with a
// short backoff; after too many consecutive failures the stream is treated
// as ended.
func (s *CameraSource) Read(ctx context.Context) (*models.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil, ErrSourceUnavailable
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.cap.Read(&s.img) || s.img.Empty() {
			s.consecutiveErrors++
			if s.consecutiveErrors >= maxConsecutiveReadErrors {
				log.Warn().
					Str("position", s.position.String()).
					Int("consecutive_errors", s.consecutiveErrors).
					Msg("Camera read failed repeatedly, ending stream")
				return nil, ErrEndOfStream
			}

			delay := time.Duration(s.consecutiveErrors*50) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		s.consecutiveErrors = 0
		s.frameID++

		return &models.Frame{
			Position:  s.position,
			Data:      s.img.ToBytes(),
			Width:     s.img.Cols(),
			Height:    s.img.Rows(),
			FrameID:   s.frameID,
			Timestamp: time.Now(),
		}, nil
	}
}

// Close releases the capture handle
func (s *CameraSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		s.img.Close()
		if err := s.cap.Close(); err != nil {
			return err
		}
		s.cap = nil
		log.Debug().Str("position", s.position.String()).Msg("Camera closed")
	}
	return nil
}
