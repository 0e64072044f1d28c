// Package display is the presentation sink for annotated camera frames. It
// keeps the latest JPEG per camera position and serves it as an MJPEG stream
// over HTTP, so a phone or handlebar browser can show the live feeds.
package display

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"image"
	"image/color"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

const jpegQuality = 90

type Sink struct {
	jpegMutex   sync.RWMutex
	latestJPEG  map[models.Position][]byte
	frameNotify map[models.Position]chan struct{}
	notifyMutex sync.RWMutex
}

func NewSink() *Sink {
	return &Sink{
		latestJPEG:  make(map[models.Position][]byte),
		frameNotify: make(map[models.Position]chan struct{}),
	}
}

// Push accepts ownership of an annotated frame, encodes it and makes it the
// latest image for that position. Encoding failures are logged and the frame
// is dropped; the capture side never sees an error from display.
func (s *Sink) Push(position models.Position, frame *models.Frame) {
	if err := s.updateLatestJPEG(position, frame); err != nil {
		log.Debug().Err(err).Str("position", position.String()).Msg("Frame encode failed")
		return
	}
	s.notifyStreamers(position)
}

func (s *Sink) updateLatestJPEG(position models.Position, frame *models.Frame) error {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return fmt.Errorf("failed to create Mat from frame data: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	b := buf.GetBytes()
	jpegCopy := make([]byte, len(b))
	copy(jpegCopy, b)
	buf.Close()

	s.jpegMutex.Lock()
	s.latestJPEG[position] = jpegCopy
	s.jpegMutex.Unlock()
	return nil
}

func (s *Sink) notifyStreamers(position models.Position) {
	s.notifyMutex.RLock()
	notify, exists := s.frameNotify[position]
	s.notifyMutex.RUnlock()

	if exists {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

func (s *Sink) getOrCreateNotifyChannel(position models.Position) chan struct{} {
	s.notifyMutex.Lock()
	defer s.notifyMutex.Unlock()

	notify, exists := s.frameNotify[position]
	if !exists {
		notify = make(chan struct{}, 5)
		s.frameNotify[position] = notify
	}
	return notify
}

// cleanupNotifyChannel detaches a streamer's notify channel. The channel is
// never closed: a concurrent Push may have already loaded it and be about to
// send, and a send on a closed channel would take down the display pump.
func (s *Sink) cleanupNotifyChannel(position models.Position) {
	s.notifyMutex.Lock()
	defer s.notifyMutex.Unlock()

	delete(s.frameNotify, position)
}

// StreamMJPEG writes a multipart MJPEG stream of the given position until the
// client goes away. Before the first real frame arrives a placeholder image
// is sent so the browser shows something immediately.
func (s *Sink) StreamMJPEG(w http.ResponseWriter, r *http.Request, position models.Position) {
	boundary := "frame"
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	notify := s.getOrCreateNotifyChannel(position)
	defer s.cleanupNotifyChannel(position)

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	s.jpegMutex.RLock()
	first, ok := s.latestJPEG[position]
	s.jpegMutex.RUnlock()
	if !ok || len(first) == 0 {
		first = placeholderJPEG(position)
	}
	if len(first) > 0 {
		if !writePart(first) {
			return
		}
	}

	keepaliveTicker := time.NewTicker(2 * time.Second)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			s.jpegMutex.RLock()
			buf, ok := s.latestJPEG[position]
			s.jpegMutex.RUnlock()
			if ok && len(buf) > 0 {
				if !writePart(buf) {
					return
				}
			}
		case <-keepaliveTicker.C:
			s.jpegMutex.RLock()
			buf, ok := s.latestJPEG[position]
			s.jpegMutex.RUnlock()
			if ok && len(buf) > 0 {
				if !writePart(buf) {
					return
				}
			}
		}
	}
}

func placeholderJPEG(position models.Position) []byte {
	placeholder := gocv.NewMatWithSize(360, 640, gocv.MatTypeCV8UC3)
	defer placeholder.Close()

	placeholder.SetTo(gocv.Scalar{Val1: 64, Val2: 64, Val3: 64, Val4: 0})

	textColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.PutText(&placeholder, fmt.Sprintf("Camera: %s", position),
		image.Pt(20, 180), gocv.FontHersheySimplex, 1.0, textColor, 2)
	gocv.PutText(&placeholder, "Waiting for stream...",
		image.Pt(20, 220), gocv.FontHersheySimplex, 0.8, textColor, 2)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, placeholder, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil
	}
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	buf.Close()
	return out
}

func (s *Sink) Shutdown() {
	log.Info().Msg("Display sink shutting down")
}
