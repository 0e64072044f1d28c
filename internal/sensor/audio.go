package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// MicrophoneSource captures mono 16-bit PCM from the default capture device
// through miniaudio and assembles it into fixed-duration chunks. Read blocks
// for one full chunk duration, which bounds shutdown latency to one chunk.
type MicrophoneSource struct {
	sampleRate int
	chunkLen   time.Duration

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	samples chan float64
}

// NewMicrophoneSource creates an audio source producing chunks of the given
// duration at the given sample rate.
func NewMicrophoneSource(sampleRate int, chunkLen time.Duration) *MicrophoneSource {
	return &MicrophoneSource{
		sampleRate: sampleRate,
		chunkLen:   chunkLen,
	}
}

// Open initializes the capture device and starts recording
func (s *MicrophoneSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: audio context init: %v", ErrSourceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// Buffer one chunk ahead so the device callback never blocks for long
	s.samples = make(chan float64, s.chunkSamples()*2)

	onReceiveFrames := func(_, pSamples []byte, frameCount uint32) {
		for i := 0; i+1 < len(pSamples); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(pSamples[i : i+2]))
			normalized := float64(sample) / 32768.0
			select {
			case s.samples <- normalized:
			default:
				// Consumer fell behind, drop the oldest sample
				select {
				case <-s.samples:
				default:
				}
				select {
				case s.samples <- normalized:
				default:
				}
			}
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onReceiveFrames,
	})
	if err != nil {
		_ = malgoCtx.Uninit()
		return fmt.Errorf("%w: audio device init: %v", ErrSourceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return fmt.Errorf("%w: audio device start: %v", ErrSourceUnavailable, err)
	}

	s.ctx = malgoCtx
	s.device = device

	log.Info().
		Int("sample_rate", s.sampleRate).
		Dur("chunk_len", s.chunkLen).
		Msg("Microphone capture started")

	return nil
}

// Read assembles one chunk of samples, blocking up to the chunk duration
// plus a small grace period. A cancelled context interrupts the wait.
func (s *MicrophoneSource) Read(ctx context.Context) (*models.AudioChunk, error) {
	s.mu.Lock()
	samples := s.samples
	s.mu.Unlock()

	if samples == nil {
		return nil, ErrSourceUnavailable
	}

	want := s.chunkSamples()
	buf := make([]float64, 0, want)

	deadline := time.NewTimer(s.chunkLen + s.chunkLen/2)
	defer deadline.Stop()

	for len(buf) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sample := <-samples:
			buf = append(buf, sample)
		case <-deadline.C:
			if len(buf) == 0 {
				return nil, fmt.Errorf("%w: no audio data within chunk window", ErrEndOfStream)
			}
			// Short chunk, classify what we have
			return &models.AudioChunk{
				Samples:    buf,
				SampleRate: s.sampleRate,
				Timestamp:  time.Now(),
			}, nil
		}
	}

	return &models.AudioChunk{
		Samples:    buf,
		SampleRate: s.sampleRate,
		Timestamp:  time.Now(),
	}, nil
}

// Close stops the device and releases the audio context
func (s *MicrophoneSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		if err := s.ctx.Uninit(); err != nil {
			return err
		}
		s.ctx = nil
		log.Debug().Msg("Microphone capture stopped")
	}
	s.samples = nil
	return nil
}

func (s *MicrophoneSource) chunkSamples() int {
	return int(float64(s.sampleRate) * s.chunkLen.Seconds())
}
