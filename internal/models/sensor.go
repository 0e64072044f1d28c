package models

import (
	"time"
)

// Position identifies where a camera is mounted on the bike
type Position string

const (
	PositionFront Position = "front"
	PositionRear  Position = "rear"
)

// String returns the string representation of Position
func (p Position) String() string {
	return string(p)
}

// IsValid checks if the position is a known mount point
func (p Position) IsValid() bool {
	switch p {
	case PositionFront, PositionRear:
		return true
	default:
		return false
	}
}

// SourceAudio is the source label used by the microphone worker
const SourceAudio = "audio"

// Frame is one captured camera image. The capturing worker owns it until it
// is pushed onto a display channel; the display sink owns it afterwards.
type Frame struct {
	Position  Position
	Data      []byte // BGR24
	Width     int
	Height    int
	FrameID   int64
	Timestamp time.Time
}

// AudioChunk is one fixed-duration block of mono PCM samples, owned by the
// audio worker for the duration of a single classification call.
type AudioChunk struct {
	Samples    []float64
	SampleRate int
	Timestamp  time.Time
}

// Duration returns the chunk length in time
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// RawDetection is an unclassified object detection from a camera backend
type RawDetection struct {
	Label      string
	Box        BoundingBox
	Confidence float64
}

// Measurement is an unclassified signal measurement from an audio chunk
type Measurement struct {
	RMS         float64
	HornEnergy  float64
	SirenEnergy float64
	MotionRatio float64
}

// SourceStatus reports the health and throughput of one sensor source
type SourceStatus struct {
	Source        string    `json:"source"`
	Connected     bool      `json:"connected"`
	Backend       string    `json:"backend,omitempty"`
	FrameCount    int64     `json:"frame_count"`
	DroppedFrames int64     `json:"dropped_frames"`
	LastFrameTime time.Time `json:"last_frame_time,omitempty"`
}
