package models

import (
	"time"
)

// HazardType represents the kinds of hazards the pipeline can report
type HazardType string

const (
	HazardTypeVehicle   HazardType = "vehicle"
	HazardTypeMotion    HazardType = "motion"
	HazardTypeHorn      HazardType = "horn"
	HazardTypeSiren     HazardType = "siren"
	HazardTypeLoudNoise HazardType = "loud_noise"
)

// String returns the string representation of HazardType
func (t HazardType) String() string {
	return string(t)
}

// HazardLevel represents the severity of a hazard observation
type HazardLevel int

const (
	HazardLevelNone HazardLevel = iota
	HazardLevelLow
	HazardLevelMedium
	HazardLevelHigh
	HazardLevelCritical
)

func (l HazardLevel) String() string {
	switch l {
	case HazardLevelLow:
		return "low"
	case HazardLevelMedium:
		return "medium"
	case HazardLevelHigh:
		return "high"
	case HazardLevelCritical:
		return "critical"
	default:
		return "none"
	}
}

// MarshalJSON encodes the level as its lowercase name
func (l HazardLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// BoundingBox is a detection region in pixel coordinates
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in pixels
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// HazardObservation is a classified measurement of potential danger,
// produced by the classifier before it becomes a user-facing alert.
// Immutable once created.
type HazardObservation struct {
	Type  HazardType  `json:"type"`
	Level HazardLevel `json:"level"`
	// Score is the relative bounding-box area for visual hazards or the
	// spectral energy / RMS for audio hazards.
	Score  float64      `json:"score"`
	Region *BoundingBox `json:"region,omitempty"`
}

// Alert is a user-facing, timestamped, leveled notification derived from
// one hazard observation that crossed the alerting threshold for its source.
type Alert struct {
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // "front", "rear" or "audio"
	Type      HazardType  `json:"type"`
	Level     HazardLevel `json:"level"`
	Score     float64     `json:"score"`
	Message   string      `json:"message"`
}

// AlertSnapshot is the read-only view the aggregator exposes to the
// presentation layer.
type AlertSnapshot struct {
	AllClear bool             `json:"all_clear"`
	Latest   *Alert           `json:"latest,omitempty"`
	History  []Alert          `json:"history"`
	Counters map[string]int64 `json:"counters"`
}
