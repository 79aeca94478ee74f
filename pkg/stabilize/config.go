package stabilize

import (
	"time"

	"github.com/teslashibe/go-ppewatch/pkg/detection"
)

// Config holds the debounce and lock parameters.
type Config struct {
	// FaceQualify is the similarity (0-100) a match needs to count toward a streak.
	FaceQualify float64 `json:"face_qualify"`

	// StreakThreshold is the number of consecutive qualifying frames
	// needed to lock a face.
	StreakThreshold int `json:"streak_threshold"`

	// ObjectQualify is the confidence (0-100) a safety label needs to lock.
	ObjectQualify float64 `json:"object_qualify"`

	// Dwell is how long a lock is held after the most recent acquisition.
	Dwell time.Duration `json:"dwell"`

	// Keywords selects which labels count as safety equipment.
	Keywords detection.Keywords `json:"keywords"`

	// IdleLabels cycle in empty slots, one step per frame.
	IdleLabels []string `json:"idle_labels"`
}

// DefaultConfig returns the standard lock behaviour.
func DefaultConfig() Config {
	return Config{
		FaceQualify:     95,
		StreakThreshold: 2,
		ObjectQualify:   75,
		Dwell:           3 * time.Second,
		Keywords:        detection.DefaultKeywords,
		IdleLabels:      []string{"Scanning.", "Scanning..", "Scanning..."},
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.FaceQualify < 0 || c.FaceQualify > 100 {
		errors = append(errors, "face_qualify must be between 0 and 100")
	}
	if c.StreakThreshold < 1 {
		errors = append(errors, "streak_threshold must be at least 1")
	}
	if c.ObjectQualify < 0 || c.ObjectQualify > 100 {
		errors = append(errors, "object_qualify must be between 0 and 100")
	}
	if c.Dwell <= 0 {
		errors = append(errors, "dwell must be positive")
	}
	if len(c.Keywords) == 0 {
		errors = append(errors, "keywords must not be empty")
	}
	if len(c.IdleLabels) == 0 {
		errors = append(errors, "idle_labels must not be empty")
	}

	return errors
}
