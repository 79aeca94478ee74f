package detection

import "strings"

// Config holds the remote-call thresholds and the safety allow-list.
type Config struct {
	GalleryID string `json:"gallery_id"` // face gallery searched for matches

	// === Label detection ===
	MaxLabels     int     `json:"max_labels"`     // labels requested per call
	MinConfidence float64 `json:"min_confidence"` // 0-100, remote floor

	// === Face search ===
	IncludeFaces  bool    `json:"include_faces"`  // skip face search when false
	FaceThreshold float64 `json:"face_threshold"` // 0-100, remote match floor
	MaxFaces      int     `json:"max_faces"`

	// Keywords is the safety-equipment allow-list.
	Keywords Keywords `json:"keywords"`
}

// DefaultKeywords is the standard safety-equipment allow-list.
var DefaultKeywords = Keywords{"helmet", "hardhat", "safety vest", "vest", "goggles", "boots", "gloves"}

// DefaultConfig returns the thresholds used by the live loop and /analyze.
func DefaultConfig() Config {
	kw := make(Keywords, len(DefaultKeywords))
	copy(kw, DefaultKeywords)
	return Config{
		GalleryID:     "new_face_collection",
		MaxLabels:     10,
		MinConfidence: 75,
		IncludeFaces:  true,
		FaceThreshold: 95,
		MaxFaces:      5,
		Keywords:      kw,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.MaxLabels < 1 || c.MaxLabels > 1000 {
		errors = append(errors, "max_labels must be between 1 and 1000")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		errors = append(errors, "min_confidence must be between 0 and 100")
	}
	if c.IncludeFaces {
		if c.GalleryID == "" {
			errors = append(errors, "gallery_id is required when include_faces is set")
		}
		if c.FaceThreshold < 0 || c.FaceThreshold > 100 {
			errors = append(errors, "face_threshold must be between 0 and 100")
		}
		if c.MaxFaces < 1 || c.MaxFaces > 4096 {
			errors = append(errors, "max_faces must be between 1 and 4096")
		}
	}
	if len(c.Keywords) == 0 {
		errors = append(errors, "keywords must not be empty")
	}

	return errors
}

// Keywords is a case-insensitive substring allow-list.
type Keywords []string

// Match reports whether label contains any keyword, ignoring case.
func (k Keywords) Match(label string) bool {
	l := strings.ToLower(label)
	for _, kw := range k {
		if kw == "" {
			continue
		}
		if strings.Contains(l, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
