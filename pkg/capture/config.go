package capture

// Config holds live capture settings.
type Config struct {
	// Device is a camera index ("0") or a video file / stream URL.
	Device string `json:"device"`

	// SampleEvery sends one frame in N for evaluation.
	SampleEvery int `json:"sample_every"`

	// PublishFPS caps how many JPEG frames per second go to viewers.
	// Zero disables frame publishing.
	PublishFPS float64 `json:"publish_fps"`

	// WindowTitle names the preview window.
	WindowTitle string `json:"window_title"`

	// Locator selects local face cropping: "", "cascade" or "yunet".
	Locator string `json:"locator"`
}

// DefaultConfig returns the standard webcam settings.
func DefaultConfig() Config {
	return Config{
		Device:      "0",
		SampleEvery: 10,
		PublishFPS:  5,
		WindowTitle: "Live Detection - Safety Gear & Face",
		Locator:     "cascade",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.SampleEvery < 1 {
		errors = append(errors, "sample_every must be at least 1")
	}
	if c.PublishFPS < 0 || c.PublishFPS > 60 {
		errors = append(errors, "publish_fps must be between 0 and 60")
	}
	validLocators := map[string]bool{"": true, "cascade": true, "yunet": true}
	if !validLocators[c.Locator] {
		errors = append(errors, "locator must be empty, cascade, or yunet")
	}

	return errors
}
