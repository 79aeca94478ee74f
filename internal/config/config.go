// Package config loads ppewatch settings from a JSON file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-ppewatch/pkg/capture"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/server"
	"github.com/teslashibe/go-ppewatch/pkg/stabilize"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

// DefaultPort is the HTTP port used when neither file nor env set one.
const DefaultPort = "8080"

// Config is the full configuration surface.
type Config struct {
	LogLevel string `json:"log_level"`

	Vision    vision.Config    `json:"vision"`
	Detection detection.Config `json:"detection"`
	Stabilize Stabilize        `json:"stabilize"`
	Capture   capture.Config   `json:"capture"`
	Server    server.Config    `json:"server"`

	Cascade frame.CascadeConfig `json:"cascade"`
	YuNet   frame.YuNetConfig   `json:"yunet"`

	// IdentitiesFile maps gallery keys to display names.
	IdentitiesFile string `json:"identities_file"`
}

// Stabilize holds lock settings with the dwell window in seconds.
// The keyword allow-list is shared with Detection.
type Stabilize struct {
	FaceQualify     float64  `json:"face_qualify"`
	StreakThreshold int      `json:"streak_threshold"`
	ObjectQualify   float64  `json:"object_qualify"`
	DwellSeconds    float64  `json:"dwell_seconds"`
	IdleLabels      []string `json:"idle_labels"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	st := stabilize.DefaultConfig()
	return Config{
		LogLevel: "info",
		Vision: vision.Config{
			Provider: vision.ProviderRekognition,
			AWS: vision.AWSConfig{
				Region:      vision.DefaultRegion,
				Credentials: vision.CredentialsDefault,
			},
		},
		Detection: detection.DefaultConfig(),
		Stabilize: Stabilize{
			FaceQualify:     st.FaceQualify,
			StreakThreshold: st.StreakThreshold,
			ObjectQualify:   st.ObjectQualify,
			DwellSeconds:    st.Dwell.Seconds(),
			IdleLabels:      st.IdleLabels,
		},
		Capture: capture.DefaultConfig(),
		Server:  server.DefaultConfig(),
		Cascade: frame.DefaultCascadeConfig(),
		YuNet:   frame.DefaultYuNetConfig(),
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyProvider()
	return cfg, nil
}

// ApplyProvider turns off settings the selected provider cannot serve.
// Google Cloud Vision has no face galleries.
func (c *Config) ApplyProvider() {
	if c.Vision.Provider == vision.ProviderGoogle {
		c.Detection.IncludeFaces = false
	}
}

// Save writes cfg to path as indented JSON.
func Save(cfg Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Vision.Provider, "PPEWATCH_PROVIDER")
	setString(&c.Vision.AWS.Region, "AWS_REGION")
	setString(&c.Vision.AWS.Profile, "AWS_PROFILE")
	setString(&c.Vision.Google.APIKey, "GOOGLE_API_KEY")
	setString(&c.Detection.GalleryID, "PPEWATCH_GALLERY")
	setString(&c.IdentitiesFile, "PPEWATCH_IDENTITIES")
	setString(&c.Capture.Device, "PPEWATCH_DEVICE")
	setString(&c.Server.Port, "PORT")

	if c.Vision.AWS.Profile != "" && c.Vision.AWS.Credentials == vision.CredentialsDefault {
		c.Vision.AWS.Credentials = vision.CredentialsProfile
	}

	key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if key != "" && secret != "" {
		c.Vision.AWS.Credentials = vision.CredentialsStatic
		c.Vision.AWS.AccessKeyID = key
		c.Vision.AWS.SecretKey = secret
	}

	if v := os.Getenv("PPEWATCH_KEYWORDS"); v != "" {
		var kw detection.Keywords
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kw = append(kw, k)
			}
		}
		c.Detection.Keywords = kw
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// StabilizeConfig builds the engine configuration.
func (c *Config) StabilizeConfig() stabilize.Config {
	return stabilize.Config{
		FaceQualify:     c.Stabilize.FaceQualify,
		StreakThreshold: c.Stabilize.StreakThreshold,
		ObjectQualify:   c.Stabilize.ObjectQualify,
		Dwell:           time.Duration(c.Stabilize.DwellSeconds * float64(time.Second)),
		Keywords:        c.Detection.Keywords,
		IdleLabels:      c.Stabilize.IdleLabels,
	}
}

// Validate checks every section. Returns a list of validation errors,
// or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	validProviders := map[string]bool{vision.ProviderRekognition: true, vision.ProviderGoogle: true}
	if !validProviders[c.Vision.Provider] {
		errors = append(errors, "vision.provider must be rekognition or google")
	}
	if c.Vision.Provider == vision.ProviderRekognition {
		if err := c.Vision.AWS.Validate(); err != nil {
			errors = append(errors, "vision.aws: "+err.Error())
		}
	}

	for _, e := range c.Detection.Validate() {
		errors = append(errors, "detection."+e)
	}
	st := c.StabilizeConfig()
	for _, e := range st.Validate() {
		errors = append(errors, "stabilize."+e)
	}
	for _, e := range c.Capture.Validate() {
		errors = append(errors, "capture."+e)
	}

	if c.Server.Port == "" {
		errors = append(errors, "server.port is required")
	}
	if c.Server.MaxUploadMB < 1 || c.Server.MaxUploadMB > 100 {
		errors = append(errors, "server.max_upload_mb must be between 1 and 100")
	}

	return errors
}
