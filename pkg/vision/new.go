package vision

import (
	"context"
	"fmt"
)

// Config selects and configures a Provider.
type Config struct {
	Provider string       `json:"provider"` // rekognition or google
	AWS      AWSConfig    `json:"aws"`
	Google   GoogleConfig `json:"google"`
}

// New builds the provider named in cfg.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", ProviderRekognition:
		return NewRekognition(ctx, cfg.AWS)
	case ProviderGoogle:
		return NewGoogle(ctx, cfg.Google)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
