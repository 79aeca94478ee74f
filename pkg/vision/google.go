package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gvision "google.golang.org/api/vision/v1"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-ppewatch/internal/httpc"
	"github.com/teslashibe/go-ppewatch/internal/log"
)

// ProviderGoogle is the name reported by the Google Cloud Vision provider.
const ProviderGoogle = "google"

// GoogleConfig configures the Google Cloud Vision provider.
// With neither APIKey nor CredentialsFile set, application default
// credentials are used.
type GoogleConfig struct {
	APIKey          string `json:"api_key,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"` // override, mostly for tests
}

// Google implements the label half of Provider on Google Cloud Vision.
// It has no face galleries; those operations return ErrNotSupported.
type Google struct {
	svc *gvision.Service
}

// NewGoogle creates a Google Cloud Vision provider.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	opts, err := googleOptions(ctx, cfg)
	if err != nil {
		return nil, WrapError(ProviderGoogle, "init", err)
	}

	svc, err := gvision.NewService(ctx, opts...)
	if err != nil {
		return nil, WrapError(ProviderGoogle, "init", err)
	}
	return &Google{svc: svc}, nil
}

func googleOptions(ctx context.Context, cfg GoogleConfig) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	if cfg.APIKey != "" {
		return append(opts, option.WithAPIKey(cfg.APIKey)), nil
	}

	// Token fetches and API calls share the same transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpc.Client)

	var ts oauth2.TokenSource
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, gvision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		ts = creds.TokenSource
	} else {
		var err error
		ts, err = google.DefaultTokenSource(ctx, gvision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
	}

	return append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts))), nil
}

// Name implements Provider.
func (g *Google) Name() string { return ProviderGoogle }

// Close implements Provider.
func (g *Google) Close() error { return nil }

// DetectLabels implements Provider. Scores are rescaled from 0-1 to 0-100
// and filtered locally, since the API has no confidence floor.
func (g *Google) DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]Label, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image: &gvision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*gvision.Feature{{
				Type:       "LABEL_DETECTION",
				MaxResults: int64(maxLabels),
			}},
		}},
	}

	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(ProviderGoogle, "detect labels", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, WrapError(ProviderGoogle, "detect labels",
			fmt.Errorf("status %d: %s", r.Error.Code, r.Error.Message))
	}

	labels := make([]Label, 0, len(r.LabelAnnotations))
	for _, a := range r.LabelAnnotations {
		conf := a.Score * 100
		if conf < minConfidence {
			continue
		}
		labels = append(labels, Label{Name: a.Description, Confidence: conf})
	}
	log.Debug("google labels", "count", len(labels))
	return labels, nil
}

// SearchFacesByImage implements Provider.
func (g *Google) SearchFacesByImage(context.Context, string, []byte, float64, int) ([]FaceHit, error) {
	return nil, WrapError(ProviderGoogle, "search faces", ErrNotSupported)
}

// CreateGallery implements Provider.
func (g *Google) CreateGallery(context.Context, string) error {
	return WrapError(ProviderGoogle, "create gallery", ErrNotSupported)
}

// DeleteGallery implements Provider.
func (g *Google) DeleteGallery(context.Context, string) error {
	return WrapError(ProviderGoogle, "delete gallery", ErrNotSupported)
}

// IndexFace implements Provider.
func (g *Google) IndexFace(context.Context, string, []byte, string) ([]IndexedFace, error) {
	return nil, WrapError(ProviderGoogle, "index face", ErrNotSupported)
}

// IndexFaceFromObject implements Provider.
func (g *Google) IndexFaceFromObject(context.Context, string, ObjectRef, string) ([]IndexedFace, error) {
	return nil, WrapError(ProviderGoogle, "index face", ErrNotSupported)
}
