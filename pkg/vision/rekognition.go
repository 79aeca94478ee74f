package vision

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/teslashibe/go-ppewatch/internal/log"
)

// ProviderRekognition is the name reported by the Rekognition provider.
const ProviderRekognition = "rekognition"

// RekognitionAPI is the subset of the Rekognition client used here.
// *rekognition.Client satisfies it; tests supply a fake.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	SearchFacesByImage(ctx context.Context, params *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
	CreateCollection(ctx context.Context, params *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
	DeleteCollection(ctx context.Context, params *rekognition.DeleteCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.DeleteCollectionOutput, error)
	IndexFaces(ctx context.Context, params *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
}

// Rekognition implements Provider on AWS Rekognition.
type Rekognition struct {
	api RekognitionAPI
}

// NewRekognition creates a Rekognition provider from cfg.
func NewRekognition(ctx context.Context, cfg AWSConfig) (*Rekognition, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, WrapError(ProviderRekognition, "init", err)
	}
	log.Debug("rekognition client ready", "region", awsCfg.Region, "credentials", cfg.Credentials)
	return NewRekognitionWithAPI(rekognition.NewFromConfig(awsCfg)), nil
}

// NewRekognitionWithAPI wraps an existing client.
func NewRekognitionWithAPI(api RekognitionAPI) *Rekognition {
	return &Rekognition{api: api}
}

// Name implements Provider.
func (r *Rekognition) Name() string { return ProviderRekognition }

// Close implements Provider.
func (r *Rekognition) Close() error { return nil }

// DetectLabels implements Provider.
func (r *Rekognition) DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]Label, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	out, err := r.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(int32(maxLabels)),
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, WrapError(ProviderRekognition, "detect labels", err)
	}

	labels := make([]Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}
	return labels, nil
}

// SearchFacesByImage implements Provider.
func (r *Rekognition) SearchFacesByImage(ctx context.Context, galleryID string, image []byte, threshold float64, maxFaces int) ([]FaceHit, error) {
	if galleryID == "" {
		return nil, ErrNoGallery
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	out, err := r.api.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(galleryID),
		Image:              &types.Image{Bytes: image},
		FaceMatchThreshold: aws.Float32(float32(threshold)),
		MaxFaces:           aws.Int32(int32(maxFaces)),
	})
	if err != nil {
		if isNoFace(err) {
			return nil, nil
		}
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, WrapError(ProviderRekognition, "search faces", ErrGalleryNotFound)
		}
		return nil, WrapError(ProviderRekognition, "search faces", err)
	}

	hits := make([]FaceHit, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		if m.Face == nil {
			continue
		}
		hits = append(hits, FaceHit{
			ExternalID: aws.ToString(m.Face.ExternalImageId),
			FaceID:     aws.ToString(m.Face.FaceId),
			Similarity: float64(aws.ToFloat32(m.Similarity)),
		})
	}
	return hits, nil
}

// CreateGallery implements Provider.
func (r *Rekognition) CreateGallery(ctx context.Context, galleryID string) error {
	if galleryID == "" {
		return ErrNoGallery
	}

	_, err := r.api.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(galleryID),
	})
	var exists *types.ResourceAlreadyExistsException
	switch {
	case err == nil:
		log.Info("gallery created", "gallery", galleryID)
	case errors.As(err, &exists):
		log.Info("gallery already exists", "gallery", galleryID)
	default:
		return WrapError(ProviderRekognition, "create gallery", err)
	}
	return nil
}

// DeleteGallery implements Provider.
func (r *Rekognition) DeleteGallery(ctx context.Context, galleryID string) error {
	if galleryID == "" {
		return ErrNoGallery
	}

	_, err := r.api.DeleteCollection(ctx, &rekognition.DeleteCollectionInput{
		CollectionId: aws.String(galleryID),
	})
	var missing *types.ResourceNotFoundException
	switch {
	case err == nil:
		log.Info("gallery deleted", "gallery", galleryID)
	case errors.As(err, &missing):
		log.Info("gallery does not exist", "gallery", galleryID)
	default:
		return WrapError(ProviderRekognition, "delete gallery", err)
	}
	return nil
}

// IndexFace implements Provider.
func (r *Rekognition) IndexFace(ctx context.Context, galleryID string, image []byte, externalID string) ([]IndexedFace, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	return r.index(ctx, galleryID, &types.Image{Bytes: image}, externalID)
}

// IndexFaceFromObject implements Provider.
func (r *Rekognition) IndexFaceFromObject(ctx context.Context, galleryID string, ref ObjectRef, externalID string) ([]IndexedFace, error) {
	if ref.Bucket == "" || ref.Key == "" {
		return nil, ErrEmptyImage
	}
	if externalID == "" {
		externalID = ref.Key
	}
	return r.index(ctx, galleryID, &types.Image{
		S3Object: &types.S3Object{Bucket: aws.String(ref.Bucket), Name: aws.String(ref.Key)},
	}, externalID)
}

func (r *Rekognition) index(ctx context.Context, galleryID string, img *types.Image, externalID string) ([]IndexedFace, error) {
	if galleryID == "" {
		return nil, ErrNoGallery
	}

	out, err := r.api.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:        aws.String(galleryID),
		Image:               img,
		ExternalImageId:     aws.String(externalID),
		DetectionAttributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, WrapError(ProviderRekognition, "index face", err)
	}

	faces := make([]IndexedFace, 0, len(out.FaceRecords))
	for _, rec := range out.FaceRecords {
		if rec.Face == nil {
			continue
		}
		faces = append(faces, IndexedFace{
			FaceID:     aws.ToString(rec.Face.FaceId),
			ExternalID: aws.ToString(rec.Face.ExternalImageId),
			Confidence: float64(aws.ToFloat32(rec.Face.Confidence)),
		})
	}
	log.Info("faces indexed", "gallery", galleryID, "external_id", externalID, "count", len(faces))
	return faces, nil
}

// isNoFace reports whether err is Rekognition's complaint that the searched
// image contains no face.
func isNoFace(err error) bool {
	var invalid *types.InvalidParameterException
	if !errors.As(err, &invalid) {
		return false
	}
	return strings.Contains(strings.ToLower(invalid.ErrorMessage()), "no faces")
}
