// Package vision is the boundary to the cloud vision provider.
//
// All detection, face embedding and face matching happens remotely. This
// package only shapes requests, forwards image bytes and maps responses into
// provider-neutral types. Two backends exist: AWS Rekognition (labels, face
// search and gallery management) and Google Cloud Vision (labels only).
//
// Example usage:
//
//	p, _ := vision.NewRekognition(ctx, vision.AWSConfig{Region: "us-east-1"})
//	defer p.Close()
//
//	labels, _ := p.DetectLabels(ctx, jpeg, 10, 75)
//	hits, _ := p.SearchFacesByImage(ctx, "site-gallery", jpeg, 95, 5)
package vision

import "context"

// Provider is the remote vision capability used by the detection adapter
// and the gallery management commands.
type Provider interface {
	// DetectLabels returns generic labels at or above minConfidence (0-100).
	DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]Label, error)

	// SearchFacesByImage matches the largest face in image against a gallery.
	// An image without any face yields an empty result, not an error.
	SearchFacesByImage(ctx context.Context, galleryID string, image []byte, threshold float64, maxFaces int) ([]FaceHit, error)

	// CreateGallery creates a face gallery. An existing gallery is success.
	CreateGallery(ctx context.Context, galleryID string) error

	// DeleteGallery deletes a face gallery. A missing gallery is success.
	DeleteGallery(ctx context.Context, galleryID string) error

	// IndexFace adds the faces found in image to the gallery under externalID.
	IndexFace(ctx context.Context, galleryID string, image []byte, externalID string) ([]IndexedFace, error)

	// IndexFaceFromObject is IndexFace for an image stored in object storage.
	IndexFaceFromObject(ctx context.Context, galleryID string, ref ObjectRef, externalID string) ([]IndexedFace, error)

	// Name identifies the backend in logs and errors.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Label is a generic detection returned by the provider.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0-100
}

// FaceHit is a gallery match for a face in the searched image.
type FaceHit struct {
	ExternalID string  `json:"external_id"` // key the face was indexed under
	FaceID     string  `json:"face_id"`
	Similarity float64 `json:"similarity"` // 0-100
}

// IndexedFace describes one face added to a gallery.
type IndexedFace struct {
	FaceID     string  `json:"face_id"`
	ExternalID string  `json:"external_id"`
	Confidence float64 `json:"confidence"`
}

// ObjectRef points at an image in object storage.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}
