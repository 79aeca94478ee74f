package vision

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	DetectLabelsFunc        func(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]Label, error)
	SearchFacesByImageFunc  func(ctx context.Context, galleryID string, image []byte, threshold float64, maxFaces int) ([]FaceHit, error)
	CreateGalleryFunc       func(ctx context.Context, galleryID string) error
	DeleteGalleryFunc       func(ctx context.Context, galleryID string) error
	IndexFaceFunc           func(ctx context.Context, galleryID string, image []byte, externalID string) ([]IndexedFace, error)
	IndexFaceFromObjectFunc func(ctx context.Context, galleryID string, ref ObjectRef, externalID string) ([]IndexedFace, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	Gallery string
	Time    time.Time
}

// NewMock creates a mock that finds nothing and accepts every gallery call.
func NewMock() *Mock {
	return &Mock{
		DetectLabelsFunc: func(context.Context, []byte, int, float64) ([]Label, error) {
			return nil, nil
		},
		SearchFacesByImageFunc: func(context.Context, string, []byte, float64, int) ([]FaceHit, error) {
			return nil, nil
		},
		CreateGalleryFunc: func(context.Context, string) error { return nil },
		DeleteGalleryFunc: func(context.Context, string) error { return nil },
		IndexFaceFunc: func(_ context.Context, _ string, _ []byte, externalID string) ([]IndexedFace, error) {
			return []IndexedFace{{FaceID: "mock-face", ExternalID: externalID, Confidence: 99.9}}, nil
		},
		IndexFaceFromObjectFunc: func(_ context.Context, _ string, ref ObjectRef, externalID string) ([]IndexedFace, error) {
			if externalID == "" {
				externalID = ref.Key
			}
			return []IndexedFace{{FaceID: "mock-face", ExternalID: externalID, Confidence: 99.9}}, nil
		},
	}
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Close implements Provider.
func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

// DetectLabels calls DetectLabelsFunc and records the call.
func (m *Mock) DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]Label, error) {
	m.record("DetectLabels", "")
	if m.DetectLabelsFunc != nil {
		return m.DetectLabelsFunc(ctx, image, maxLabels, minConfidence)
	}
	return nil, WrapError("mock", "detect labels", ErrNotSupported)
}

// SearchFacesByImage calls SearchFacesByImageFunc and records the call.
func (m *Mock) SearchFacesByImage(ctx context.Context, galleryID string, image []byte, threshold float64, maxFaces int) ([]FaceHit, error) {
	m.record("SearchFacesByImage", galleryID)
	if m.SearchFacesByImageFunc != nil {
		return m.SearchFacesByImageFunc(ctx, galleryID, image, threshold, maxFaces)
	}
	return nil, WrapError("mock", "search faces", ErrNotSupported)
}

// CreateGallery calls CreateGalleryFunc and records the call.
func (m *Mock) CreateGallery(ctx context.Context, galleryID string) error {
	m.record("CreateGallery", galleryID)
	if m.CreateGalleryFunc != nil {
		return m.CreateGalleryFunc(ctx, galleryID)
	}
	return WrapError("mock", "create gallery", ErrNotSupported)
}

// DeleteGallery calls DeleteGalleryFunc and records the call.
func (m *Mock) DeleteGallery(ctx context.Context, galleryID string) error {
	m.record("DeleteGallery", galleryID)
	if m.DeleteGalleryFunc != nil {
		return m.DeleteGalleryFunc(ctx, galleryID)
	}
	return WrapError("mock", "delete gallery", ErrNotSupported)
}

// IndexFace calls IndexFaceFunc and records the call.
func (m *Mock) IndexFace(ctx context.Context, galleryID string, image []byte, externalID string) ([]IndexedFace, error) {
	m.record("IndexFace", galleryID)
	if m.IndexFaceFunc != nil {
		return m.IndexFaceFunc(ctx, galleryID, image, externalID)
	}
	return nil, WrapError("mock", "index face", ErrNotSupported)
}

// IndexFaceFromObject calls IndexFaceFromObjectFunc and records the call.
func (m *Mock) IndexFaceFromObject(ctx context.Context, galleryID string, ref ObjectRef, externalID string) ([]IndexedFace, error) {
	m.record("IndexFaceFromObject", galleryID)
	if m.IndexFaceFromObjectFunc != nil {
		return m.IndexFaceFromObjectFunc(ctx, galleryID, ref, externalID)
	}
	return nil, WrapError("mock", "index face", ErrNotSupported)
}

func (m *Mock) record(method, gallery string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Gallery: gallery, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
