package detection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/teslashibe/go-ppewatch/pkg/identity"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

var frame = []byte{0xff, 0xd8, 0xff, 0xd9}

func TestKeywordsMatch(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Helmet", true},
		{"Hardhat", true},
		{"Safety Vest", true},
		{"Life Vest", true},
		{"GLOVES", true},
		{"Rubber Boots", true},
		{"Goggles", true},
		{"Person", false},
		{"Hat", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := DefaultKeywords.Match(tt.label); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}

	if (Keywords{""}).Match("anything") {
		t.Error("empty keyword should never match")
	}
}

func TestEvaluate(t *testing.T) {
	mock := vision.NewMock()
	mock.DetectLabelsFunc = func(_ context.Context, _ []byte, maxLabels int, minConf float64) ([]vision.Label, error) {
		if maxLabels != 10 || minConf != 75 {
			t.Errorf("DetectLabels(%d, %v), want (10, 75)", maxLabels, minConf)
		}
		return []vision.Label{
			{Name: "Person", Confidence: 99},
			{Name: "Helmet", Confidence: 88},
		}, nil
	}
	mock.SearchFacesByImageFunc = func(_ context.Context, gallery string, _ []byte, threshold float64, maxFaces int) ([]vision.FaceHit, error) {
		if gallery != "new_face_collection" || threshold != 95 || maxFaces != 5 {
			t.Errorf("SearchFacesByImage(%q, %v, %d)", gallery, threshold, maxFaces)
		}
		return []vision.FaceHit{
			{ExternalID: "imag1.jpg", Similarity: 97},
			{ExternalID: "stranger.jpg", Similarity: 96},
		}, nil
	}

	names := identity.NewStatic(map[string]string{"imag1.jpg": "Akshat"})
	a := New(mock, names, DefaultConfig())

	res := a.Evaluate(context.Background(), frame)

	if res.ObjectErr != nil || res.FaceErr != nil {
		t.Fatalf("unexpected errors: %v, %v", res.ObjectErr, res.FaceErr)
	}
	if len(res.Objects) != 2 {
		t.Errorf("Objects = %+v", res.Objects)
	}
	if len(res.Safety) != 1 || res.Safety[0].Label != "Helmet" {
		t.Errorf("Safety = %+v", res.Safety)
	}
	if !res.Safe() {
		t.Error("Safe() = false")
	}
	if len(res.Faces) != 2 {
		t.Fatalf("Faces = %+v", res.Faces)
	}
	if res.Faces[0].Identity != "Akshat" || res.Faces[0].ExternalID != "imag1.jpg" {
		t.Errorf("Faces[0] = %+v", res.Faces[0])
	}
	if res.Faces[1].Identity != identity.Placeholder {
		t.Errorf("unmapped face = %q, want placeholder", res.Faces[1].Identity)
	}
}

func TestEvaluateIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		labelErr    error
		faceErr     error
		wantObjects int
		wantFaces   int
	}{
		{"face search fails", nil, boom, 1, 0},
		{"label detection fails", boom, nil, 0, 1},
		{"both fail", boom, boom, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := vision.NewMock()
			mock.DetectLabelsFunc = func(context.Context, []byte, int, float64) ([]vision.Label, error) {
				if tt.labelErr != nil {
					return nil, tt.labelErr
				}
				return []vision.Label{{Name: "Hardhat", Confidence: 90}}, nil
			}
			mock.SearchFacesByImageFunc = func(context.Context, string, []byte, float64, int) ([]vision.FaceHit, error) {
				if tt.faceErr != nil {
					return nil, tt.faceErr
				}
				return []vision.FaceHit{{ExternalID: "a", Similarity: 99}}, nil
			}

			res := New(mock, nil, DefaultConfig()).Evaluate(context.Background(), frame)

			if len(res.Objects) != tt.wantObjects {
				t.Errorf("Objects = %d, want %d", len(res.Objects), tt.wantObjects)
			}
			if len(res.Faces) != tt.wantFaces {
				t.Errorf("Faces = %d, want %d", len(res.Faces), tt.wantFaces)
			}
			if !errors.Is(res.ObjectErr, tt.labelErr) {
				t.Errorf("ObjectErr = %v, want %v", res.ObjectErr, tt.labelErr)
			}
			if !errors.Is(res.FaceErr, tt.faceErr) {
				t.Errorf("FaceErr = %v, want %v", res.FaceErr, tt.faceErr)
			}
		})
	}
}

func TestEvaluateEmptyFrame(t *testing.T) {
	mock := vision.NewMock()
	res := New(mock, nil, DefaultConfig()).Evaluate(context.Background(), nil)

	if !errors.Is(res.ObjectErr, ErrEmptyFrame) || !errors.Is(res.FaceErr, ErrEmptyFrame) {
		t.Errorf("errors = %v, %v", res.ObjectErr, res.FaceErr)
	}
	if n := len(mock.Calls()); n != 0 {
		t.Errorf("provider called %d times for an empty frame", n)
	}
}

func TestEvaluateWithoutFaces(t *testing.T) {
	mock := vision.NewMock()
	cfg := DefaultConfig()
	cfg.IncludeFaces = false

	res := New(mock, nil, cfg).Evaluate(context.Background(), frame)

	if mock.CallCount("SearchFacesByImage") != 0 {
		t.Error("face search should be skipped")
	}
	if mock.CallCount("DetectLabels") != 1 {
		t.Error("label detection should run")
	}
	if res.FaceErr != nil || res.Faces != nil {
		t.Errorf("faces = %v, err = %v", res.Faces, res.FaceErr)
	}
}

func TestEvaluateStopsUnsupportedFaceSearch(t *testing.T) {
	mock := vision.NewMock()
	mock.SearchFacesByImageFunc = func(context.Context, string, []byte, float64, int) ([]vision.FaceHit, error) {
		return nil, vision.WrapError("google", "search faces", vision.ErrNotSupported)
	}
	a := New(mock, nil, DefaultConfig())

	first := a.Evaluate(context.Background(), frame)
	if !errors.Is(first.FaceErr, vision.ErrNotSupported) {
		t.Fatalf("first FaceErr = %v, want ErrNotSupported", first.FaceErr)
	}
	if a.FacesEnabled() {
		t.Fatal("faces still enabled after ErrNotSupported")
	}

	for i := 0; i < 3; i++ {
		res := a.Evaluate(context.Background(), frame)
		if res.FaceErr != nil {
			t.Errorf("evaluation %d: FaceErr = %v, want nil", i, res.FaceErr)
		}
	}
	if n := mock.CallCount("SearchFacesByImage"); n != 1 {
		t.Errorf("face search calls = %d, want 1", n)
	}
	if n := mock.CallCount("DetectLabels"); n != 4 {
		t.Errorf("label calls = %d, want 4", n)
	}
}

func TestEvaluateKeepsFacesAfterOtherErrors(t *testing.T) {
	mock := vision.NewMock()
	mock.SearchFacesByImageFunc = func(context.Context, string, []byte, float64, int) ([]vision.FaceHit, error) {
		return nil, errors.New("throttled")
	}
	a := New(mock, nil, DefaultConfig())

	a.Evaluate(context.Background(), frame)
	a.Evaluate(context.Background(), frame)
	if !a.FacesEnabled() || mock.CallCount("SearchFacesByImage") != 2 {
		t.Errorf("transient error disabled face search: calls = %d", mock.CallCount("SearchFacesByImage"))
	}
}

func TestEvaluateRegions(t *testing.T) {
	var n atomic.Int32
	mock := vision.NewMock()
	mock.DetectLabelsFunc = func(context.Context, []byte, int, float64) ([]vision.Label, error) {
		if n.Add(1) == 1 {
			return nil, errors.New("first region fails")
		}
		return []vision.Label{{Name: "Goggles", Confidence: 80}}, nil
	}
	mock.SearchFacesByImageFunc = func(context.Context, string, []byte, float64, int) ([]vision.FaceHit, error) {
		return []vision.FaceHit{{ExternalID: "x", Similarity: 96}}, nil
	}

	res := New(mock, nil, DefaultConfig()).EvaluateRegions(context.Background(), [][]byte{frame, frame, frame})

	if len(res.Objects) != 2 || len(res.Safety) != 2 {
		t.Errorf("Objects = %d, Safety = %d, want 2, 2", len(res.Objects), len(res.Safety))
	}
	if len(res.Faces) != 3 {
		t.Errorf("Faces = %d, want 3", len(res.Faces))
	}
	if res.ObjectErr == nil {
		t.Error("first region error should be kept")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}

	bad := DefaultConfig()
	bad.MinConfidence = 101
	bad.GalleryID = ""
	bad.Keywords = nil
	if errs := bad.Validate(); len(errs) != 3 {
		t.Errorf("Validate() = %v, want 3 errors", errs)
	}

	noFaces := DefaultConfig()
	noFaces.IncludeFaces = false
	noFaces.GalleryID = ""
	if errs := noFaces.Validate(); len(errs) != 0 {
		t.Errorf("gallery should not be required without faces: %v", errs)
	}
}
