package frame

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-ppewatch/internal/log"
)

// YuNetConfig holds FaceDetectorYN parameters.
type YuNetConfig struct {
	ModelPath        string  `json:"model_path"`
	ConfidenceThresh float64 `json:"confidence_thresh"`
	InputWidth       int     `json:"input_width"`
	InputHeight      int     `json:"input_height"`
}

// DefaultYuNetConfig returns production defaults for YuNet.
func DefaultYuNetConfig() YuNetConfig {
	return YuNetConfig{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// YuNetLocator finds faces with OpenCV's FaceDetectorYN. It is more robust
// to pose than the Haar cascade but needs the ONNX model on disk.
type YuNetLocator struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex
}

// NewYuNetLocator loads the model at cfg.ModelPath.
func NewYuNetLocator(cfg YuNetConfig) (*YuNetLocator, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	// Input size is reset per frame in Locate.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetLocator{detector: detector}, nil
}

// Locate implements Locator.
func (y *YuNetLocator) Locate(data []byte) ([]image.Rectangle, error) {
	img, err := Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(img, &faces)

	// Rows are x, y, w, h, five landmark pairs, score.
	rects := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		yy := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		rects = append(rects, image.Rect(x, yy, x+w, yy+h))
	}

	if len(rects) > 0 {
		log.Debug("yunet located faces", "count", len(rects))
	}
	return rects, nil
}

// Regions returns JPEG crops of every located face.
func (y *YuNetLocator) Regions(data []byte) ([][]byte, []image.Rectangle, error) {
	return Regions(y, data)
}

// Close releases the detector.
func (y *YuNetLocator) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}
