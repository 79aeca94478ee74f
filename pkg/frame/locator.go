package frame

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-ppewatch/internal/log"
)

// Locator finds face rectangles in an encoded frame.
type Locator interface {
	Locate(data []byte) ([]image.Rectangle, error)
	Close() error
}

// Regions locates faces with l and returns them as JPEG crops along with
// their rectangles. No faces yields empty slices and a nil error; callers
// then send the full frame.
func Regions(l Locator, data []byte) ([][]byte, []image.Rectangle, error) {
	rects, err := l.Locate(data)
	if err != nil || len(rects) == 0 {
		return nil, nil, err
	}
	crops, err := Crop(data, rects)
	if err != nil {
		return nil, nil, err
	}
	return crops, rects, nil
}

// CascadeConfig holds Haar cascade parameters.
type CascadeConfig struct {
	Path         string  `json:"path"` // haarcascade_frontalface_default.xml
	ScaleFactor  float64 `json:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors"`
	MinSize      int     `json:"min_size"` // pixels, square
}

// DefaultCascadeConfig returns the frontal-face parameters.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		Path:         "models/haarcascade_frontalface_default.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
	}
}

// CascadeLocator finds faces with an OpenCV Haar cascade.
type CascadeLocator struct {
	classifier gocv.CascadeClassifier
	cfg        CascadeConfig
	mu         sync.Mutex // CascadeClassifier is not goroutine-safe
}

// NewCascadeLocator loads the cascade at cfg.Path.
func NewCascadeLocator(cfg CascadeConfig) (*CascadeLocator, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("cascade file not found: %s", cfg.Path)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.Path) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", cfg.Path)
	}

	log.Debug("cascade loaded", "path", cfg.Path)
	return &CascadeLocator{classifier: classifier, cfg: cfg}, nil
}

// Locate implements Locator.
func (c *CascadeLocator) Locate(data []byte) ([]image.Rectangle, error) {
	img, err := Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(
		gray,
		c.cfg.ScaleFactor,
		c.cfg.MinNeighbors,
		0,
		image.Pt(c.cfg.MinSize, c.cfg.MinSize),
		image.Pt(0, 0),
	)
	c.mu.Unlock()

	if len(rects) > 0 {
		log.Debug("faces located", "count", len(rects))
	}
	return rects, nil
}

// Regions returns JPEG crops of every located face.
func (c *CascadeLocator) Regions(data []byte) ([][]byte, []image.Rectangle, error) {
	return Regions(c, data)
}

// Close releases the classifier.
func (c *CascadeLocator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
