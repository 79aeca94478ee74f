package capture

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-ppewatch/pkg/frame"
)

// DeviceSource reads frames from a camera or a video file through OpenCV.
type DeviceSource struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenDevice opens a camera index ("0") or a file / stream URL.
// Failure here is fatal for live mode.
func OpenDevice(device string) (*DeviceSource, error) {
	var target any = device
	if id, err := strconv.Atoi(device); err == nil {
		target = id
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open capture device %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open capture device %s: not available", device)
	}

	return &DeviceSource{cap: vc, mat: gocv.NewMat()}, nil
}

// Read implements Source. Frames are returned as JPEG.
func (d *DeviceSource) Read() ([]byte, error) {
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, errors.New("device returned no frame")
	}
	return frame.EncodeMat(d.mat)
}

// Close implements Source.
func (d *DeviceSource) Close() error {
	d.mat.Close()
	return d.cap.Close()
}
