// Package frame decodes, validates and re-encodes camera frames with gocv,
// and finds face regions locally so they can be sent as separate crops.
package frame

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrEmpty is returned for input with no bytes.
	ErrEmpty = errors.New("frame: empty input")

	// ErrDecode is returned when input is not a decodable image.
	ErrDecode = errors.New("frame: could not decode image")
)

// Decode parses encoded image bytes into a color Mat. The caller owns
// the returned Mat and must Close it.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), ErrEmpty
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Empty() {
		return img, ErrDecode
	}
	return img, nil
}

// Normalize decodes any supported image format and re-encodes it as JPEG,
// the wire format the vision provider expects.
func Normalize(data []byte) ([]byte, error) {
	img, err := Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}
	return EncodeMat(img)
}

// EncodeMat encodes a Mat as JPEG.
func EncodeMat(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, ErrEmpty
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}

// Crop cuts rects out of an encoded frame and returns each as JPEG.
// Rects are clipped to the frame; rects entirely outside it are skipped.
func Crop(data []byte, rects []image.Rectangle) ([][]byte, error) {
	img, err := Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}
	return cropMat(img, rects)
}

func cropMat(img gocv.Mat, rects []image.Rectangle) ([][]byte, error) {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	crops := make([][]byte, 0, len(rects))
	for _, r := range rects {
		r = r.Intersect(bounds)
		if r.Empty() {
			continue
		}
		region := img.Region(r)
		jpeg, err := EncodeMat(region)
		region.Close()
		if err != nil {
			return nil, err
		}
		crops = append(crops, jpeg)
	}
	return crops, nil
}
