package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/stabilize"
)

// Overlay colors and positions.
var (
	objectColor = color.RGBA{0, 255, 0, 0}
	faceColor   = color.RGBA{0, 0, 255, 0}
	idleColor   = color.RGBA{150, 150, 150, 0}
	boxColor    = color.RGBA{0, 255, 0, 0}

	objectOrigin = image.Pt(10, 30)
	faceOrigin   = image.Pt(10, 60)
)

const (
	fontScale = 0.9
	thickness = 2
	quitKey   = 'q'
)

// WindowDisplay shows frames in a native OpenCV window.
// It must be driven from the main OS thread on macOS.
type WindowDisplay struct {
	win *gocv.Window
}

// NewWindowDisplay opens a preview window.
func NewWindowDisplay(title string) *WindowDisplay {
	return &WindowDisplay{win: gocv.NewWindow(title)}
}

// Show implements Display. It draws the face boxes, the object slot on the
// first line and the face slot on the second, then polls the keyboard.
func (w *WindowDisplay) Show(data []byte, state stabilize.DisplayState, boxes []image.Rectangle) bool {
	img, err := frame.Decode(data)
	defer img.Close()
	if err != nil {
		log.Debug("skipping undecodable frame", "error", err)
		return w.win.WaitKey(1)&0xFF == quitKey
	}

	Annotate(&img, state, boxes)
	w.win.IMShow(img)
	return w.win.WaitKey(1)&0xFF == quitKey
}

// Close implements Display.
func (w *WindowDisplay) Close() error {
	return w.win.Close()
}

// AnnotateJPEG draws the verdict overlay onto an encoded frame and
// returns it as JPEG. It satisfies Annotator.
func AnnotateJPEG(data []byte, state stabilize.DisplayState, boxes []image.Rectangle) ([]byte, error) {
	img, err := frame.Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}
	Annotate(&img, state, boxes)
	return frame.EncodeMat(img)
}

// Annotate draws the verdict overlay onto img.
func Annotate(img *gocv.Mat, state stabilize.DisplayState, boxes []image.Rectangle) {
	for _, b := range boxes {
		gocv.Rectangle(img, b, boxColor, thickness)
	}
	drawSlot(img, state.Object, objectOrigin, objectColor)
	drawSlot(img, state.Face, faceOrigin, faceColor)
}

func drawSlot(img *gocv.Mat, s stabilize.Slot, at image.Point, locked color.RGBA) {
	c := idleColor
	if s.Locked {
		c = locked
	}
	gocv.PutText(img, s.Text(), at, gocv.FontHersheySimplex, fontScale, c, thickness)
}
