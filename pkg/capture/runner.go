// Package capture runs the live pull loop: read a frame, evaluate every Nth
// one, fold the result into the stabilization engine, then display.
//
// The loop is single-threaded. A slow remote call stalls capture; there is
// no queue and no concurrent evaluation.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
	"github.com/teslashibe/go-ppewatch/pkg/stabilize"
)

// ErrReadFrame is returned when the source stops producing frames.
var ErrReadFrame = errors.New("capture: failed to read frame")

// Source produces encoded frames.
type Source interface {
	Read() ([]byte, error)
	Close() error
}

// Display renders a frame with the current verdict and reports whether
// the operator asked to quit.
type Display interface {
	Show(frame []byte, state stabilize.DisplayState, boxes []image.Rectangle) (quit bool)
	Close() error
}

// Evaluator is the detection adapter as seen by the loop.
type Evaluator interface {
	Evaluate(ctx context.Context, frame []byte) detection.Result
	EvaluateRegions(ctx context.Context, regions [][]byte) detection.Result
}

// RegionFinder crops local face regions out of a frame.
type RegionFinder interface {
	Regions(frame []byte) ([][]byte, []image.Rectangle, error)
}

// Publisher fans data out to remote viewers.
type Publisher interface {
	BroadcastJSON(v any) error
	BroadcastBinary(data []byte)
}

// Verdict is the per-frame message sent to verdict viewers.
type Verdict struct {
	Frame   int64                  `json:"frame"`
	Time    time.Time              `json:"time"`
	Sampled bool                   `json:"sampled"`
	State   stabilize.DisplayState `json:"state"`
	Object  string                 `json:"object_text"`
	Face    string                 `json:"face_text"`
	Boxes   []image.Rectangle      `json:"boxes,omitempty"`
}

// Stats counts loop activity.
type Stats struct {
	Frames       int64 `json:"frames"`
	Evaluations  int64 `json:"evaluations"`
	ObjectErrors int64 `json:"object_errors"`
	FaceErrors   int64 `json:"face_errors"`
	Published    int64 `json:"frames_published"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithDisplay sets the preview display. Without one the loop runs headless
// until its context is cancelled.
func WithDisplay(d Display) Option {
	return func(r *Runner) { r.display = d }
}

// WithRegionFinder enables local face cropping before evaluation.
func WithRegionFinder(f RegionFinder) Option {
	return func(r *Runner) { r.finder = f }
}

// WithVerdicts publishes every display state.
func WithVerdicts(p Publisher) Option {
	return func(r *Runner) { r.verdicts = p }
}

// WithFrames publishes raw JPEG frames, rate limited by Config.PublishFPS.
func WithFrames(p Publisher) Option {
	return func(r *Runner) { r.frames = p }
}

// Annotator draws the verdict overlay onto an encoded frame.
type Annotator func(frame []byte, state stabilize.DisplayState, boxes []image.Rectangle) ([]byte, error)

// WithAnnotator draws the overlay onto frames before they are published.
// Without one, viewers receive the raw camera frame.
func WithAnnotator(fn Annotator) Option {
	return func(r *Runner) { r.annotate = fn }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner owns the source, the engine and the display for one live session.
type Runner struct {
	cfg     Config
	source  Source
	eval    Evaluator
	engine  *stabilize.Engine
	display Display
	finder  RegionFinder

	verdicts Publisher
	frames   Publisher
	annotate Annotator
	now      func() time.Time

	lastPublish time.Time
	boxes       []image.Rectangle

	frameCount   atomic.Int64
	evaluations  atomic.Int64
	objectErrors atomic.Int64
	faceErrors   atomic.Int64
	published    atomic.Int64
}

// New creates a Runner. The engine must not be shared with another loop.
func New(cfg Config, source Source, eval Evaluator, engine *stabilize.Engine, opts ...Option) *Runner {
	if cfg.SampleEvery < 1 {
		cfg.SampleEvery = DefaultConfig().SampleEvery
	}
	r := &Runner{
		cfg:    cfg,
		source: source,
		eval:   eval,
		engine: engine,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns a snapshot of loop counters. Safe to call concurrently.
func (r *Runner) Stats() Stats {
	return Stats{
		Frames:       r.frameCount.Load(),
		Evaluations:  r.evaluations.Load(),
		ObjectErrors: r.objectErrors.Load(),
		FaceErrors:   r.faceErrors.Load(),
		Published:    r.published.Load(),
	}
}

// Run pulls frames until the operator quits, ctx is cancelled, or the
// source fails. The source and display are released on return.
func (r *Runner) Run(ctx context.Context) error {
	defer r.release()

	log.Info("capture loop started", "sample_every", r.cfg.SampleEvery, "headless", r.display == nil)

	for {
		if err := ctx.Err(); err != nil {
			log.Info("capture loop cancelled")
			return nil
		}

		data, err := r.source.Read()
		if err != nil {
			log.Warn("failed to read frame", "error", err)
			return fmt.Errorf("%w: %v", ErrReadFrame, err)
		}

		n := r.frameCount.Add(1)
		now := r.now()

		var state stabilize.DisplayState
		sampled := n%int64(r.cfg.SampleEvery) == 0
		if sampled {
			res := r.evaluate(ctx, data)
			state = r.engine.Update(now, res.Objects, res.Faces)
		} else {
			state = r.engine.Tick(now)
		}

		r.publish(n, now, sampled, state, data)

		if r.display != nil && r.display.Show(data, state, r.boxes) {
			log.Info("quit requested")
			return nil
		}
	}
}

// evaluate sends the sampled frame, or its local face crops when a
// finder is configured and found any.
func (r *Runner) evaluate(ctx context.Context, data []byte) detection.Result {
	r.evaluations.Add(1)
	r.boxes = nil

	var res detection.Result
	if r.finder != nil {
		regions, rects, err := r.finder.Regions(data)
		if err != nil {
			log.Warn("local face search failed", "error", err)
		}
		if len(regions) > 0 {
			log.Debug("evaluating face regions", "count", len(regions))
			r.boxes = rects
			res = r.eval.EvaluateRegions(ctx, regions)
		} else {
			res = r.eval.Evaluate(ctx, data)
		}
	} else {
		res = r.eval.Evaluate(ctx, data)
	}

	if res.ObjectErr != nil {
		r.objectErrors.Add(1)
	}
	if res.FaceErr != nil {
		r.faceErrors.Add(1)
	}
	return res
}

func (r *Runner) publish(n int64, now time.Time, sampled bool, state stabilize.DisplayState, data []byte) {
	if r.verdicts != nil {
		v := Verdict{
			Frame:   n,
			Time:    now,
			Sampled: sampled,
			State:   state,
			Object:  state.Object.Text(),
			Face:    state.Face.Text(),
			Boxes:   r.boxes,
		}
		if err := r.verdicts.BroadcastJSON(v); err != nil {
			log.Warn("publish verdict failed", "error", err)
		}
	}

	if r.frames == nil || r.cfg.PublishFPS <= 0 {
		return
	}
	interval := time.Duration(float64(time.Second) / r.cfg.PublishFPS)
	if !r.lastPublish.IsZero() && now.Sub(r.lastPublish) < interval {
		return
	}
	r.lastPublish = now
	if r.annotate != nil {
		out, err := r.annotate(data, state, r.boxes)
		if err != nil {
			log.Debug("annotate frame failed, publishing raw", "error", err)
		} else {
			data = out
		}
	}
	r.frames.BroadcastBinary(data)
	r.published.Add(1)
}

func (r *Runner) release() {
	if err := r.source.Close(); err != nil {
		log.Warn("close source", "error", err)
	}
	if r.display != nil {
		if err := r.display.Close(); err != nil {
			log.Warn("close display", "error", err)
		}
	}
	log.Info("capture released", "frames", r.frameCount.Load(), "evaluations", r.evaluations.Load())
}
