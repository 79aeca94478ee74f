// Package detection turns one frame into normalized labels and face matches.
//
// Each evaluation issues two independent remote calls, label detection and
// face-gallery search. A failure in one only empties its own list; the cause
// is reported on the Result rather than aborting the evaluation.
package detection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/identity"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

// ErrEmptyFrame is returned for frames with no bytes.
var ErrEmptyFrame = errors.New("detection: empty frame")

// Detection is a labeled object with confidence 0-100.
type Detection struct {
	Label      string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// FaceMatch is a resolved gallery match with similarity 0-100.
type FaceMatch struct {
	Identity   string  `json:"name"`
	ExternalID string  `json:"-"`
	Similarity float64 `json:"similarity"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Objects []Detection // every label returned
	Safety  []Detection // labels on the allow-list
	Faces   []FaceMatch

	ObjectErr error
	FaceErr   error
}

// Safe reports whether any safety equipment was detected.
func (r Result) Safe() bool { return len(r.Safety) > 0 }

// Adapter evaluates frames against a vision provider.
// It is safe for concurrent use.
type Adapter struct {
	provider vision.Provider
	names    identity.Lookup
	cfg      Config

	// facesOff is set once the provider reports face search unsupported.
	facesOff atomic.Bool
}

// New creates an adapter. A nil lookup maps every face to the placeholder.
func New(provider vision.Provider, names identity.Lookup, cfg Config) *Adapter {
	if names == nil {
		names = identity.NewStatic(nil)
	}
	return &Adapter{provider: provider, names: names, cfg: cfg}
}

// Config returns the adapter configuration.
func (a *Adapter) Config() Config { return a.cfg }

// FacesEnabled reports whether evaluations still search the face gallery.
// It turns false after the provider answers ErrNotSupported.
func (a *Adapter) FacesEnabled() bool {
	return a.cfg.IncludeFaces && !a.facesOff.Load()
}

// Evaluate sends one encoded frame for label detection and face search.
// The frame must already be a valid JPEG; see frame.Normalize.
func (a *Adapter) Evaluate(ctx context.Context, frame []byte) Result {
	if len(frame) == 0 {
		res := Result{ObjectErr: ErrEmptyFrame}
		if a.FacesEnabled() {
			res.FaceErr = ErrEmptyFrame
		}
		return res
	}

	start := time.Now()
	var (
		res Result
		wg  sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Objects, res.ObjectErr = a.detectObjects(ctx, frame)
	}()

	if a.FacesEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Faces, res.FaceErr = a.matchFaces(ctx, frame)
		}()
	}

	wg.Wait()

	res.Safety = a.filterSafety(res.Objects)

	log.Debug("frame evaluated",
		"objects", len(res.Objects),
		"safety", len(res.Safety),
		"faces", len(res.Faces),
		"elapsed", time.Since(start))
	return res
}

// EvaluateRegions evaluates each region separately and concatenates the
// results. The first error per sub-operation is kept.
func (a *Adapter) EvaluateRegions(ctx context.Context, regions [][]byte) Result {
	var merged Result
	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}
		r := a.Evaluate(ctx, region)
		merged.Objects = append(merged.Objects, r.Objects...)
		merged.Safety = append(merged.Safety, r.Safety...)
		merged.Faces = append(merged.Faces, r.Faces...)
		if merged.ObjectErr == nil {
			merged.ObjectErr = r.ObjectErr
		}
		if merged.FaceErr == nil {
			merged.FaceErr = r.FaceErr
		}
	}
	return merged
}

func (a *Adapter) detectObjects(ctx context.Context, frame []byte) ([]Detection, error) {
	labels, err := a.provider.DetectLabels(ctx, frame, a.cfg.MaxLabels, a.cfg.MinConfidence)
	if err != nil {
		log.Warn("object detection failed", "provider", a.provider.Name(), "error", err)
		return nil, err
	}

	out := make([]Detection, 0, len(labels))
	for _, l := range labels {
		log.Debug("object detected", "name", l.Name, "confidence", l.Confidence)
		out = append(out, Detection{Label: l.Name, Confidence: l.Confidence})
	}
	return out, nil
}

func (a *Adapter) matchFaces(ctx context.Context, frame []byte) ([]FaceMatch, error) {
	hits, err := a.provider.SearchFacesByImage(ctx, a.cfg.GalleryID, frame, a.cfg.FaceThreshold, a.cfg.MaxFaces)
	if err != nil {
		if errors.Is(err, vision.ErrNotSupported) {
			if a.facesOff.CompareAndSwap(false, true) {
				log.Warn("provider has no face search, skipping it from now on", "provider", a.provider.Name())
			}
			return nil, err
		}
		log.Warn("face search failed", "provider", a.provider.Name(), "gallery", a.cfg.GalleryID, "error", err)
		return nil, err
	}

	out := make([]FaceMatch, 0, len(hits))
	for _, h := range hits {
		name := a.names.Lookup(h.ExternalID)
		log.Debug("face matched", "name", name, "external_id", h.ExternalID, "similarity", h.Similarity)
		out = append(out, FaceMatch{Identity: name, ExternalID: h.ExternalID, Similarity: h.Similarity})
	}
	return out, nil
}

func (a *Adapter) filterSafety(objects []Detection) []Detection {
	var out []Detection
	for _, d := range objects {
		if a.cfg.Keywords.Match(d.Label) {
			out = append(out, d)
		}
	}
	return out
}
