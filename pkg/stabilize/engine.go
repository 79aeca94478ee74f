// Package stabilize debounces per-frame detections into a steady verdict.
//
// The Engine holds at most one object lock and one face lock. A face locks
// after the same identity qualifies on StreakThreshold consecutive evaluated
// frames; a safety label locks on its first qualifying frame. Both locks are
// cleared once Dwell has passed since the most recent acquisition.
//
// An Engine is not safe for concurrent use. It is owned by the capture loop.
package stabilize

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
)

// Lock is an acquired verdict.
type Lock struct {
	Label      string
	Score      float64
	AcquiredAt time.Time
}

// Engine is the two-slot lock state machine.
type Engine struct {
	cfg Config

	object *Lock
	face   *Lock

	streaks  map[string]int
	lastLock time.Time
	phase    int
}

// New creates an engine. Invalid fields fall back to DefaultConfig values.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.StreakThreshold < 1 {
		cfg.StreakThreshold = def.StreakThreshold
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = def.Dwell
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = def.Keywords
	}
	if len(cfg.IdleLabels) == 0 {
		cfg.IdleLabels = def.IdleLabels
	}
	return &Engine{
		cfg:     cfg,
		streaks: make(map[string]int),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Update folds one evaluated frame into the engine and returns what to show.
func (e *Engine) Update(now time.Time, detections []detection.Detection, faces []detection.FaceMatch) DisplayState {
	e.expire(now)
	e.foldFaces(now, faces)
	e.foldObjects(now, detections)
	return e.advance()
}

// Tick is Update for a frame that was displayed but not evaluated:
// locks still expire and the idle indicator still advances.
func (e *Engine) Tick(now time.Time) DisplayState {
	e.expire(now)
	return e.advance()
}

// State returns the current display state without advancing anything.
func (e *Engine) State() DisplayState {
	idle := e.cfg.IdleLabels[e.phase%len(e.cfg.IdleLabels)]
	return DisplayState{
		Object: slot(e.object, idle),
		Face:   slot(e.face, idle),
	}
}

// Streak returns the current consecutive-qualifying count for an identity.
func (e *Engine) Streak(identity string) int {
	return e.streaks[identity]
}

// Reset clears all locks, streaks and the idle phase.
func (e *Engine) Reset() {
	e.object = nil
	e.face = nil
	e.streaks = make(map[string]int)
	e.lastLock = time.Time{}
	e.phase = 0
}

func (e *Engine) expire(now time.Time) {
	if e.object == nil && e.face == nil {
		return
	}
	if now.Sub(e.lastLock) > e.cfg.Dwell {
		log.Debug("locks expired", "object", e.object != nil, "face", e.face != nil)
		e.object = nil
		e.face = nil
	}
}

// foldFaces counts each identity at most once per evaluated frame. An
// identity that does not qualify in this frame, including one that is
// absent, drops its streak.
func (e *Engine) foldFaces(now time.Time, faces []detection.FaceMatch) {
	var order []string
	best := make(map[string]float64)
	for _, f := range faces {
		if f.Similarity < e.cfg.FaceQualify {
			continue
		}
		sim, seen := best[f.Identity]
		if !seen {
			order = append(order, f.Identity)
		}
		if !seen || f.Similarity > sim {
			best[f.Identity] = f.Similarity
		}
	}

	for id := range e.streaks {
		if _, ok := best[id]; !ok {
			delete(e.streaks, id)
		}
	}

	for _, id := range order {
		e.streaks[id]++
		if e.streaks[id] >= e.cfg.StreakThreshold && e.face == nil {
			e.face = &Lock{Label: id, Score: best[id], AcquiredAt: now}
			e.lastLock = now
			e.streaks = make(map[string]int)
			log.Info("face locked", "identity", id, "similarity", best[id])
		}
	}
}

func (e *Engine) foldObjects(now time.Time, detections []detection.Detection) {
	if e.object != nil {
		return
	}
	for _, d := range detections {
		if d.Confidence < e.cfg.ObjectQualify || !e.cfg.Keywords.Match(d.Label) {
			continue
		}
		e.object = &Lock{Label: d.Label, Score: d.Confidence, AcquiredAt: now}
		e.lastLock = now
		log.Info("object locked", "label", d.Label, "confidence", d.Confidence)
		return
	}
}

// advance renders the state for this frame, then steps the idle phase.
func (e *Engine) advance() DisplayState {
	s := e.State()
	e.phase++
	return s
}

func slot(l *Lock, idle string) Slot {
	if l == nil {
		return Slot{Idle: idle}
	}
	return Slot{Locked: true, Label: l.Label, Score: l.Score, AcquiredAt: l.AcquiredAt}
}

// DisplayState is the projection handed to the presentation layer.
type DisplayState struct {
	Object Slot `json:"object"`
	Face   Slot `json:"face"`
}

// Slot is either a held lock or the idle indicator.
type Slot struct {
	Locked     bool      `json:"locked"`
	Label      string    `json:"label,omitempty"`
	Score      float64   `json:"score,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitzero"`
	Idle       string    `json:"idle,omitempty"`
}

// Text renders the slot the way it is drawn on screen.
func (s Slot) Text() string {
	if !s.Locked {
		return s.Idle
	}
	return fmt.Sprintf("%s (%.2f%%)", s.Label, s.Score)
}
