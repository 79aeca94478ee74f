package stabilize

import (
	"testing"
	"time"

	"github.com/teslashibe/go-ppewatch/pkg/detection"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func face(id string, sim float64) detection.FaceMatch {
	return detection.FaceMatch{Identity: id, Similarity: sim}
}

func obj(label string, conf float64) detection.Detection {
	return detection.Detection{Label: label, Confidence: conf}
}

func TestEndToEndFaceLock(t *testing.T) {
	e := New(DefaultConfig())

	// Frame 1: A qualifies once.
	s := e.Update(at(0), nil, []detection.FaceMatch{face("A", 96)})
	if s.Face.Locked {
		t.Fatal("frame 1: face locked after a single qualifying frame")
	}
	if got := e.Streak("A"); got != 1 {
		t.Fatalf("frame 1: streak A = %d, want 1", got)
	}

	// Frame 2: A qualifies again, lock acquired and streaks reset.
	s = e.Update(at(100*time.Millisecond), nil, []detection.FaceMatch{face("A", 97)})
	if !s.Face.Locked || s.Face.Label != "A" || s.Face.Score != 97 {
		t.Fatalf("frame 2: face slot = %+v, want lock on A/97", s.Face)
	}
	if got := e.Streak("A"); got != 0 {
		t.Errorf("frame 2: streak A = %d, want 0 after lock", got)
	}
	if got := s.Face.Text(); got != "A (97.00%)" {
		t.Errorf("frame 2: Text() = %q", got)
	}

	// Frame 3: no face, lock still shown.
	s = e.Update(at(200*time.Millisecond), nil, nil)
	if !s.Face.Locked || s.Face.Label != "A" {
		t.Fatalf("frame 3: face slot = %+v, want lock held", s.Face)
	}

	// 3.1s after acquisition the lock is cleared.
	s = e.Update(at(100*time.Millisecond+3100*time.Millisecond), nil, nil)
	if s.Face.Locked {
		t.Fatalf("after dwell: face slot = %+v, want idle", s.Face)
	}
	if s.Face.Idle == "" || s.Face.Text() != s.Face.Idle {
		t.Errorf("after dwell: idle text = %q", s.Face.Text())
	}
}

func TestNoLockBelowThreshold(t *testing.T) {
	e := New(DefaultConfig())

	sims := []float64{94.99, 90, 50, 94, 0, 94.9, 94.99, 94.99}
	for i, sim := range sims {
		s := e.Update(at(time.Duration(i)*100*time.Millisecond), nil, []detection.FaceMatch{face("A", sim)})
		if s.Face.Locked {
			t.Fatalf("frame %d: face locked at similarity %v", i, sim)
		}
		if e.Streak("A") != 0 {
			t.Fatalf("frame %d: streak = %d, want 0", i, e.Streak("A"))
		}
	}
}

func TestStreakHardReset(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), nil, []detection.FaceMatch{face("A", 99)})
	e.Update(at(100*time.Millisecond), nil, []detection.FaceMatch{face("A", 80)})
	if got := e.Streak("A"); got != 0 {
		t.Fatalf("streak after miss = %d, want 0", got)
	}

	s := e.Update(at(200*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})
	if s.Face.Locked {
		t.Fatal("locked on the first fresh qualifying frame after a reset")
	}

	s = e.Update(at(300*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})
	if !s.Face.Locked {
		t.Fatal("expected lock after two fresh consecutive frames")
	}
}

func TestAbsentIdentityResetsStreak(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), nil, []detection.FaceMatch{face("A", 99)})
	e.Update(at(100*time.Millisecond), nil, nil)
	if got := e.Streak("A"); got != 0 {
		t.Fatalf("streak after empty frame = %d, want 0", got)
	}

	s := e.Update(at(200*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})
	if s.Face.Locked {
		t.Fatal("locked without two consecutive qualifying frames")
	}

	e.Update(at(300*time.Millisecond), nil, []detection.FaceMatch{face("B", 99)})
	if got := e.Streak("A"); got != 0 {
		t.Errorf("streak A = %d after a frame with only B, want 0", got)
	}
}

func TestTickKeepsStreak(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), nil, []detection.FaceMatch{face("A", 99)})
	for i := 1; i < 10; i++ {
		e.Tick(at(time.Duration(i) * 33 * time.Millisecond))
	}
	if got := e.Streak("A"); got != 1 {
		t.Fatalf("streak after unsampled frames = %d, want 1", got)
	}

	s := e.Update(at(330*time.Millisecond), nil, []detection.FaceMatch{face("A", 98)})
	if !s.Face.Locked {
		t.Fatal("unsampled frames broke the streak")
	}
}

func TestDuplicateIdentityCountsOncePerFrame(t *testing.T) {
	tests := []struct {
		name  string
		faces []detection.FaceMatch
	}{
		{"same name twice", []detection.FaceMatch{face("Akshat", 99), face("Akshat", 97)}},
		{"placeholder thrice", []detection.FaceMatch{face("Person", 99), face("Person", 98), face("Person", 96)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultConfig())

			s := e.Update(at(0), nil, tt.faces)
			if s.Face.Locked {
				t.Fatalf("face locked on a single frame: %+v", s.Face)
			}
			if got := e.Streak(tt.faces[0].Identity); got != 1 {
				t.Fatalf("streak = %d, want 1", got)
			}

			s = e.Update(at(100*time.Millisecond), nil, tt.faces)
			if !s.Face.Locked || s.Face.Score != tt.faces[0].Similarity {
				t.Errorf("face slot = %+v, want lock at best similarity %v", s.Face, tt.faces[0].Similarity)
			}
		})
	}
}

func TestLockResetsAllStreaks(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), nil, []detection.FaceMatch{face("A", 99), face("B", 99)})
	if e.Streak("B") != 1 {
		t.Fatalf("streak B = %d, want 1", e.Streak("B"))
	}

	s := e.Update(at(100*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})
	if !s.Face.Locked || s.Face.Label != "A" {
		t.Fatalf("face slot = %+v, want lock on A", s.Face)
	}
	if e.Streak("B") != 0 {
		t.Errorf("streak B = %d, want 0 after A locked", e.Streak("B"))
	}
}

func TestFaceLockNotReplacedWhileHeld(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), nil, []detection.FaceMatch{face("A", 99)})
	e.Update(at(100*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})

	for i := 2; i < 10; i++ {
		s := e.Update(at(time.Duration(i)*100*time.Millisecond), nil, []detection.FaceMatch{face("B", 100)})
		if s.Face.Label != "A" {
			t.Fatalf("frame %d: face lock changed to %q while held", i, s.Face.Label)
		}
	}
	// B keeps counting while A is held.
	if e.Streak("B") != 8 {
		t.Errorf("streak B = %d, want 8", e.Streak("B"))
	}
}

func TestObjectLockFirstFrame(t *testing.T) {
	e := New(DefaultConfig())

	s := e.Update(at(0), []detection.Detection{
		obj("Person", 99),
		obj("Helmet", 74.9),
		obj("Safety Vest", 80),
		obj("Hardhat", 95),
	}, nil)

	if !s.Object.Locked {
		t.Fatal("object not locked on first qualifying frame")
	}
	if s.Object.Label != "Safety Vest" || s.Object.Score != 80 {
		t.Errorf("object slot = %+v, want first qualifying (Safety Vest/80)", s.Object)
	}
	if got := s.Object.Text(); got != "Safety Vest (80.00%)" {
		t.Errorf("Text() = %q", got)
	}
}

func TestObjectLockIgnoresNonSafety(t *testing.T) {
	e := New(DefaultConfig())

	s := e.Update(at(0), []detection.Detection{obj("Person", 99), obj("Hat", 99)}, nil)
	if s.Object.Locked {
		t.Fatalf("object locked on non-safety labels: %+v", s.Object)
	}
}

func TestLockHeldForDwellThenReacquired(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), []detection.Detection{obj("Helmet", 90)}, nil)

	// Different qualifying subject within the window: lock unchanged.
	s := e.Update(at(1*time.Second), []detection.Detection{obj("Gloves", 99)}, nil)
	if s.Object.Label != "Helmet" {
		t.Fatalf("object = %q, want Helmet within dwell", s.Object.Label)
	}

	// Exactly at the dwell boundary the lock is still held.
	s = e.Update(at(3*time.Second), nil, nil)
	if !s.Object.Locked {
		t.Fatal("lock cleared at exactly the dwell boundary")
	}

	// Past the window: cleared and re-acquired in the same frame.
	s = e.Update(at(3*time.Second+time.Millisecond), []detection.Detection{obj("Gloves", 99)}, nil)
	if !s.Object.Locked || s.Object.Label != "Gloves" {
		t.Fatalf("object = %+v, want fresh lock on Gloves", s.Object)
	}
	if !s.Object.AcquiredAt.Equal(at(3*time.Second + time.Millisecond)) {
		t.Errorf("AcquiredAt = %v", s.Object.AcquiredAt)
	}
}

func TestTickExpiresLocks(t *testing.T) {
	e := New(DefaultConfig())
	e.Update(at(0), []detection.Detection{obj("Goggles", 90)}, nil)

	if s := e.Tick(at(2 * time.Second)); !s.Object.Locked {
		t.Fatal("Tick cleared lock inside dwell window")
	}
	if s := e.Tick(at(3100 * time.Millisecond)); s.Object.Locked {
		t.Fatal("Tick did not clear expired lock")
	}
}

func TestSharedLockClock(t *testing.T) {
	// Both slots share one acquisition time: a later face lock extends
	// the object lock too.
	e := New(DefaultConfig())

	e.Update(at(0), []detection.Detection{obj("Helmet", 90)}, nil)
	e.Update(at(2*time.Second), nil, []detection.FaceMatch{face("A", 99)})
	e.Update(at(2500*time.Millisecond), nil, []detection.FaceMatch{face("A", 99)})

	s := e.Tick(at(4 * time.Second))
	if !s.Object.Locked || !s.Face.Locked {
		t.Fatalf("state = %+v, want both locks held", s)
	}

	s = e.Tick(at(5600 * time.Millisecond))
	if s.Object.Locked || s.Face.Locked {
		t.Fatalf("state = %+v, want both cleared", s)
	}
}

func TestIdleIndicatorCycles(t *testing.T) {
	e := New(DefaultConfig())

	want := []string{"Scanning.", "Scanning..", "Scanning...", "Scanning.", "Scanning.."}
	for i, w := range want {
		var s DisplayState
		if i%2 == 0 {
			s = e.Tick(at(time.Duration(i) * time.Millisecond))
		} else {
			s = e.Update(at(time.Duration(i)*time.Millisecond), nil, nil)
		}
		if s.Object.Text() != w || s.Face.Text() != w {
			t.Errorf("frame %d: idle = %q/%q, want %q", i, s.Object.Text(), s.Face.Text(), w)
		}
	}
}

func TestIdleAdvancesWhileLocked(t *testing.T) {
	e := New(DefaultConfig())

	e.Update(at(0), []detection.Detection{obj("Helmet", 90)}, nil) // phase 0 shown
	e.Tick(at(10 * time.Millisecond))                              // phase 1 shown
	s := e.Tick(at(20 * time.Millisecond))                         // phase 2 shown
	if s.Face.Text() != "Scanning..." {
		t.Errorf("face idle = %q, want Scanning...", s.Face.Text())
	}
	if !s.Object.Locked {
		t.Error("object lock lost")
	}
}

func TestCustomConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StreakThreshold = 3
	cfg.FaceQualify = 90
	cfg.Dwell = time.Second
	e := New(cfg)

	for i := 0; i < 2; i++ {
		if s := e.Update(at(time.Duration(i)*10*time.Millisecond), nil, []detection.FaceMatch{face("A", 91)}); s.Face.Locked {
			t.Fatalf("locked after %d frames with threshold 3", i+1)
		}
	}
	if s := e.Update(at(20*time.Millisecond), nil, []detection.FaceMatch{face("A", 91)}); !s.Face.Locked {
		t.Fatal("not locked after 3 frames")
	}
	if s := e.Tick(at(1100 * time.Millisecond)); s.Face.Locked {
		t.Fatal("lock not cleared after custom dwell")
	}
}

func TestNewFillsDefaults(t *testing.T) {
	e := New(Config{FaceQualify: 95, ObjectQualify: 75})
	cfg := e.Config()
	if cfg.StreakThreshold != 2 || cfg.Dwell != 3*time.Second || len(cfg.IdleLabels) != 3 || len(cfg.Keywords) == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.Update(at(0), []detection.Detection{obj("Helmet", 90)}, []detection.FaceMatch{face("A", 99)})
	e.Reset()

	s := e.State()
	if s.Object.Locked || s.Face.Locked || e.Streak("A") != 0 {
		t.Errorf("state after Reset = %+v", s)
	}
	if s.Object.Idle != "Scanning." {
		t.Errorf("idle after Reset = %q", s.Object.Idle)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}

	bad := Config{FaceQualify: 120, ObjectQualify: -1}
	if errs := bad.Validate(); len(errs) != 6 {
		t.Errorf("Validate() = %v, want 6 errors", errs)
	}
}
