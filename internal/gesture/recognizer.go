// Package gesture turns raw pointer samples into a dismiss intent for one row.
package gesture

import (
	"math"
	"time"
)

// Sample is one pointer position
type Sample struct {
	X, Y float64
	At   time.Time
}

// Result is the terminal decision of an input sequence
type Result int

const (
	None Result = iota
	Dismiss
	Cancel
)

func (r Result) String() string {
	switch r {
	case Dismiss:
		return "dismiss"
	case Cancel:
		return "cancel"
	default:
		return "none"
	}
}

// Outcome is returned by every feed call. Result is None until the sequence ends.
type Outcome struct {
	Result      Result
	Row         int
	Velocity    float64
	Translation float64
}

// Config holds the recognition thresholds, in pointer units and units/second
type Config struct {
	PagingSlop     float64 `json:"paging_slop" yaml:"paging_slop"`
	ScrollSlop     float64 `json:"scroll_slop" yaml:"scroll_slop"`
	MinVert        float64 `json:"min_vert" yaml:"min_vert"`
	MinLock        float64 `json:"min_lock" yaml:"min_lock"`
	EscapeVelocity float64 `json:"escape_velocity" yaml:"escape_velocity"`
	MaxVelocity    float64 `json:"max_velocity" yaml:"max_velocity"`
	FarFraction    float64 `json:"far_fraction" yaml:"far_fraction"`
	FastFraction   float64 `json:"fast_fraction" yaml:"fast_fraction"`
}

// DefaultConfig returns thresholds tuned for pixel input at density 1
func DefaultConfig() Config {
	return Config{
		PagingSlop:     16,
		ScrollSlop:     12,
		MinVert:        24,
		MinLock:        48,
		EscapeVelocity: 100,
		MaxVelocity:    2000,
		FarFraction:    0.4,
		FastFraction:   0.05,
	}
}

const velocityWindow = 100 * time.Millisecond

// Recognizer tracks a single input sequence at a time. It is not safe for
// concurrent use; feed it from the event loop that owns the pointer.
type Recognizer struct {
	cfg   Config
	claim func(row int)

	active      bool
	dragging    bool
	row         int
	width       float64
	startX      float64
	startY      float64
	lastY       float64
	translation float64
	samples     []Sample
}

// NewRecognizer creates a recognizer. claim is called once per sequence when
// the recognizer takes exclusive ownership of the pointer; it may be nil.
func NewRecognizer(cfg Config, claim func(row int)) *Recognizer {
	return &Recognizer{cfg: cfg, claim: claim}
}

// Down starts a new sequence on row, discarding anything left from the previous one
func (r *Recognizer) Down(row int, width float64, s Sample) {
	r.active = true
	r.dragging = false
	r.row = row
	r.width = width
	r.startX, r.startY, r.lastY = s.X, s.Y, s.Y
	r.translation = 0
	r.samples = append(r.samples[:0], s)
}

// Move feeds an intermediate sample
func (r *Recognizer) Move(s Sample) Outcome {
	if !r.active {
		return Outcome{}
	}
	r.track(s)
	dx := s.X - r.startX
	if !r.dragging {
		if math.Abs(s.Y-r.lastY) > r.cfg.ScrollSlop {
			return r.finish(Cancel, 0)
		}
		r.lastY = s.Y
		if math.Abs(dx) > r.cfg.PagingSlop {
			r.dragging = true
			if r.claim != nil {
				r.claim(r.row)
			}
		}
		return Outcome{Row: r.row}
	}
	dy := math.Abs(s.Y - r.startY)
	if dy > r.cfg.MinVert && math.Abs(dx) < r.cfg.MinLock {
		return r.finish(Cancel, 0)
	}
	r.translation = dx
	return Outcome{Row: r.row, Translation: dx}
}

// Up ends the sequence and decides between dismiss and cancel
func (r *Recognizer) Up(s Sample) Outcome {
	if !r.active {
		return Outcome{}
	}
	r.track(s)
	if !r.dragging {
		return r.finish(Cancel, 0)
	}
	r.translation = s.X - r.startX
	vx, vy := r.velocity()
	translation := math.Abs(r.translation)

	far := translation > r.cfg.FarFraction*r.width
	fast := math.Abs(vx) > r.cfg.EscapeVelocity &&
		math.Abs(vx) > math.Abs(vy) &&
		(vx > 0) == (r.translation > 0) &&
		translation > r.cfg.FastFraction*r.width
	if far || fast {
		v := 0.0
		if fast {
			v = vx
		}
		return r.finish(Dismiss, v)
	}
	return r.finish(Cancel, vx)
}

// Abort ends the sequence without a dismissal, e.g. when the pointer leaves the list
func (r *Recognizer) Abort() Outcome {
	if !r.active {
		return Outcome{}
	}
	return r.finish(Cancel, 0)
}

// Active reports whether a sequence is in progress
func (r *Recognizer) Active() bool { return r.active }

// Dragging reports whether the current sequence has claimed the pointer
func (r *Recognizer) Dragging() bool { return r.active && r.dragging }

// Translation is the current horizontal offset of the dragged row
func (r *Recognizer) Translation() float64 { return r.translation }

func (r *Recognizer) finish(res Result, velocity float64) Outcome {
	out := Outcome{Result: res, Row: r.row, Velocity: velocity, Translation: r.translation}
	r.active = false
	r.dragging = false
	r.translation = 0
	r.samples = r.samples[:0]
	return out
}

func (r *Recognizer) track(s Sample) {
	r.samples = append(r.samples, s)
	cutoff := s.At.Add(-velocityWindow)
	i := 0
	for i < len(r.samples)-2 && r.samples[i].At.Before(cutoff) {
		i++
	}
	r.samples = r.samples[i:]
}

func (r *Recognizer) velocity() (float64, float64) {
	if len(r.samples) < 2 {
		return 0, 0
	}
	first, last := r.samples[0], r.samples[len(r.samples)-1]
	dt := last.At.Sub(first.At).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	vx := clamp((last.X-first.X)/dt, r.cfg.MaxVelocity)
	vy := clamp((last.Y-first.Y)/dt, r.cfg.MaxVelocity)
	return vx, vy
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}
