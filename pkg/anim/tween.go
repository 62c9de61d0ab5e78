// Package anim smooths the model's rotation toward a target, either with a
// fixed-duration eased tween or with critically damped springs.
package anim

import (
	"github.com/fogleman/ease"
	"github.com/tanema/gween"
)

// EaseFunc maps normalized time in [0,1] to progress.
type EaseFunc func(t float64) float64

// Tween animates one value from where it was when last retargeted to a
// target, over a fixed duration. Retargeting mid-flight starts a fresh tween
// from the current value, so the most recent target always wins.
//
// The clock is a gween tween running progress from 0 to 1; the value itself
// is interpolated in float64 so a finished tween lands exactly on its target.
type Tween struct {
	Duration float64 // seconds
	Ease     EaseFunc

	from, to float64
	value    float64
	clock    *gween.Tween
	done     bool
}

// NewTween creates a tween resting at value.
func NewTween(value, duration float64, fn EaseFunc) *Tween {
	if fn == nil {
		fn = ease.Linear
	}
	return &Tween{
		Duration: duration,
		Ease:     fn,
		from:     value,
		to:       value,
		value:    value,
		done:     true,
	}
}

// To starts animating from the current value toward target.
func (t *Tween) To(target float64) {
	t.from = t.value
	t.to = target
	if t.Duration <= 0 {
		t.value = target
		t.clock = nil
		t.done = true
		return
	}
	t.clock = gween.New(0, 1, float32(t.Duration), curve(t.Ease))
	t.done = false
}

// Step advances the tween by dt seconds and returns the new value.
func (t *Tween) Step(dt float64) float64 {
	if t.done || dt <= 0 {
		return t.value
	}
	p, finished := t.clock.Update(float32(dt))
	if finished {
		t.value = t.to
		t.done = true
		return t.value
	}
	t.value = t.from + (t.to-t.from)*float64(p)
	return t.value
}

// Value returns the current value.
func (t *Tween) Value() float64 { return t.value }

// Target returns the value the tween is heading to.
func (t *Tween) Target() float64 { return t.to }

// Done reports whether the tween has reached its target.
func (t *Tween) Done() bool { return t.done }

// Set jumps to value and stops.
func (t *Tween) Set(value float64) {
	t.from, t.to, t.value = value, value, value
	t.clock = nil
	t.done = true
}

// curve adapts a normalized easing curve to gween's (t, begin, change,
// duration) form.
func curve(fn EaseFunc) func(t, b, c, d float32) float32 {
	return func(t, b, c, d float32) float32 {
		return b + c*float32(fn(float64(t/d)))
	}
}
