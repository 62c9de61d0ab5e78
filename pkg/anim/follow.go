package anim

import (
	"fmt"

	"github.com/charmbracelet/harmonica"
	"github.com/fogleman/ease"
)

// Default pointer-follow timing: 0.8s with a cubic ease-out.
const DefaultDuration = 0.8

// Follower smooths a (pitch, yaw) pair toward the latest target.
type Follower interface {
	Retarget(pitch, yaw float64)
	Step(dt float64)
	Current() (pitch, yaw float64)
	Settled() bool
	Reset()
}

// EaseFollower tweens each axis independently over a fixed duration.
type EaseFollower struct {
	pitch, yaw *Tween
}

// NewEaseFollower returns a follower using cubic ease-out over duration seconds.
func NewEaseFollower(duration float64) *EaseFollower {
	return &EaseFollower{
		pitch: NewTween(0, duration, ease.OutCubic),
		yaw:   NewTween(0, duration, ease.OutCubic),
	}
}

func (f *EaseFollower) Retarget(pitch, yaw float64) {
	f.pitch.To(pitch)
	f.yaw.To(yaw)
}

func (f *EaseFollower) Step(dt float64) {
	f.pitch.Step(dt)
	f.yaw.Step(dt)
}

func (f *EaseFollower) Current() (pitch, yaw float64) {
	return f.pitch.Value(), f.yaw.Value()
}

func (f *EaseFollower) Settled() bool {
	return f.pitch.Done() && f.yaw.Done()
}

func (f *EaseFollower) Reset() {
	f.pitch.Set(0)
	f.yaw.Set(0)
}

// springAxis tracks position and velocity for one rotation axis.
type springAxis struct {
	pos, vel, target float64
}

// SpringFollower chases the target with critically damped springs. Unlike
// the tween it has no fixed duration; it keeps momentum when the target
// moves mid-flight.
type SpringFollower struct {
	// Frequency 6.0 settles in roughly the same time as the default tween.
	Frequency float64
	Damping   float64

	pitch, yaw springAxis
	spring     harmonica.Spring
	springDT   float64
}

// NewSpringFollower returns a critically damped spring follower.
func NewSpringFollower() *SpringFollower {
	return &SpringFollower{Frequency: 6.0, Damping: 1.0}
}

func (f *SpringFollower) Retarget(pitch, yaw float64) {
	f.pitch.target = pitch
	f.yaw.target = yaw
}

// Step advances both springs. harmonica springs are built for a fixed time
// step, so the spring is rebuilt whenever dt changes.
func (f *SpringFollower) Step(dt float64) {
	if dt <= 0 {
		return
	}
	if dt != f.springDT {
		f.spring = harmonica.NewSpring(dt, f.Frequency, f.Damping)
		f.springDT = dt
	}
	for _, a := range []*springAxis{&f.pitch, &f.yaw} {
		a.pos, a.vel = f.spring.Update(a.pos, a.vel, a.target)
	}
}

func (f *SpringFollower) Current() (pitch, yaw float64) {
	return f.pitch.pos, f.yaw.pos
}

// Settled reports whether both axes are within a hair of rest at the target.
func (f *SpringFollower) Settled() bool {
	const eps = 1e-4
	for _, a := range []springAxis{f.pitch, f.yaw} {
		if abs(a.pos-a.target) > eps || abs(a.vel) > eps {
			return false
		}
	}
	return true
}

func (f *SpringFollower) Reset() {
	f.pitch = springAxis{}
	f.yaw = springAxis{}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Smoothing names a Follower implementation.
type Smoothing string

const (
	SmoothingEase   Smoothing = "ease"
	SmoothingSpring Smoothing = "spring"
)

// NewFollower returns the follower for a smoothing mode.
func NewFollower(mode Smoothing) (Follower, error) {
	switch mode {
	case SmoothingEase, "":
		return NewEaseFollower(DefaultDuration), nil
	case SmoothingSpring:
		return NewSpringFollower(), nil
	default:
		return nil, fmt.Errorf("unknown smoothing %q (want %q or %q)", mode, SmoothingEase, SmoothingSpring)
	}
}
