package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/taigrr/helmet/pkg/viewer"
)

var (
	hudBase  = lipgloss.NewStyle().Background(lipgloss.Color("#000000"))
	hudFPS   = hudBase.Foreground(lipgloss.Color("10"))
	hudTitle = hudBase.Foreground(lipgloss.Color("15")).Bold(true)
	hudPolys = hudBase.Foreground(lipgloss.Color("14")).Bold(true)
	hudMode  = hudBase.Foreground(lipgloss.Color("15"))
	hudHint  = hudBase.Foreground(lipgloss.Color("11")).Faint(true)
	hudWarn  = hudBase.Foreground(lipgloss.Color("11")).Bold(true)
)

// loadState tracks the background loads. It is written by the loader
// goroutines and read when drawing the HUD.
type loadState struct {
	modelPct atomic.Int32
	envPct   atomic.Int32
	modelErr atomic.Bool
	envErr   atomic.Bool
}

// HUD renders an overlay with model info and controls.
type HUD struct {
	Visible bool
	Message string // shown on the bottom row until replaced

	loads     *loadState
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a HUD reporting on loads.
func NewHUD(loads *loadState) *HUD {
	return &HUD{loads: loads, fpsTime: time.Now()}
}

// UpdateFPS updates the FPS counter (call once per frame).
func (h *HUD) UpdateFPS(now time.Time) {
	h.fpsFrames++
	elapsed := now.Sub(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = now
	}
}

// Lines returns the top and bottom overlay rows for a terminal width cols
// wide. Either may be empty.
func (h *HUD) Lines(cols int, s viewer.Stats) (top, bottom string) {
	if status := h.loadStatus(s); status != "" {
		bottom = hudWarn.Render(" " + status + " ")
	} else if h.Message != "" {
		bottom = hudHint.Render(" " + h.Message + " ")
	}
	if !h.Visible {
		return "", bottom
	}

	fps := hudFPS.Render(fmt.Sprintf(" %.0f FPS ", h.fps))
	name := s.Model
	if name == "" {
		name = "no model"
	}
	title := hudTitle.Render(" " + name + " ")
	polys := hudPolys.Render(fmt.Sprintf(" %d tris ", s.Triangles))
	gap := cols - lipgloss.Width(fps) - lipgloss.Width(title) - lipgloss.Width(polys)
	left, right := max(gap/2, 1), max(gap-gap/2, 1)
	top = fps + hudBase.Width(left).Render("") + title + hudBase.Width(right).Render("") + polys

	if bottom == "" {
		env := "studio light"
		if s.EnvLoaded {
			env = "HDRI"
		}
		bottom = hudMode.Render(fmt.Sprintf(" %s RGB shift  %s X-Ray  %s ",
			check(s.Shift), check(s.Wireframe), env)) +
			hudHint.Render(fmt.Sprintf(" pitch %+.2f yaw %+.2f ", s.Pitch, s.Yaw))
	}
	return top, bottom
}

func (h *HUD) loadStatus(s viewer.Stats) string {
	if h.loads == nil {
		return ""
	}
	switch {
	case h.loads.modelErr.Load() && !s.ModelLoaded:
		return "model failed to load, see log"
	case !s.ModelLoaded:
		return fmt.Sprintf("loading model... %d%%", h.loads.modelPct.Load())
	case !s.EnvLoaded && !h.loads.envErr.Load():
		return fmt.Sprintf("loading environment... %d%%", h.loads.envPct.Load())
	}
	return ""
}

// Draw paints the overlay rows onto scr.
func (h *HUD) Draw(scr uv.Screen, area uv.Rectangle, s viewer.Stats) {
	top, bottom := h.Lines(area.Dx(), s)
	if top != "" {
		uv.NewStyledString(top).Draw(scr, uv.Rect(area.Min.X, area.Min.Y, area.Dx(), 1))
	}
	if bottom != "" && area.Dy() > 1 {
		uv.NewStyledString(bottom).Draw(scr, uv.Rect(area.Min.X, area.Max.Y-1, area.Dx(), 1))
	}
}

func check(on bool) string {
	if on {
		return "[✓]"
	}
	return "[ ]"
}
