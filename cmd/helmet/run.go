package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"
	"github.com/taigrr/helmet/pkg/anim"
	"github.com/taigrr/helmet/pkg/assets"
	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
	"github.com/taigrr/helmet/pkg/viewer"
	"golang.org/x/sync/errgroup"
)

// Each terminal cell shows two framebuffer pixels stacked vertically.
const pixelsPerRow = 2

func runViewer(ctx context.Context, opts *options, modelPath string) error {
	if opts.fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", opts.fps)
	}
	bg, err := parseBackground(opts.bg)
	if err != nil {
		return err
	}
	logger, flushLog, err := newLogger(opts, true)
	if err != nil {
		return err
	}
	defer flushLog()

	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	v, err := viewer.New(viewer.Config{
		Width:       width,
		Height:      height * pixelsPerRow,
		Background:  bg,
		ShiftAmount: opts.shift,
		Exposure:    opts.exposure,
		Smoothing:   anim.Smoothing(opts.smoothing),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)
	term.WriteString(ansi.SetModeMouseAnyEvent + ansi.SetModeMouseExtSgr)

	defer func() {
		term.WriteString(ansi.ResetModeMouseAnyEvent + ansi.ResetModeMouseExtSgr)
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	loads := &loadState{}
	modelCh := make(chan *models.Model, 1)
	envCh := make(chan *render.Environment, 1)

	g.Go(func() error {
		progress := progressLogger(logger, "model", func(pct int) { loads.modelPct.Store(int32(pct)) })
		m, err := assets.LoadModel(ctx, modelPath, opts.loader(), progress)
		if err != nil {
			loads.modelErr.Store(true)
			if !errors.Is(err, context.Canceled) {
				logger.Error("load model", "src", modelPath, "err", err)
			}
			return nil
		}
		modelCh <- m
		return nil
	})
	g.Go(func() error {
		progress := progressLogger(logger, "environment", func(pct int) { loads.envPct.Store(int32(pct)) })
		env, err := assets.LoadEnvironment(ctx, opts.hdri, progress)
		if err != nil {
			loads.envErr.Store(true)
			if !errors.Is(err, context.Canceled) {
				logger.Error("load environment", "src", opts.hdri, "err", err)
			}
			return nil
		}
		envCh <- env
		return nil
	})
	g.Go(func() error {
		defer cancel()
		f := &frameLoop{
			term:    term,
			viewer:  v,
			hud:     NewHUD(loads),
			loads:   loads,
			log:     logger,
			fps:     opts.fps,
			modelCh: modelCh,
			envCh:   envCh,
		}
		return f.run(ctx)
	})

	return g.Wait()
}

// frameLoop owns the viewer: events, loaded assets and frames are all
// applied from its goroutine.
type frameLoop struct {
	term    *uv.Terminal
	viewer  *viewer.Viewer
	hud     *HUD
	loads   *loadState
	log     *log.Logger
	fps     int
	modelCh <-chan *models.Model
	envCh   <-chan *render.Environment
}

func (f *frameLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(f.fps))
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case m := <-f.modelCh:
			f.applyModel(m)

		case env := <-f.envCh:
			f.viewer.SetEnvironment(env)

		case ev := <-f.term.Events():
			if quit := f.handle(ev); quit {
				return nil
			}

		case now := <-ticker.C:
			dt := min(now.Sub(last).Seconds(), 0.1)
			last = now
			if err := f.frame(now, dt); err != nil {
				return err
			}
		}
	}
}

func (f *frameLoop) frame(now time.Time, dt float64) error {
	f.viewer.Step(dt)
	fb := f.viewer.Render()

	f.term.Draw(fb)
	f.hud.UpdateFPS(now)
	f.hud.Draw(f.term, f.term.Bounds(), f.viewer.Stats())
	if err := f.term.Display(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

// applyModel hands a loaded model to the viewer. A model the viewer
// rejects counts as a failed load.
func (f *frameLoop) applyModel(m *models.Model) {
	if f.viewer.SetModel(m) {
		return
	}
	if f.loads != nil {
		f.loads.modelErr.Store(true)
	}
	if m != nil {
		f.log.Error("load model", "model", m.Name, "err", "no triangle geometry")
	}
}

// handle applies one terminal event and reports whether to quit.
func (f *frameLoop) handle(ev uv.Event) bool {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		if f.term != nil {
			f.term.Erase()
			f.term.Resize(ev.Width, ev.Height)
		}
		f.viewer.Resize(ev.Width, ev.Height*pixelsPerRow)

	case uv.MouseMotionEvent:
		x, y := cellToPixel(ev.X, ev.Y)
		if ev.Button == uv.MouseLeft {
			// A drag is the terminal's single-finger touch.
			f.viewer.TouchMove([]viewer.Point{{X: x, Y: y}})
		} else {
			f.viewer.PointerMove(x, y)
		}

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("esc", "ctrl+c", "q"):
			return true
		case ev.MatchString("?", "shift+/"):
			f.hud.Visible = !f.hud.Visible
		case ev.MatchString("s"):
			on := f.viewer.ToggleShift()
			f.hud.Message = "RGB shift " + onOff(on)
		case ev.MatchString("x"):
			on := f.viewer.ToggleWireframe()
			f.hud.Message = "x-ray " + onOff(on)
		case ev.MatchString("r"):
			f.viewer.Reset()
		case ev.MatchString("p"):
			f.saveFrame()
		}
	}
	return false
}

func (f *frameLoop) saveFrame() {
	name := fmt.Sprintf("helmet-%s.png", time.Now().Format("20060102-150405"))
	if err := f.viewer.Composer().Output().SavePNG(name); err != nil {
		f.log.Error("save frame", "err", err)
		f.hud.Message = "save failed, see log"
		return
	}
	path, _ := filepath.Abs(name)
	f.log.Info("saved frame", "path", path)
	f.hud.Message = "saved " + name
}

// cellToPixel maps a terminal cell to the framebuffer pixel at its center.
func cellToPixel(col, row int) (x, y float64) {
	return float64(col) + 0.5, (float64(row) + 0.5) * pixelsPerRow
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
