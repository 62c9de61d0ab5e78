// helmet - Terminal glTF viewer with image-based lighting
// Renders a model lit by an HDRI, through an RGB-shift post pass, and turns
// it toward the mouse.
//
// Controls:
//
//	Mouse move  - Turn the model toward the pointer
//	Drag        - Same, as a single-finger touch
//	S           - Toggle RGB shift
//	X           - Toggle wireframe mode (x-ray)
//	R           - Ease back to center
//	P           - Save a PNG of the current frame
//	?           - Toggle HUD overlay (FPS, model, triangle count, modes)
//	Esc/Q       - Quit
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/taigrr/helmet/pkg/anim"
	"github.com/taigrr/helmet/pkg/assets"
	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
)

var version = "dev"

type options struct {
	hdri        string
	fps         int
	bg          string
	shift       float64
	exposure    float64
	smoothing   string
	textureSize uint
	fit         float64
	logFile     string
	logLevel    string
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:   "helmet [model.gltf|model.glb|url]",
		Short: "Terminal glTF viewer with image-based lighting",
		Long: `helmet renders a glTF model in the terminal, lit by an HDRI environment map
and passed through an RGB-shift effect. The model turns toward the mouse;
dragging acts as a single-finger touch.

Both assets load in the background. If either fails the error is logged and
the viewer keeps running without it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewer(cmd.Context(), opts, modelArg(args))
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.hdri, "hdri", assets.DefaultEnvironment, "Environment map (Radiance .hdr, PNG or JPEG; path or URL)")
	f.StringVar(&opts.bg, "bg", "0,0,0", "Background color (R,G,B)")
	f.Float64Var(&opts.shift, "shift", render.DefaultShiftAmount, "RGB shift amount in UV units")
	f.Float64Var(&opts.exposure, "exposure", 1, "Tone mapping exposure")
	f.StringVar(&opts.smoothing, "smoothing", string(anim.SmoothingEase), "Rotation smoothing: ease or spring")
	f.UintVar(&opts.textureSize, "texture-size", models.DefaultMaxTextureSize, "Downscale textures larger than this (0 keeps full size)")
	f.Float64Var(&opts.fit, "fit", 0, "Scale the model's largest extent to this size (0 keeps authored scale)")
	f.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	root.Flags().IntVar(&opts.fps, "fps", 60, "Target FPS")

	root.AddCommand(newSnapshotCmd(opts))

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func modelArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return assets.DefaultModel
}

// parseBackground reads an "R,G,B" triple.
func parseBackground(s string) (render.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return render.Color{}, fmt.Errorf("background %q: want R,G,B", s)
	}
	var c [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return render.Color{}, fmt.Errorf("background %q: %w", s, err)
		}
		c[i] = uint8(n)
	}
	return render.RGB(c[0], c[1], c[2]), nil
}

func (o *options) loader() *models.GLTFLoader {
	l := models.NewGLTFLoader()
	l.MaxTextureSize = o.textureSize
	l.FitSize = o.fit
	return l
}
