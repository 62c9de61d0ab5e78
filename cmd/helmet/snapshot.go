package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taigrr/helmet/pkg/anim"
	"github.com/taigrr/helmet/pkg/assets"
	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
	"github.com/taigrr/helmet/pkg/viewer"
	"golang.org/x/sync/errgroup"
)

type snapshotOptions struct {
	out     string
	width   int
	height  int
	pointer string
}

func newSnapshotCmd(opts *options) *cobra.Command {
	snap := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot [model.gltf|model.glb|url]",
		Short: "Render one frame to a PNG without a terminal",
		Long: `snapshot loads the model and environment, turns the model toward the given
pointer position, waits for the rotation to settle and writes the frame.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), opts, snap, modelArg(args))
		},
	}
	cmd.Flags().StringVarP(&snap.out, "out", "o", "helmet.png", "Output PNG path")
	cmd.Flags().IntVar(&snap.width, "width", 480, "Image width in pixels")
	cmd.Flags().IntVar(&snap.height, "height", 270, "Image height in pixels")
	cmd.Flags().StringVar(&snap.pointer, "pointer", "0.5,0.5", "Pointer position as fractions of the image (X,Y)")
	return cmd
}

// parsePointer reads an "X,Y" pair of viewport fractions.
func parsePointer(s string) (x, y float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("pointer %q: want X,Y", s)
	}
	var v [2]float64
	for i, p := range parts {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("pointer %q: %w", s, err)
		}
		if v[i] < 0 || v[i] > 1 {
			return 0, 0, fmt.Errorf("pointer %q: fractions must be within [0,1]", s)
		}
	}
	return v[0], v[1], nil
}

func runSnapshot(ctx context.Context, opts *options, snap *snapshotOptions, modelPath string) error {
	if snap.width <= 0 || snap.height <= 0 {
		return fmt.Errorf("invalid size %dx%d", snap.width, snap.height)
	}
	px, py, err := parsePointer(snap.pointer)
	if err != nil {
		return err
	}
	bg, err := parseBackground(opts.bg)
	if err != nil {
		return err
	}
	logger, flushLog, err := newLogger(opts, false)
	if err != nil {
		return err
	}
	defer flushLog()

	v, err := viewer.New(viewer.Config{
		Width:       snap.width,
		Height:      snap.height,
		Background:  bg,
		ShiftAmount: opts.shift,
		Exposure:    opts.exposure,
		Smoothing:   anim.Smoothing(opts.smoothing),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// Load failures are logged and the frame is rendered without the asset.
	var (
		model *models.Model
		env   *render.Environment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := assets.LoadModel(gctx, modelPath, opts.loader(), progressLogger(logger, "model", nil))
		if err != nil {
			logger.Error("load model", "src", modelPath, "err", err)
			return nil
		}
		model = m
		return nil
	})
	g.Go(func() error {
		e, err := assets.LoadEnvironment(gctx, opts.hdri, progressLogger(logger, "environment", nil))
		if err != nil {
			logger.Error("load environment", "src", opts.hdri, "err", err)
			return nil
		}
		env = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if model != nil && !v.SetModel(model) {
		logger.Error("load model", "src", modelPath, "err", "no triangle geometry")
	}
	v.SetEnvironment(env)
	v.PointerMove(px*float64(snap.width), py*float64(snap.height))

	// Ten seconds of simulated frames is ample for either smoothing mode.
	const dt = 1.0 / 60
	for i := 0; i < 600 && !v.Settled(); i++ {
		v.Step(dt)
	}
	v.Step(dt)

	if err := v.Render().SavePNG(snap.out); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("wrote snapshot", "path", snap.out, "width", snap.width, "height", snap.height)
	return nil
}
