package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/taigrr/helmet/pkg/assets"
)

// newLogger builds the application logger. While the alternate screen is
// up (held is true) records cannot go to stderr without tearing the frame,
// so unless a log file is given they are held in memory and written out by
// the returned flush func.
func newLogger(o *options, held bool) (logger *log.Logger, flush func(), err error) {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", o.logLevel, err)
	}

	var (
		w    io.Writer = os.Stderr
		done           = func() {}
	)
	switch {
	case o.logFile != "":
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		done = func() { f.Close() }
	case held:
		var buf bytes.Buffer
		w = &buf
		done = func() { os.Stderr.Write(buf.Bytes()) }
	}

	logger = log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: o.logFile != "",
		Prefix:          "helmet",
	})
	return logger, done, nil
}

// progressLogger logs load progress in 10% steps.
func progressLogger(logger *log.Logger, what string, report func(pct int)) assets.Progress {
	last := -1
	return func(fraction float64) {
		if fraction < 0 {
			return
		}
		pct := int(fraction * 100)
		if report != nil {
			report(pct)
		}
		if step := pct / 10; step != last {
			last = step
			logger.Info(fmt.Sprintf("loading %s... %d%% loaded", what, pct))
		}
	}
}
