package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/export"
	"serial-plotter/internal/render"
)

func captureCmd(env *runtimeEnv) *cobra.Command {
	var (
		port     string
		baud     int
		duration time.Duration
		out      string
		send     string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record samples without a GUI and export them to CSV on exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.settings.Channel()
			if port != "" {
				cfg.Port = port
			}
			if baud != 0 {
				cfg.BaudRate = baud
			}
			if out == "" {
				return errors.New("--out is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return runCapture(ctx, env, cfg, out, send, cmd)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Serial port (default: settings)")
	cmd.Flags().IntVar(&baud, "baud", 0, "Baud rate (default: settings)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().StringVar(&out, "out", "", "CSV file to write on exit")
	cmd.Flags().StringVar(&send, "send", "", "Payload to send once the port is open")
	return cmd
}

func runCapture(ctx context.Context, env *runtimeEnv, cfg channel.Config, out, send string, cmd *cobra.Command) error {
	log := env.logger.WithField("port", cfg.String())

	failed := make(chan error, 1)
	mgr := env.newManager(func(_ acquire.Session, err error) {
		if err != nil {
			failed <- err
		}
	})
	defer mgr.Close()

	env.serveMetrics(ctx)

	if err := mgr.StartAcquisition(cfg); err != nil {
		return err
	}

	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()
	go func() {
		_ = mgr.RunRenderer(renderCtx, render.SurfaceFunc(func(in render.Instruction) {
			log.WithFields(logrus.Fields{
				"points": len(in.Points),
				"x_min":  in.X.Min,
				"x_max":  in.X.Max,
				"y_min":  in.Y.Min,
				"y_max":  in.Y.Max,
			}).Debug("frame")
		}))
	}()

	if send != "" {
		if err := mgr.SendRaw([]byte(send)); err != nil {
			log.WithError(err).Error("send")
		}
	}

	var sessionErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-failed:
			sessionErr = err
			break loop
		case line := <-mgr.Transcript():
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	mgr.StopAcquisition()
	stopRender()

	err := mgr.ExportCSV(out)
	switch {
	case errors.Is(err, export.ErrNoData):
		log.Warn("no samples captured; nothing written")
	case err != nil:
		return err
	default:
		log.WithField("samples", mgr.Stats().LogLen).Info("capture written to " + out)
	}
	return sessionErr
}
