package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/config"
	"serial-plotter/internal/export"
	"serial-plotter/internal/metrics"
	"serial-plotter/internal/monitor"
)

// runtimeEnv is what every subcommand needs once flags are parsed.
type runtimeEnv struct {
	settings     *config.Config
	settingsPath string
	logger       *logrus.Entry
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
}

func main() {
	var (
		settingsPath string
		logLevel     string
		metricsAddr  string
		env          runtimeEnv
	)

	root := &cobra.Command{
		Use:           "serial-plotter",
		Short:         "Plot and record numeric samples streamed over a serial port",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if settingsPath == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				settingsPath = p
			}
			settings, err := config.Load(settingsPath)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				settings.LogLevel = logLevel
			}
			if cmd.Flags().Changed("metrics-addr") {
				settings.MetricsAddr = metricsAddr
			}

			logger := logrus.New()
			logger.SetOutput(os.Stderr)
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			level, err := logrus.ParseLevel(settings.LogLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)

			env.settings = settings
			env.settingsPath = settingsPath
			env.logger = logrus.NewEntry(logger)
			env.registry = prometheus.NewRegistry()
			env.metrics = metrics.New(env.registry)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(cmd.Context(), &env)
		},
	}
	root.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default: user config dir)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	root.AddCommand(portsCmd())
	root.AddCommand(captureCmd(&env))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newManager builds the core from settings.
func (env *runtimeEnv) newManager(onStopped func(acquire.Session, error)) *monitor.Manager {
	s := env.settings
	return monitor.New(monitor.Options{
		Dial:             channel.SerialDialer,
		WindowSize:       s.WindowSize,
		ResetOnStart:     s.ResetsOnStart(),
		TranscriptBuffer: s.TranscriptBuffer,
		RenderPeriod:     s.RenderPeriod,
		Margin:           s.Margin(),
		Export:           export.DefaultOptions(),
		Metrics:          env.metrics,
		Logger:           env.logger,
		OnStopped:        onStopped,
	})
}

// serveMetrics starts the metrics endpoint when configured.
func (env *runtimeEnv) serveMetrics(ctx context.Context) {
	addr := env.settings.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, env.registry, env.logger); err != nil {
			env.logger.WithError(err).Error("metrics server stopped")
		}
	}()
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List detected serial ports",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range channel.ListPorts() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}
}
