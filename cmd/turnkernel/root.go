package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OCAP2/turnkernel/internal/config"
	"github.com/OCAP2/turnkernel/internal/logging"
	intOtel "github.com/OCAP2/turnkernel/internal/otel"
)

// Global flags available to all subcommands.
var (
	configDir   string
	logLevel    string
	logToFile   bool
	showMetrics bool
)

// NewRootCmd creates the root command for the turnkernel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turnkernel",
		Short: "Deterministic turn simulation kernel",
		Long: `turnkernel records turn-based sessions as an ordered event log with periodic
snapshots, and reconstructs the state at any instant of a live or saved session.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return teardown(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding "+config.FileName)
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logLevel from the config")
	cmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "also write logs to a file in logsDir")
	cmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print collected metrics on exit (needs otel.enabled)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewSeekCmd())
	cmd.AddCommand(NewTrajectoryCmd())
	cmd.AddCommand(NewUploadCmd())

	return cmd
}

// setup loads the config and brings up logging and metrics.
func setup(cmd *cobra.Command) error {
	if err := config.Load(configDir); err != nil {
		return err
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	lc := config.GetLoggingConfig()

	opts := logging.Options{
		Level:   lc.Level,
		Console: cmd.ErrOrStderr(),
		Context: logging.FromContext,
	}
	if lc.GraylogEnabled {
		opts.GraylogAddress = lc.GraylogAddress
	}
	if logToFile {
		f, err := logging.OpenLogFile(lc.Dir, ExtensionName, SessionStartTime)
		if err != nil {
			return err
		}
		LogFile = f
		opts.File = f
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFile.Name())
	}

	otelCfg := config.GetOtelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{Enabled: true, ServiceName: otelCfg.ServiceName})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			OTelProvider = p
			Logger.Debug("OTel provider initialized", "service", otelCfg.ServiceName)
		}
	}
	return nil
}

func teardown(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if showMetrics {
			if err := printMetrics(ctx, cmd.ErrOrStderr()); err != nil {
				Logger.Warn("Failed to collect metrics", "error", err)
			}
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if SlogManager != nil {
		_ = SlogManager.Close()
	}
	if LogFile != nil {
		return LogFile.Close()
	}
	return nil
}

func printMetrics(ctx context.Context, w io.Writer) error {
	samples, err := OTelProvider.Summary(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tATTRIBUTES\tVALUE\tCOUNT")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\n", s.Name, s.Attrs, s.Value, s.Count)
	}
	return tw.Flush()
}

// zeroLogger builds the zerolog logger used by the connection managers.
func zeroLogger(w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(config.GetLoggingConfig().Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}
