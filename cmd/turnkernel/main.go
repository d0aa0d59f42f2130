// Command turnkernel runs and inspects turn-based simulation sessions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/OCAP2/turnkernel/internal/logging"
	intOtel "github.com/OCAP2/turnkernel/internal/otel"
)

// Version information set at build time.
var (
	CurrentVersion = "0.0.1"
	BuildDate      = "unknown"

	ExtensionName = "turnkernel"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider is set when otel.enabled is true
	OTelProvider *intOtel.Provider

	LogFile *os.File

	SessionStartTime = time.Now()
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (built: %s)", CurrentVersion, BuildDate)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
