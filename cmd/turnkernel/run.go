package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/internal/config"
	"github.com/OCAP2/turnkernel/internal/dispatcher"
	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/monitor"
	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/internal/worker"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	scenario string
	players  []string
	saveDir  string
	openDir  string
}

// reply is written to stdout for every command line.
type reply struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve a session over stdin/stdout",
		Long: `Start a new session, or open a saved one read-only, and serve commands read from
stdin. Each line is a JSON array: the command followed by its string arguments, e.g.

  [":ACTION:PLAN:", "3", "7", "[4,0,-2]", "boost"]

Every command gets one JSON reply line on stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.scenario, "scenario", "skirmish", "scenario name for a new session")
	cmd.Flags().StringSliceVar(&cfg.players, "player", nil, "player id for a new session (repeatable)")
	cmd.Flags().StringVar(&cfg.saveDir, "save", "", "save the session to this directory on exit and for :SAVE:")
	cmd.Flags().StringVar(&cfg.openDir, "open", "", "open a saved session read-only instead of starting one")

	return cmd
}

func runSession(ctx context.Context, in io.Reader, out, logs io.Writer, cfg *runConfig) error {
	var (
		s   *session.Session
		svc *services
		err error
	)
	if cfg.openDir != "" {
		s, svc, err = openSaved(ctx, logs, cfg.openDir)
	} else {
		s, svc, err = newSession(ctx, logs, cfg)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.close(); err != nil {
			Logger.Error("Failed to release services", "error", err)
		}
	}()
	defer s.Close()

	d, err := dispatcher.New(logging.NewDispatcherLogger(zeroLogger(logs)))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	mgr := worker.NewManager(worker.Dependencies{
		LogManager: SlogManager,
		Metrics:    svc.metrics,
		SaveDir:    cfg.saveDir,
	}, s)
	if err := mgr.RegisterHandlers(d); err != nil {
		return err
	}
	if mc := config.GetMonitorConfig(); mc.Enabled {
		dir := config.GetLoggingConfig().Dir
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		deps := monitor.Dependencies{
			Sessions:   mgr,
			LogManager: SlogManager,
			StatusPath: filepath.Join(dir, ExtensionName+"_status.json"),
			Interval:   mc.Interval,
		}
		if svc.metrics != nil {
			deps.Points = svc.metrics
		}
		mon := monitor.NewService(deps)
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()
	}

	Logger.InfoContext(logging.WithSession(ctx, s.ID()), "Session ready",
		"scenario", s.Scenario(), "readOnly", s.ReadOnly(), "commands", len(d.Commands()))

	if err := serve(ctx, d, in, out); err != nil {
		return err
	}

	if cfg.saveDir != "" && !s.ReadOnly() {
		m, err := s.Save(cfg.saveDir)
		if err != nil {
			return err
		}
		Logger.Info("Session saved", "dir", cfg.saveDir, "events", m.Events, "turn", m.CurrentTurn)

		if ac := config.GetAPIConfig(); ac.UploadOnSave {
			// The saved copy stays on disk when the archive is unreachable.
			if err := uploadSession(ac, cfg.saveDir, s.Scenario()); err != nil {
				Logger.Warn("Failed to upload session", "error", err)
			}
		}
	}
	return nil
}

func newSession(ctx context.Context, logs io.Writer, cfg *runConfig) (*session.Session, *services, error) {
	svc, err := newServices(ctx, logs, true)
	if err != nil {
		return nil, nil, err
	}
	players := make([]core.PlayerID, len(cfg.players))
	for i, p := range cfg.players {
		players[i] = core.PlayerID(p)
	}
	s, err := session.New(sessionConfig(cfg.scenario, players), session.Dependencies{
		Snapshots:  svc.snapshots,
		LogManager: SlogManager,
		Sink:       svc.sink(),
	})
	if err != nil {
		svc.close()
		return nil, nil, err
	}
	return s, svc, nil
}

// serve dispatches one command per input line until EOF or cancellation.
func serve(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var fields []string
		if err := json.Unmarshal([]byte(line), &fields); err != nil || len(fields) == 0 {
			if err := enc.Encode(reply{Error: fmt.Sprintf("malformed command line: %q", line)}); err != nil {
				return err
			}
			continue
		}

		r := reply{Command: fields[0]}
		result, err := d.Dispatch(ctx, dispatcher.Event{Command: fields[0], Args: fields[1:]})
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Result = result
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return scanner.Err()
}
