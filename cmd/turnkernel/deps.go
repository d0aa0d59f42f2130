package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/turnkernel/internal/config"
	"github.com/OCAP2/turnkernel/internal/database"
	"github.com/OCAP2/turnkernel/internal/influx"
	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/internal/snapshot"
	"github.com/OCAP2/turnkernel/internal/storage"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// services holds what a session needs beyond its own config. close releases them in
// reverse order of creation.
type services struct {
	snapshots *snapshot.Manager
	store     storage.SnapshotStore
	db        *database.Manager
	metrics   *influx.Manager
}

func (s *services) sink() replay.StatsSink {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}

func (s *services) close() error {
	var errs []error
	if s.snapshots != nil {
		if d, ok := s.store.(storage.Dumper); ok {
			if path := config.GetStorageConfig().Sqlite.DumpPath; path != "" {
				errs = append(errs, d.Dump(path))
			}
		}
		errs = append(errs, s.snapshots.Close())
	} else if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.metrics != nil {
		errs = append(errs, s.metrics.Close())
	}
	return errors.Join(errs...)
}

// sessionConfig builds the session settings from the movement and replay config.
func sessionConfig(scenario string, players []core.PlayerID) session.Config {
	mc := config.GetMovementConfig()
	rc := config.GetReplayConfig()
	return session.Config{
		Scenario: scenario,
		Players:  players,
		Envelope: core.Envelope{
			MaxRange:     mc.MaxRange,
			MaxElevation: mc.MaxElevation,
			MaxRotation:  mc.MaxRotation,
		},
		ClampTargets: mc.ClampTargets,
		CompressLog:  config.GetBool("eventlog.compress"),
		Replay:       replay.Config{FrameStep: rc.FrameStep, MaxSpeed: rc.MaxSpeed},
	}
}

// newServices opens the metrics sink and, when withSnapshots is set, the configured
// snapshot store behind a snapshot manager. Saved sessions bring their own snapshots.
func newServices(ctx context.Context, logs io.Writer, withSnapshots bool) (*services, error) {
	svc := &services{}
	zl := zeroLogger(logs)

	if ic := config.GetInfluxConfig(); ic.Enabled {
		lc := config.GetLoggingConfig()
		if err := os.MkdirAll(lc.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		backup := filepath.Join(lc.Dir, fmt.Sprintf("%s_influx_backup.%s.log.gz",
			ExtensionName, SessionStartTime.UTC().Format("20060102_150405")))
		m := influx.NewManager(ic, zl.With().Str("component", "influx").Logger(), backup)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := m.Connect(connectCtx)
		cancel()
		if err != nil {
			// Metrics are optional; the session runs without them.
			Logger.Warn("InfluxDB unavailable, reconstruction timings are not recorded", "error", err)
		} else {
			svc.metrics = m
		}
	}

	if !withSnapshots {
		return svc, nil
	}

	sc := config.GetStorageConfig()
	if sc.Type == "postgres" {
		svc.db = database.NewManager(zl.With().Str("component", "database").Logger())
		if _, err := svc.db.OpenPostgres(); err != nil {
			svc.close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}
	store, err := storage.NewStore(sc, storage.Dependencies{LogManager: SlogManager, DB: svc.db})
	if err != nil {
		svc.close()
		return nil, err
	}
	svc.store = store

	snapCfg := config.GetSnapshotConfig()
	mgr, err := snapshot.NewManager(snapshot.Config{
		Interval:      snapCfg.Interval,
		MaxResident:   snapCfg.MaxResident,
		Async:         snapCfg.AsyncWrites,
		FlushInterval: snapCfg.FlushInterval,
	}, snapshot.Dependencies{Store: store, LogManager: SlogManager})
	if err != nil {
		svc.close()
		return nil, err
	}
	if err := mgr.Init(); err != nil {
		svc.close()
		return nil, err
	}
	svc.snapshots = mgr
	Logger.Info("Snapshot store initialized", "type", sc.Type, "interval", snapCfg.Interval, "maxResident", snapCfg.MaxResident)
	return svc, nil
}

// openSaved loads a saved session read-only.
func openSaved(ctx context.Context, logs io.Writer, dir string) (*session.Session, *services, error) {
	svc, err := newServices(ctx, logs, false)
	if err != nil {
		return nil, nil, err
	}
	m, err := session.ReadManifest(dir)
	if err != nil {
		svc.close()
		return nil, nil, err
	}
	s, err := session.Open(dir, sessionConfig(m.Scenario, m.Players), session.Dependencies{
		LogManager: SlogManager,
		Sink:       svc.sink(),
	})
	if err != nil {
		svc.close()
		return nil, nil, err
	}
	return s, svc, nil
}
