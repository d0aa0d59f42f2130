// Package monitor periodically samples the running session: turn, log size, snapshot
// residency and playback state. Samples go to a status file and, when configured, to
// InfluxDB.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/session"
)

// StatusMeasurement is the influx measurement written for every sample.
const StatusMeasurement = "session_status"

// SessionSource yields the session being served, or nil between sessions.
type SessionSource interface {
	Session() *session.Session
}

// PointWriter accepts influx points. *influx.Manager satisfies it.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Sessions   SessionSource
	LogManager *logging.SlogManager
	// Points is optional.
	Points PointWriter
	// StatusPath is rewritten with the latest sample; empty disables the file.
	StatusPath string
	Interval   time.Duration
}

// Status is one sample of the running session.
type Status struct {
	Time              time.Time `json:"time"`
	SessionID         string    `json:"sessionId"`
	Scenario          string    `json:"scenario"`
	Turn              uint32    `json:"turn"`
	Phase             string    `json:"phase"`
	ReadOnly          bool      `json:"readOnly"`
	Events            int       `json:"events"`
	Snapshots         int       `json:"snapshots"`
	ResidentSnapshots int       `json:"residentSnapshots"`
	PendingWrites     int       `json:"pendingWrites"`
	ReplayState       string    `json:"replayState"`
	ReplayPosition    float64   `json:"replayPosition"`
	LastSeekMs        float64   `json:"lastSeekMs"`
}

// Collect samples s.
func Collect(s *session.Session) Status {
	st := Status{
		Time:           time.Now().UTC(),
		SessionID:      s.ID(),
		Scenario:       s.Scenario(),
		Turn:           s.Turn(),
		Phase:          s.Phase().String(),
		ReadOnly:       s.ReadOnly(),
		Events:         s.Events().Len(),
		ReplayState:    s.Replay().State().String(),
		ReplayPosition: s.Replay().Position(),
		LastSeekMs:     float64(s.Replay().LastStats().Duration.Microseconds()) / 1000,
	}
	if snaps := s.Snapshots(); snaps != nil {
		st.Snapshots = len(snaps.Turns())
		st.ResidentSnapshots = len(snaps.Resident())
		st.PendingWrites = snaps.Pending()
	}
	return st
}

// Point converts a sample into an influx point.
func (st Status) Point() *influxdb2_write.Point {
	return influxdb2.NewPoint(StatusMeasurement,
		map[string]string{
			"session":  st.SessionID,
			"scenario": st.Scenario,
			"phase":    st.Phase,
		},
		map[string]any{
			"turn":               int64(st.Turn),
			"events":             int64(st.Events),
			"snapshots":          int64(st.Snapshots),
			"resident_snapshots": int64(st.ResidentSnapshots),
			"pending_writes":     int64(st.PendingWrites),
			"replay_position":    st.ReplayPosition,
			"last_seek_ms":       st.LastSeekMs,
		},
		st.Time,
	)
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample collects one status and writes it to the configured sinks. It returns false
// when there is no session to sample.
func (s *Service) Sample() (Status, bool) {
	sess := s.deps.Sessions.Session()
	if sess == nil {
		return Status{}, false
	}
	st := Collect(sess)

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			s.deps.LogManager.WriteLog("monitor:Sample", fmt.Sprintf("Failed to write status file: %v", err), "WARN")
		}
	}
	if s.deps.Points != nil {
		if err := s.deps.Points.WritePoint(st.Point()); err != nil {
			s.deps.LogManager.WriteLog("monitor:Sample", fmt.Sprintf("Failed to write status point: %v", err), "WARN")
		}
	}
	return st, true
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.deps.Sessions == nil {
		return fmt.Errorf("status monitor requires a session source")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := s.deps.LogManager.Logger()
	logger.Debug("Starting status monitor", "interval", s.deps.Interval, "statusFile", s.deps.StatusPath)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Stop stops the status monitor and waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
