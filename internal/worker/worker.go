// Package worker binds front-end commands to the session that is currently loaded.
package worker

import (
	"errors"
	"sync/atomic"

	"github.com/OCAP2/turnkernel/internal/handlers"
	"github.com/OCAP2/turnkernel/internal/influx"
	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/session"
)

// ErrNoSession is returned by session commands while no session is loaded.
var ErrNoSession = errors.New("no session loaded")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager *logging.SlogManager
	Parser     *handlers.Parser
	// Metrics receives :METRIC: points; the command is not registered when nil.
	Metrics *influx.Manager
	// SaveDir is used by :SAVE: when the command carries no directory.
	SaveDir string
}

// Manager routes dispatched commands to the loaded session.
type Manager struct {
	deps    Dependencies
	session atomic.Pointer[session.Session]
}

// NewManager creates a new worker manager serving s, which may be nil until a
// session is loaded with SetSession.
func NewManager(deps Dependencies, s *session.Session) *Manager {
	if deps.Parser == nil {
		deps.Parser = handlers.NewParser(deps.LogManager.Logger())
	}
	m := &Manager{deps: deps}
	if s != nil {
		m.session.Store(s)
	}
	return m
}

// SetSession replaces the session served by every handler and returns the previous one.
func (m *Manager) SetSession(s *session.Session) *session.Session {
	return m.session.Swap(s)
}

// Session returns the loaded session, or nil.
func (m *Manager) Session() *session.Session {
	return m.session.Load()
}

func (m *Manager) current() (*session.Session, error) {
	s := m.session.Load()
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
