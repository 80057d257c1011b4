package scan

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrg-lab/chamber/internal/analyzer"
	"github.com/hrg-lab/chamber/internal/network"
)

// ErrScanRunning is returned when a scan is started while one is active.
var ErrScanRunning = errors.New("a scan is already running")

// Status is a snapshot of the manager's state for the API.
type Status struct {
	Running   bool      `json:"running"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Progress  Progress  `json:"progress"`
	LastError string    `json:"last_error,omitempty"`
}

// Manager owns the scan lifecycle for the daemon: it runs at most one
// worker at a time and holds the current models. The worker goroutine is
// the only writer while scanning; readers get the models published by
// the previous completed (or aborted) scan, so the UI never observes a
// half-written collection.
type Manager struct {
	pos Positioner
	an  analyzer.Analyzer

	mu        sync.RWMutex
	models    Result
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string
	startedAt time.Time
	progress  Progress
	lastErr   error
}

// NewManager creates a manager with an empty model set.
func NewManager(pos Positioner, an analyzer.Analyzer) *Manager {
	return &Manager{
		pos:    pos,
		an:     an,
		models: make(Result),
	}
}

// Start launches a scan in the background. The returned session ID tags
// the scan for persistence.
func (m *Manager) Start(params Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", ErrScanRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.sessionID = uuid.NewString()
	m.startedAt = time.Now()
	m.progress = Progress{}
	m.lastErr = nil
	id := m.sessionID
	done := m.done
	m.mu.Unlock()

	worker := NewWorker(m.pos, m.an)

	go func() {
		for p := range worker.Progress() {
			m.mu.Lock()
			m.progress = p
			m.mu.Unlock()
		}
	}()

	go func() {
		defer close(done)
		models, err := worker.Run(ctx, params)
		cancel()
		close(worker.progress)

		m.mu.Lock()
		m.running = false
		m.models = models
		m.lastErr = err
		m.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scan %s failed: %v", id, err)
		} else {
			log.Printf("scan %s finished (%d polarizations)", id, len(models))
		}
	}()

	return id, nil
}

// Abort cancels the running scan, if any, and waits for the worker to
// publish its partial result.
func (m *Manager) Abort() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	running := m.running
	m.mu.Unlock()

	if !running || cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current scan finishes. A no-op when idle.
func (m *Manager) Wait() {
	m.mu.RLock()
	done := m.done
	running := m.running
	m.mu.RUnlock()
	if running && done != nil {
		<-done
	}
}

// Status reports the manager's current state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Running:   m.running,
		SessionID: m.sessionID,
		StartedAt: m.startedAt,
		Progress:  m.progress,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Model returns the current model for a polarization label, or an empty
// model when the label is unknown.
func (m *Manager) Model(pol string) *network.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mod, ok := m.models[pol]; ok {
		return mod
	}
	return network.NewModel()
}

// Models returns a copy of the published model map.
func (m *Manager) Models() Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(Result, len(m.models))
	for k, v := range m.models {
		out[k] = v
	}
	return out
}

// Polarizations lists the labels with published models.
func (m *Manager) Polarizations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.models))
	for k := range m.models {
		out = append(out, k)
	}
	return out
}

// SessionID returns the ID of the current or most recent scan.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Replace swaps in a loaded model set, e.g. from a stored session.
// Refused while a scan is running.
func (m *Manager) Replace(sessionID string, models Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrScanRunning
	}
	if models == nil {
		models = make(Result)
	}
	m.sessionID = sessionID
	m.models = models
	m.lastErr = nil
	return nil
}

// Clear drops the published models. Refused while a scan is running.
func (m *Manager) Clear() error {
	return m.Replace("", nil)
}
