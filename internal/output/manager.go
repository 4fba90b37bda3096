package output

import (
	"errors"
	"fmt"
	"sync"
)

// Sink receives findings, summaries and run lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Tally counts the findings a run has written.
type Tally struct {
	Findings int
	// Wrongs counts FAIL findings.
	Wrongs int
	// Partial is set once any ERROR finding was written.
	Partial bool
}

// Manager fans every record out to its sinks and tallies the findings that
// pass through, so run.finished and the exit code agree with what was written.
type Manager struct {
	mu    sync.Mutex
	sinks []Sink
	tally Tally
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
	return nil
}

// Write counts v if it is a Finding and hands it to every sink. A failing
// sink does not stop the others.
func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := v.(Finding); ok {
		m.tally.Findings++
		switch f.Status {
		case StatusFail:
			m.tally.Wrongs++
		case StatusError:
			m.tally.Partial = true
		}
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("write %T: %w", v, err)
	}
	return nil
}

func (m *Manager) Tally() Tally {
	if m == nil {
		return Tally{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tally
}

// Finish writes the run.finished event carrying the tally and closes every
// sink.
func (m *Manager) Finish(runID, command string, exitCode int) error {
	t := m.Tally()
	werr := m.Write(Event{
		Type:     EventRunFinished,
		RunID:    runID,
		Command:  command,
		Findings: t.Findings,
		Wrongs:   t.Wrongs,
		ExitCode: exitCode,
	})
	return errors.Join(werr, m.Close())
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close sinks: %w", err)
	}
	return nil
}
