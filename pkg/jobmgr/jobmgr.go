// Package jobmgr runs named background jobs with cancellation and in-memory
// tracking. Transports use it for their long-lived loops (the connection read
// loop, the outbound message queue) so Disconnect can stop them by name.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(ev jobmgr.Event) {
//	    log.Println(ev.Job, ev.State, ev.Err)
//	})
//
//	_ = jm.StartAsync(ctx, "irc", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	_ = jm.Stop("irc")
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrJobRunning    = errors.New("job already running")
	ErrJobNotRunning = errors.New("job not running")
)

// State is a job lifecycle stage.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Event is delivered to the reporter on every lifecycle change.
type Event struct {
	Job   string
	State State
	Err   error
}

// Reporter receives lifecycle events. It may be nil.
type Reporter func(Event)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	reporter Reporter
}

// NewManager creates a new Manager.
func NewManager(reporter Reporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		reporter: reporter,
	}
}

// StartAsync runs runner in its own goroutine under a context derived from
// parent. A job with the same name must not already be running. Jobs are
// removed automatically when runner returns.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	ctx, cancel := context.WithCancel(parent)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.mu.Unlock()

	m.report(Event{Job: name, State: StateRunning})

	go func() {
		defer close(j.done)
		defer cancel()

		err := runner(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.report(Event{Job: name, State: StateFailed, Err: err})
		} else {
			m.report(Event{Job: name, State: StateDone})
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, name)
	}
	j.cancel()
	<-j.done
	return nil
}

// StopAll stops every running job.
func (m *Manager) StopAll() {
	for _, name := range m.List() {
		_ = m.Stop(name)
	}
}

// Running reports whether the named job is active.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the sorted names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	m.mu.Unlock()

	sort.Strings(out)
	return out
}

func (m *Manager) report(ev Event) {
	if m.reporter != nil {
		m.reporter(ev)
	}
}
