// Package threadmgr supervises the engine's long-running workers: book
// feeds, the beat-driven main loop, balance trackers. Each worker is
// attached with a name and a declaration of whether it is expected to
// terminate on its own. Any unexpected failure or exit is fatal to the
// process, mirroring a supervisor tree with no restart policy.
package threadmgr

import (
	"fmt"
	"os"
	"sync"

	"fairsengine/pkg/utils"
)

// Worker is a named unit of long-running work. It should run until ctx-free
// cancellation (none is provided; shutdown is process-level) or until it
// completes its work, returning nil only when terminates is true.
type Worker func() error

type worker struct {
	name       string
	fn         Worker
	terminates bool
}

// Manager starts and supervises a fixed set of workers.
type Manager struct {
	mu      sync.Mutex
	workers []worker
	started bool
	done    chan result
	logger  *utils.Logger
}

type result struct {
	name string
	err  error
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		done:   make(chan result),
		logger: utils.L().WithComponent("threadmgr"),
	}
}

// Attach registers a worker. Before Run, attaching only queues the worker.
// After Run has started, Attach starts it immediately as a daemon.
func (m *Manager) Attach(name string, fn Worker, terminates bool) {
	w := worker{name: name, fn: fn, terminates: terminates}
	m.mu.Lock()
	started := m.started
	m.workers = append(m.workers, w)
	m.mu.Unlock()

	if started {
		m.spawn(w)
	}
}

func (m *Manager) spawn(w worker) {
	go func() {
		err := w.fn()
		m.done <- result{name: w.name, err: err}
	}()
}

// Run takes over the calling goroutine: starts every attached worker as a
// daemon, then blocks on the completion channel. A finite worker's clean
// exit (nil error, terminates==true) is the only non-fatal outcome; anything
// else — a reported error, or an unexpected exit of a non-terminating
// worker — exits the process after logging.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		panic("threadmgr: Run called more than once")
	}
	m.started = true
	workers := m.workers
	m.mu.Unlock()

	pending := make(map[string]bool, len(workers))
	for _, w := range workers {
		pending[w.name] = true
		m.spawn(w)
	}

	for len(pending) > 0 {
		r := <-m.done
		if r.err != nil {
			m.logger.Error("worker failed", utils.String("worker", r.name), utils.Err(r.err))
			fmt.Fprintf(os.Stderr, "fatal: worker %q failed: %v\n", r.name, r.err)
			os.Exit(1)
		}

		finite := false
		m.mu.Lock()
		for _, w := range m.workers {
			if w.name == r.name && w.terminates {
				finite = true
				break
			}
		}
		m.mu.Unlock()

		if !finite {
			m.logger.Error("non-terminating worker exited unexpectedly", utils.String("worker", r.name))
			fmt.Fprintf(os.Stderr, "fatal: non-terminating worker %q exited\n", r.name)
			os.Exit(1)
		}

		delete(pending, r.name)
		m.logger.Info("worker completed", utils.String("worker", r.name))
	}
}

// RunAll is a convenience wrapper that attaches the given named, terminating
// workers and runs the manager, folding trader/util.py's manage_threads
// helper into the Manager itself.
func RunAll(workers map[string]Worker) {
	m := New()
	for name, fn := range workers {
		m.Attach(name, fn, true)
	}
	m.Run()
}
