// Package signals handles operator-to-coordinator communication via the
// .relay directory. Signal files let an operator pause hand-out or halt
// the board without talking to a running process directly.
package signals

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager watches the .relay/signals directory for pause and halt files.
// Paused suspends task hand-out; Halted tells polling agents to exit.
// It satisfies the coordinator's Gate interface.
type Manager struct {
	relayDir string

	mu          sync.RWMutex
	haltSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager creates a signal manager rooted at the given project path.
func NewManager(projectPath string) (*Manager, error) {
	relayDir := filepath.Join(projectPath, ".relay")

	if err := os.MkdirAll(filepath.Join(relayDir, "signals"), 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		relayDir: relayDir,
		done:     make(chan struct{}),
	}

	// Start file watcher for immediate signals
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - will use polling fallback
		return m, nil
	}
	m.watcher = watcher

	signalsDir := filepath.Join(relayDir, "signals")
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		m.watcher = nil
		return m, nil
	}

	go m.watchSignals()

	return m, nil
}

// watchSignals monitors the signals directory for halt/pause files.
func (m *Manager) watchSignals() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			created := event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0
			removed := event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0

			m.mu.Lock()
			switch filepath.Base(event.Name) {
			case "halt":
				if created {
					m.haltSignal = true
				} else if removed {
					m.haltSignal = false
				}
			case "pause":
				if created {
					m.pauseSignal = true
				} else if removed {
					m.pauseSignal = false
				}
			}
			m.mu.Unlock()
		case <-m.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Paused returns true while a pause signal is in effect. The signal file
// is also checked directly in case the watcher missed the event.
func (m *Manager) Paused() bool {
	m.refresh("pause", func(present bool) { m.pauseSignal = present })

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pauseSignal
}

// Halted returns true if a halt signal has been received.
func (m *Manager) Halted() bool {
	m.refresh("halt", func(present bool) { m.haltSignal = present })

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.haltSignal
}

// refresh reconciles in-memory state with the signal file on disk.
func (m *Manager) refresh(name string, set func(bool)) {
	_, err := os.Stat(filepath.Join(m.relayDir, "signals", name))

	m.mu.Lock()
	set(err == nil)
	m.mu.Unlock()
}

// SendPause creates a pause signal file.
func (m *Manager) SendPause() error {
	path := filepath.Join(m.relayDir, "signals", "pause")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendHalt creates a halt signal file.
func (m *Manager) SendHalt() error {
	path := filepath.Join(m.relayDir, "signals", "halt")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files and resets signal state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.haltSignal = false
	m.pauseSignal = false

	os.Remove(filepath.Join(m.relayDir, "signals", "halt"))
	os.Remove(filepath.Join(m.relayDir, "signals", "pause"))
}

// RelayDir returns the path to the .relay directory.
func (m *Manager) RelayDir() string {
	return m.relayDir
}

// Close shuts down the signal manager.
func (m *Manager) Close() {
	close(m.done)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
