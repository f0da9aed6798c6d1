package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ButtonsFile represents the buttons.yaml structure used in headless mode.
// Each button carries the same keys the host persists.
type ButtonsFile struct {
	Buttons []ButtonEntry `yaml:"buttons"`
}

// ButtonEntry is one configured button
type ButtonEntry struct {
	Name     string         `yaml:"name"`
	Settings map[string]any `yaml:"settings"`
}

// Button is a parsed, validated button
type Button struct {
	Name     string
	Settings Settings
}

// Loader manages loading and live reloading of the buttons file
type Loader struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	buttons []Button

	debounce time.Duration
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoader creates a loader for the buttons file at path
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:     path,
		logger:   logger.Named("settings"),
		debounce: 250 * time.Millisecond,
	}
}

// Load reads and validates the buttons file, replacing the current buttons
// only when the whole file is valid.
func (l *Loader) Load() ([]Button, error) {
	l.logger.Debug("Loading buttons file", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read buttons file: %w", err)
	}

	buttons, err := l.parse(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.buttons = buttons
	l.mu.Unlock()

	l.logger.Info("Buttons file loaded",
		zap.String("path", l.path),
		zap.Int("buttons", len(buttons)))
	return buttons, nil
}

func (l *Loader) parse(data []byte) ([]Button, error) {
	var file ButtonsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse buttons file: %w", err)
	}
	if len(file.Buttons) == 0 {
		return nil, fmt.Errorf("buttons file %s defines no buttons", l.path)
	}

	seen := make(map[string]bool, len(file.Buttons))
	buttons := make([]Button, 0, len(file.Buttons))
	for i, entry := range file.Buttons {
		if entry.Name == "" {
			return nil, fmt.Errorf("button %d is missing a name", i)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("duplicate button name %q", entry.Name)
		}
		seen[entry.Name] = true

		s, warnings, err := FromMap(entry.Settings)
		if err != nil {
			return nil, fmt.Errorf("button %q: %w", entry.Name, err)
		}
		for _, w := range warnings {
			l.logger.Warn("Button settings warning",
				zap.String("button", entry.Name),
				zap.String("warning", w))
		}
		buttons = append(buttons, Button{Name: entry.Name, Settings: s})
	}
	return buttons, nil
}

// Buttons returns the most recently loaded buttons
func (l *Loader) Buttons() []Button {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Button, len(l.buttons))
	copy(out, l.buttons)
	return out
}

// Watch reloads the buttons file whenever it changes and passes the new
// buttons to onChange. Invalid edits are logged and the previous buttons stay
// in effect. The parent directory is watched so editors that replace the
// file on save are handled.
func (l *Loader) Watch(onChange func([]Button)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(l.path), err)
	}

	l.watcher = watcher
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.watchLoop(onChange)

	l.logger.Info("Watching buttons file for changes", zap.String("path", l.path))
	return nil
}

func (l *Loader) watchLoop(onChange func([]Button)) {
	defer close(l.doneCh)

	target := filepath.Clean(l.path)
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce bursts of writes from a single save
			pending = time.After(l.debounce)

		case <-pending:
			pending = nil
			buttons, err := l.Load()
			if err != nil {
				l.logger.Error("Failed to reload buttons file, keeping previous buttons", zap.Error(err))
				continue
			}
			onChange(buttons)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("File watcher error", zap.Error(err))

		case <-l.stopCh:
			return
		}
	}
}

// Stop stops watching. It is safe to call when Watch was never started.
func (l *Loader) Stop() {
	if l.watcher == nil {
		return
	}
	close(l.stopCh)
	<-l.doneCh
	l.watcher.Close()
	l.watcher = nil
}
