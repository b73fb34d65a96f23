package config

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

// Tuning is the runtime-changeable part of the configuration.
type Tuning struct {
	Binding BindingConfig `yaml:"binding"`
	Collab  CollabConfig  `yaml:"collab"`
}

// Watcher watches the tuning file for changes and notifies subscribers.
// Proximity radii and the change cooldown can be adjusted without a
// restart.
type Watcher struct {
	path        string
	watcher     *fsnotify.Watcher
	current     *Tuning
	mu          sync.RWMutex
	onChange    []func(*Tuning)
	logger      *zap.Logger
	stopCh      chan struct{}
	lastModTime time.Time
}

// NewWatcher creates a tuning watcher over the given file.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	tuning, err := loadTuningFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial tuning: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch tuning file: %w", err)
	}
	// Watch the directory too, for atomic saves done as renames.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch tuning directory", zap.Error(err))
	}

	w := &Watcher{
		path:    path,
		watcher: fsw,
		current: tuning,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Current returns the latest tuning values.
func (w *Watcher) Current() Tuning {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return *w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*Tuning)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Stop ends the watch loop.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("tuning watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("tuning file unreadable, keeping previous values", zap.Error(err))
		return
	}
	w.mu.Lock()
	if !info.ModTime().After(w.lastModTime) {
		w.mu.Unlock()
		return
	}
	w.lastModTime = info.ModTime()
	w.mu.Unlock()

	tuning, err := loadTuningFile(w.path)
	if err != nil {
		w.logger.Warn("tuning reload failed, keeping previous values", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = tuning
	callbacks := append([]func(*Tuning){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("tuning reloaded",
		zap.Float64("directRadius", tuning.Binding.DirectRadius),
		zap.Float64("correctiveRadius", tuning.Binding.CorrectiveRadius),
		zap.Duration("changeCooldown", tuning.Collab.ChangeCooldown),
	)
	for _, fn := range callbacks {
		fn(tuning)
	}
}

func loadTuningFile(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Durations travel as strings ("500ms"); yaml has no native duration.
	raw := struct {
		Binding BindingConfig `yaml:"binding"`
		Collab  struct {
			ChangeCooldown string `yaml:"changeCooldown"`
			SendBufferSize int    `yaml:"sendBufferSize"`
			RelayEndpoint  string `yaml:"relayEndpoint"`
		} `yaml:"collab"`
	}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	tuning := &Tuning{Binding: raw.Binding}
	tuning.Collab.SendBufferSize = raw.Collab.SendBufferSize
	tuning.Collab.RelayEndpoint = raw.Collab.RelayEndpoint
	if raw.Collab.ChangeCooldown != "" {
		d, err := time.ParseDuration(raw.Collab.ChangeCooldown)
		if err != nil {
			return nil, fmt.Errorf("invalid changeCooldown: %w", err)
		}
		tuning.Collab.ChangeCooldown = d
	}
	if tuning.Binding.DirectRadius <= 0 {
		tuning.Binding.DirectRadius = 100
	}
	if tuning.Binding.CorrectiveRadius <= 0 {
		tuning.Binding.CorrectiveRadius = 50
	}
	return tuning, nil
}
