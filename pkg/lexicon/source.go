package lexicon

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Source holds the current lexicon and reloads it when its file changes.
type Source struct {
	path     string
	logger   zerolog.Logger
	debounce time.Duration

	mu      sync.RWMutex
	current *Lexicon

	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
	stopped sync.Once
}

// NewSource loads path, or the built-in lexicon when path is empty.
func NewSource(path string, logger zerolog.Logger) (*Source, error) {
	s := &Source{
		path:     path,
		logger:   logger.With().Str("component", "lexicon").Logger(),
		debounce: 250 * time.Millisecond,
		current:  Default(),
		stopCh:   make(chan struct{}),
	}

	if path != "" {
		l, err := Load(path)
		if err != nil {
			return nil, err
		}
		s.current = l
	}

	return s, nil
}

// Current returns the lexicon in effect
func (s *Source) Current() *Lexicon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch reloads the lexicon whenever its file is written or replaced.
// The directory is watched so editors that rename over the file are seen.
func (s *Source) Watch() error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go s.run()
	return nil
}

// Close stops watching
func (s *Source) Close() error {
	var err error
	s.stopped.Do(func() {
		close(s.stopCh)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

func (s *Source) run() {
	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				s.scheduleReload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("Lexicon watcher error")

		case <-s.stopCh:
			return
		}
	}
}

func (s *Source) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.reload)
}

func (s *Source) reload() {
	l, err := Load(s.path)
	if err != nil {
		// keep serving the previous lexicon
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Lexicon reload failed")
		return
	}

	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	s.logger.Info().Str("path", s.path).Msg("Lexicon reloaded")
}
