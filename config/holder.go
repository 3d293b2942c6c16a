package config

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a burst of file events is coalesced before
// the file is read again.
const DefaultDebounce = 100 * time.Millisecond

// restartField is a setting the running process cannot pick up. A reload
// keeps the value in effect and warns instead.
type restartField struct {
	name string
	get  func(*Config) string
	keep func(dst, src *Config)
}

var restartFields = []restartField{
	{"server.host", func(c *Config) string { return c.Server.Host }, func(d, s *Config) { d.Server.Host = s.Server.Host }},
	{"server.port", func(c *Config) string { return fmt.Sprint(c.Server.Port) }, func(d, s *Config) { d.Server.Port = s.Server.Port }},
	{"server.read_timeout", func(c *Config) string { return c.Server.ReadTimeout.String() }, func(d, s *Config) { d.Server.ReadTimeout = s.Server.ReadTimeout }},
	{"server.write_timeout", func(c *Config) string { return c.Server.WriteTimeout.String() }, func(d, s *Config) { d.Server.WriteTimeout = s.Server.WriteTimeout }},
	{"server.request_timeout", func(c *Config) string { return c.Server.RequestTimeout.String() }, func(d, s *Config) { d.Server.RequestTimeout = s.Server.RequestTimeout }},
	{"database.driver", func(c *Config) string { return c.Database.Driver }, func(d, s *Config) { d.Database.Driver = s.Database.Driver }},
	{"database.dsn", func(c *Config) string { return c.Database.DSN }, func(d, s *Config) { d.Database.DSN = s.Database.DSN }},
	{"logging.format", func(c *Config) string { return c.Logging.Format }, func(d, s *Config) { d.Logging.Format = s.Logging.Format }},
	{"metrics.enabled", func(c *Config) string { return fmt.Sprint(c.Metrics.Enabled) }, func(d, s *Config) { d.Metrics.Enabled = s.Metrics.Enabled }},
	{"metrics.path", func(c *Config) string { return c.Metrics.Path }, func(d, s *Config) { d.Metrics.Path = s.Metrics.Path }},
	{"wire.default_format", func(c *Config) string { return c.Wire.DefaultFormat }, func(d, s *Config) { d.Wire.DefaultFormat = s.Wire.DefaultFormat }},
	{"items.lock_shards", func(c *Config) string { return fmt.Sprint(c.Items.LockShards) }, func(d, s *Config) { d.Items.LockShards = s.Items.LockShards }},
}

// Holder serves the configuration in effect and swaps it when the file
// changes. Only the reloadable fields move; the rest stay pinned to the
// values the process started with.
type Holder struct {
	path     string
	logger   zerolog.Logger
	debounce time.Duration

	mu        sync.RWMutex
	config    *Config
	raw       []byte
	listeners []func(*Config)
	onReload  func(err error, at time.Time)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads path and returns a holder for it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	raw, cfg, err := read(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Holder{
		path:     abs,
		logger:   logger.With().Str("component", "config").Logger(),
		debounce: DefaultDebounce,
		config:   cfg,
		raw:      raw,
		stopCh:   make(chan struct{}),
	}, nil
}

func read(path string) ([]byte, *Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, cfg, nil
}

// Get returns the configuration in effect.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// SetDebounce changes the file event coalescing window. Call before WatchFile.
func (h *Holder) SetDebounce(d time.Duration) {
	h.debounce = d
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// OnReload registers fn to be told about every reload attempt.
func (h *Holder) OnReload(fn func(err error, at time.Time)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = fn
}

// Reload reads the file again. On failure the configuration in effect is
// kept and the error returned.
func (h *Holder) Reload() error {
	return h.reload(true)
}

func (h *Holder) reload(force bool) error {
	raw, next, err := read(h.path)

	h.mu.RLock()
	report := h.onReload
	unchanged := err == nil && bytes.Equal(raw, h.raw)
	h.mu.RUnlock()

	if !force && unchanged {
		return nil
	}
	if report != nil {
		report(err, time.Now())
	}
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping current config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.config
	h.pin(prev, next)
	h.config = next
	h.raw = raw
	listeners := append([]func(*Config){}, h.listeners...)
	h.mu.Unlock()

	h.logChanges(prev, next)
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// pin copies restart-only settings from prev into next.
func (h *Holder) pin(prev, next *Config) {
	for _, f := range restartFields {
		if f.get(prev) != f.get(next) {
			h.logger.Warn().
				Str("field", f.name).
				Str("running", f.get(prev)).
				Str("file", f.get(next)).
				Msg("setting needs a restart, keeping running value")
			f.keep(next, prev)
		}
	}
}

func (h *Holder) logChanges(prev, next *Config) {
	ev := h.logger.Info()
	changed := false
	if prev.Logging.Level != next.Logging.Level {
		ev = ev.Str("log_level", next.Logging.Level)
		changed = true
	}
	if prev.Items.DefaultPageSize != next.Items.DefaultPageSize || prev.Items.MaxPageSize != next.Items.MaxPageSize {
		ev = ev.Int("default_page_size", next.Items.DefaultPageSize).Int("max_page_size", next.Items.MaxPageSize)
		changed = true
	}
	if !changed {
		ev.Msg("configuration reloaded, nothing to apply")
		return
	}
	ev.Msg("configuration reloaded")
}

// WatchFile reloads whenever the file is written or replaced. The
// directory is watched so editors that save by rename are seen too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = w

	go h.watchLoop(w)

	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

func (h *Holder) watchLoop(w *fsnotify.Watcher) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != h.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := h.reload(false); err != nil {
				h.logger.Debug().Err(err).Msg("file watch reload skipped")
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// WatchSignals reloads on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

// ReloadableFields lists the settings a reload applies.
func ReloadableFields() []string {
	return []string{
		"logging.level",
		"items.default_page_size",
		"items.max_page_size",
	}
}

// NonReloadableFields lists the settings that need a restart.
func NonReloadableFields() []string {
	names := make([]string, len(restartFields))
	for i, f := range restartFields {
		names[i] = f.name
	}
	return names
}
