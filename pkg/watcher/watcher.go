// Package watcher reloads local boundary files when they change on disk.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often a polling watcher stats the file.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnv selects polling even where fsnotify works, e.g. on network
// mounts that never deliver events.
const ForcePollEnv = "CIVICMAP_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("boundary file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long a burst of writes must settle before a
// reload.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithOnChange registers a callback run after each settled change.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError registers a callback for watch failures, including removal of
// the file.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithForcePoll skips fsnotify.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// stamp is what polling compares between ticks.
type stamp struct {
	mod  time.Time
	size int64
}

func (s stamp) exists() bool { return !s.mod.IsZero() }

// Watcher follows one GeoJSON file. It prefers fsnotify on the parent
// directory, so editors that save by rename are seen, and falls back to
// polling when fsnotify is unavailable or disabled.
type Watcher struct {
	path      string
	settle    time.Duration
	interval  time.Duration
	forcePoll bool
	onChange  func()
	onError   func(error)
	logger    *zap.Logger

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	fsw      *fsnotify.Watcher
	polling  bool
	last     stamp
	debounce *Debouncer
	changes  chan struct{}
}

// NewWatcher prepares a watcher for path. Nothing is watched until Start.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		settle:   DefaultDebounceDuration,
		interval: DefaultPollInterval,
		onChange: func() {},
		onError:  func(error) {},
		logger:   zap.NewNop(),
		changes:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounce = NewDebouncer(w.settle)
	return w, nil
}

// Start begins watching. A missing file is not an error; it is picked up
// once it appears.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx != nil {
		return ErrAlreadyStarted
	}

	st, err := statFile(w.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		if errors.Is(err, os.ErrPermission) {
			return ErrPermission
		}
		return err
	}
	w.last = st

	ctx, cancel := context.WithCancel(context.Background())
	w.ctx, w.cancel = ctx, cancel

	w.polling = w.forcePoll || envBool(ForcePollEnv)
	if !w.polling {
		fsw, err := w.openNotify()
		if err != nil {
			w.logger.Debug("fsnotify unavailable, polling instead", zap.Error(err))
			w.polling = true
		} else {
			w.fsw = fsw
			go w.notifyLoop(ctx, fsw)
		}
	}
	if w.polling {
		go w.pollLoop(ctx)
	}

	w.logger.Debug("watching boundaries",
		zap.String("path", w.path),
		zap.Bool("polling", w.polling))
	return nil
}

func (w *Watcher) openNotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop ends watching and drops a pending reload. Changed stays open so a
// WaitCmd in flight returns through the cancelled context instead.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return
	}
	w.cancel()
	w.ctx, w.cancel = nil, nil
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debounce.Cancel()
}

// IsPolling reports whether the running watcher stats the file instead of
// receiving events.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ctx != nil
}

// Changed receives once per settled change. Sends never block; a change
// nobody has picked up yet absorbs later ones.
func (w *Watcher) Changed() <-chan struct{} { return w.changes }

// Path is the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

func (w *Watcher) PollInterval() time.Duration { return w.interval }

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func statFile(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}
	return stamp{mod: info.ModTime(), size: info.Size()}, nil
}

func (w *Watcher) notifyLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove):
				w.report(ErrFileRemoved)
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				w.debounce.Trigger(w.fire)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context) {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	st, err := statFile(w.path)

	w.mu.Lock()
	prev := w.last
	if err == nil {
		w.last = st
	}
	w.mu.Unlock()

	switch {
	case errors.Is(err, os.ErrNotExist):
		if prev.exists() {
			w.report(ErrFileRemoved)
		}
	case errors.Is(err, os.ErrPermission):
		w.report(ErrPermission)
	case err != nil:
		w.report(err)
	case st.mod.After(prev.mod) || st.size != prev.size:
		w.debounce.Trigger(w.fire)
	}
}

func (w *Watcher) report(err error) {
	w.logger.Warn("boundary watch error", zap.String("path", w.path), zap.Error(err))
	w.onError(err)
}

// fire runs once a change has settled.
func (w *Watcher) fire() {
	if !w.IsStarted() {
		return
	}
	w.logger.Debug("boundaries changed", zap.String("path", w.path))
	w.onChange()
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// ChangedMsg carries the reloaded file, or the error reading it.
type ChangedMsg struct {
	Path string
	Data []byte
	Err  error
}

// WaitCmd waits for the next change and reads the file. Handle each
// ChangedMsg by issuing WaitCmd again. It returns nil once the watcher is
// stopped, or immediately if it never started.
func WaitCmd(w *Watcher) tea.Cmd {
	return func() tea.Msg {
		w.mu.RLock()
		ctx := w.ctx
		w.mu.RUnlock()
		if ctx == nil {
			return nil
		}
		select {
		case <-w.changes:
		case <-ctx.Done():
			return nil
		}
		data, err := os.ReadFile(w.path)
		return ChangedMsg{Path: w.path, Data: data, Err: err}
	}
}
