package storage

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/types"
)

const DefaultAutosaveDebounce = time.Second

// AutoSaver writes the latest snapshot once edits have been quiet for the
// debounce interval. Writes are serialised: a snapshot is taken and written
// while holding writeMu, so an older snapshot never lands after a newer one.
type AutoSaver struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	save     func(path string, show *types.Show) error

	writeMu sync.Mutex
	mu      sync.Mutex
	timer   *time.Timer
	pending *types.Show
	saved   chan struct{}
}

func NewAutoSaver(path string, debounce time.Duration, logger *zap.Logger) *AutoSaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultAutosaveDebounce
	}
	return &AutoSaver{
		path:     path,
		debounce: debounce,
		logger:   logger,
		save:     Save,
		saved:    make(chan struct{}, 1),
	}
}

// Schedule records snapshot as the next thing to write and restarts the
// debounce timer.
func (a *AutoSaver) Schedule(snapshot *types.Show) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = snapshot
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.flush)
}

// Flush writes any pending snapshot immediately. It waits for a background
// write already in progress, so on return the file holds the newest snapshot.
func (a *AutoSaver) Flush() error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	show := a.pending
	a.pending = nil
	a.mu.Unlock()

	if show == nil {
		return nil
	}
	return a.write(show)
}

// Saved is signalled after each background write.
func (a *AutoSaver) Saved() <-chan struct{} {
	return a.saved
}

func (a *AutoSaver) flush() {
	if err := a.Flush(); err != nil {
		a.logger.Error("autosave failed", zap.String("path", a.path), zap.Error(err))
		return
	}
	select {
	case a.saved <- struct{}{}:
	default:
	}
}

func (a *AutoSaver) write(show *types.Show) error {
	if err := a.save(a.path, show); err != nil {
		return err
	}
	a.logger.Debug("show saved", zap.String("path", a.path), zap.Time("updatedAt", show.UpdatedAt))
	return nil
}
