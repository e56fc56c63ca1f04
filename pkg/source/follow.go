package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/httpbatch/pkg/log"
)

// FollowConfig configures a Follower.
type FollowConfig struct {
	Path string

	// FromEnd skips the content present when following starts.
	FromEnd bool

	// PollInterval rereads the file even without a notification, for file
	// systems where fsnotify misses writes. 0 disables polling.
	PollInterval time.Duration

	Options
}

// Follower tails a file and produces one event per appended line. It
// survives the file being truncated, removed or replaced by rotation.
type Follower struct {
	config FollowConfig
	sink   Sink
	logger log.Logger

	file     *os.File
	splitter *lineSplitter
}

// NewFollower creates a Follower. logger may be nil.
func NewFollower(config FollowConfig, sink Sink, logger log.Logger) *Follower {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Follower{
		config:   config,
		sink:     sink,
		logger:   logger,
		splitter: newLineSplitter(sink, config.Options),
	}
}

// Run follows the file until ctx is canceled or producing fails. A trailing
// incomplete line is produced before returning on cancellation, and
// cancellation itself is not reported as an error.
func (f *Follower) Run(ctx context.Context) error {
	err := f.run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (f *Follower) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so rotation (remove + create) is seen.
	dir := filepath.Dir(f.config.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer f.closeFile()

	if err := f.open(f.config.FromEnd); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := f.readAvailable(ctx); err != nil {
		return err
	}

	var poll <-chan time.Time
	if f.config.PollInterval > 0 {
		ticker := time.NewTicker(f.config.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	target := filepath.Clean(f.config.Path)
	for {
		select {
		case <-ctx.Done():
			return f.splitter.flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			switch {
			case event.Op&fsnotify.Create != 0:
				f.logger.Debug("followed file created", log.String("path", target))
				if err := f.reopen(); err != nil {
					return err
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				f.logger.Debug("followed file removed", log.String("path", target))
				if err := f.readAvailable(ctx); err != nil {
					return err
				}
				f.closeFile()
				continue
			case event.Op&fsnotify.Write == 0:
				continue
			}
			if err := f.readAvailable(ctx); err != nil {
				return err
			}

		case <-poll:
			if f.file == nil {
				if err := f.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			if err := f.readAvailable(ctx); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher error", log.Err(err))
		}
	}
}

func (f *Follower) open(seekEnd bool) error {
	file, err := os.Open(f.config.Path)
	if err != nil {
		return err
	}
	if seekEnd {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			file.Close()
			return fmt.Errorf("seek %s: %w", f.config.Path, err)
		}
	}
	f.file = file
	return nil
}

// reopen switches to a newly created file at the same path.
func (f *Follower) reopen() error {
	f.closeFile()
	if err := f.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *Follower) closeFile() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
}

// readAvailable produces every complete line written since the last read.
// A file shorter than the read offset was truncated and is reread from the
// start.
func (f *Follower) readAvailable(ctx context.Context) error {
	if f.file == nil {
		return nil
	}

	info, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.config.Path, err)
	}
	offset, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seek %s: %w", f.config.Path, err)
	}
	if info.Size() < offset {
		f.logger.Info("followed file truncated", log.String("path", f.config.Path))
		if _, err := f.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", f.config.Path, err)
		}
		f.splitter.pending = nil
	}

	return f.splitter.consume(ctx, f.file)
}
