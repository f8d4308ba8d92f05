package runenv

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch reports removal of the frame channel or configuration document by
// anything other than Teardown. onLost runs on the watcher goroutine with the
// removed path. The returned stop function releases the watcher and is safe
// to call more than once.
func (e *Environment) Watch(ctx context.Context, logger *slog.Logger, onLost func(path string)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(e.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if event.Name != e.framePath && event.Name != e.configPath {
					continue
				}
				if e.tearingDown.Load() {
					continue
				}
				logger.Warn("Runtime file removed during run", "path", event.Name, "op", event.Op.String())
				if onLost != nil {
					onLost(event.Name)
				}

			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Runtime directory watcher error", "error", werr)
			}
		}
	}()

	logger.Debug("Runtime directory guard started", "dir", e.dir)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = watcher.Close()
			<-done
		})
	}
	return stop, nil
}
