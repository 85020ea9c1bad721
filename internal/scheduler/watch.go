package scheduler

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watch runs a session check as soon as the watched file is removed or
// renamed away. Called with s.mu held.
func (s *Scheduler) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: the file itself may not exist yet, and atomic
	// rewrites replace its inode.
	if err := w.Add(filepath.Dir(s.watchPath)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.watchPath), err)
	}

	target := filepath.Clean(s.watchPath)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer w.Close()
		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Remove) {
					continue
				}
				s.log.Debug().Str("path", ev.Name).Msg("session file removed")
				s.sessionCheck()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("session file watch error")
			}
		}
	}()
	return nil
}
