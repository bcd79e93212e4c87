package pahomqtt

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/baidu-iot/shadow-go/log"
)

// certWatcher reloads a client certificate/key pair whenever either file
// changes on disk, so a rotated device certificate takes effect without a
// process restart. This sits outside the shadow protocol engine proper —
// it is ambient transport plumbing, not part of the correlation engine.
type certWatcher struct {
	watcher *fsnotify.Watcher
	onChange func()
	done     chan struct{}
}

func newCertWatcher(certFile, keyFile string, onChange func()) (*certWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range uniqueDirs(certFile, keyFile) {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return &certWatcher{watcher: w, onChange: onChange, done: make(chan struct{})}, nil
}

func (c *certWatcher) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debug("certificate file changed", "path", event.Name)
				c.onChange()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Error(err, "certificate watcher error")
		}
	}
}

func (c *certWatcher) stop() {
	_ = c.watcher.Close()
}

func uniqueDirs(paths ...string) []string {
	seen := make(map[string]struct{}, len(paths))
	var dirs []string
	for _, p := range paths {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}
