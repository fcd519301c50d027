package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/utils"
)

type WatchConfig struct {
	Roots       []string               // directories to watch (recursive)
	Allowed     func(path string) bool // nil -> supported upload extensions
	InitialScan bool                   // if true, walk roots and emit existing files
	Debounce    time.Duration          // coalesce rapid create/write bursts
}

func defaultAllowed(path string) bool {
	return constants.AllowedUpload(filepath.Ext(path))
}

// Watch emits the paths of settled files under cfg.Roots until ctx is done.
// Hidden files and directories are ignored.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.Allowed == nil {
		cfg.Allowed = defaultAllowed
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, r := range cfg.Roots {
		files, err := addTree(w, r)
		if err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		if cfg.InitialScan {
			initial = append(initial, files...)
		}
	}
	logger.Info("ingest.watch.start", "roots", cfg.Roots, "initial", len(initial))

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		pending := map[string]struct{}{}
		for _, p := range initial {
			if cfg.Allowed(p) {
				pending[p] = struct{}{}
			}
		}

		timer := time.NewTimer(time.Hour)
		timer.Stop()
		var fire <-chan time.Time

		flush := func() bool {
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				delete(pending, p)
				if info, err := os.Stat(p); err != nil || info.IsDir() {
					continue
				}
				select {
				case evCh <- p:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		schedule := func() {
			if cfg.Debounce <= 0 {
				fire = nil
				return
			}
			timer.Reset(cfg.Debounce)
			fire = timer.C
		}

		if len(pending) > 0 && !flush() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if utils.IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						files, err := addTree(w, e.Name)
						if err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						for _, f := range files {
							if cfg.Allowed(f) {
								pending[f] = struct{}{}
							}
						}
						schedule()
						continue
					}
				}
				if !cfg.Allowed(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				pending[e.Name] = struct{}{}
				schedule()
				if cfg.Debounce <= 0 && !flush() {
					return
				}
			case <-fire:
				fire = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// addTree watches root and every non-hidden directory below it, returning the files found.
func addTree(w *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && utils.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
