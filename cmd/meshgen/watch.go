package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-evaluates the script at path whenever it changes, until ctx
// is done. The directory is watched rather than the file so editors that
// replace the file on save are followed.
func (a *App) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	a.log.Info("watching script", zap.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			a.reload(abs)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// reload evaluates the script, keeping the previous scene on failure.
func (a *App) reload(path string) {
	err := a.EvaluateFile(path)
	var evalErrs EvalErrors
	switch {
	case err == nil:
		a.log.Debug("script reloaded", zap.String("path", path))
	case errors.As(err, &evalErrs):
		// Already logged per error.
	default:
		a.log.Warn("reload failed", zap.String("path", path), zap.Error(err))
	}
}
