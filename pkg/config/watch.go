package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/spkrepo/pkg/observability"
)

// WatchLogLevel re-reads the config file whenever it changes and applies its
// observability.log_level to logger. Environment overrides still win. The
// watch stops when ctx is done.
func WatchLogLevel(ctx context.Context, path string, logger *logrus.Logger) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				level, err := readLogLevel(path)
				if err != nil {
					logger.WithError(err).Warn("Failed to reload log level")
					continue
				}
				if level != "" && os.Getenv("SPKREPO_LOG_LEVEL") == "" {
					applyLevel(logger, level)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Config watcher error")
			}
		}
	}()

	return nil
}

func readLogLevel(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var partial struct {
		Observability struct {
			LogLevel string `yaml:"log_level"`
		} `yaml:"observability"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return "", err
	}
	return partial.Observability.LogLevel, nil
}

func applyLevel(logger *logrus.Logger, name string) {
	level := observability.ParseLevel(name)
	if level == logger.GetLevel() {
		return
	}
	logger.SetLevel(level)
	logger.WithField("level", level.String()).Info("Log level changed")
}
