// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// rateFile is the layout of a standalone pricing file:
//
//	[models."gpt-4o-mini"]
//	input_per_1k = 0.00015
//	output_per_1k = 0.0006
type rateFile struct {
	Models Table `toml:"models"`
}

// LoadFile decodes a pricing file and merges it over base.
func LoadFile(path string, base Table) (Table, error) {
	var f rateFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode pricing file %s: %w", path, err)
	}
	return base.Merge(f.Models), nil
}

// Watcher reloads a pricing file into a Model whenever the file changes, so
// rate updates take effect without a restart.
type Watcher struct {
	path     string
	base     Table
	model    *Model
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(path string, base Table, m *Model) *Watcher {
	return &Watcher{path: path, base: base, model: m, debounce: 250 * time.Millisecond, logger: slog.Default()}
}

// Watch loads the file once, then blocks applying changes until ctx is done.
// The parent directory is watched because editors replace files by rename.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.reload(); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.reload(); err != nil {
				// Keep serving the previous table.
				w.logger.Warn("pricing reload failed", "path", w.path, "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("pricing watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() error {
	table, err := LoadFile(w.path, w.base)
	if err != nil {
		return err
	}
	w.model.Replace(table)
	w.logger.Info("pricing table loaded", "path", w.path, "models", len(table))
	return nil
}
