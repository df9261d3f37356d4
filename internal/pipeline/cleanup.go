package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
)

// Cleanup deletes every entry of the directories selected by target.
func (r *Runner) Cleanup(ctx context.Context, target domain.CleanTarget) (Report, error) {
	s := r.begin(StageCleanup)

	for _, dir := range r.ws.Dirs(target) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.fail(dir, fmt.Errorf("list directory: %w", err))
			continue
		}
		s.logger.Info("removing files", "dir", dir, "entries", len(entries))

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return s.abort(err)
			}
			path := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				s.fail(path, err)
				continue
			}
			s.succeeded()
		}
	}

	return s.finish()
}

// Dirs names the directories a cleanup target covers.
func (w Workspace) Dirs(target domain.CleanTarget) []string {
	var dirs []string
	if target.Landing {
		dirs = append(dirs, w.LandingDir)
	}
	if target.Extraction {
		dirs = append(dirs, w.ExtractDir)
	}
	return dirs
}
