package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/klauspost/compress/gzip"
)

// Extract decompresses every archive in the landing directory into the
// extraction directory. Archives stay in place; earlier output of the same
// name is overwritten. An empty landing directory aborts the stage.
func (r *Runner) Extract(ctx context.Context) (Report, error) {
	s := r.begin(StageExtract)

	archives, err := r.ws.landingFiles()
	if err != nil {
		return s.abort(fmt.Errorf("list landing directory: %w", err))
	}
	if len(archives) == 0 {
		return s.abort(fmt.Errorf("%w: %s", domain.ErrEmptyLanding, r.ws.LandingDir))
	}

	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}

		out := domain.ExtractedName(archive)
		n, err := r.extractArchive(archive, out)
		if err != nil {
			s.fail(archive, err)
			continue
		}
		s.succeeded()
		s.logger.Info("archive extracted", "archive", archive, "file", out, "bytes", n)
	}

	return s.finish()
}

func (r *Runner) extractArchive(archive, out string) (int64, error) {
	f, err := os.Open(filepath.Join(r.ws.LandingDir, archive))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	var n int64
	err = writeFile(r.ws.ExtractDir, out, func(w io.Writer) error {
		var cerr error
		n, cerr = io.Copy(w, zr)
		return cerr
	})
	if err != nil {
		return n, fmt.Errorf("decompress: %w", err)
	}
	return n, nil
}
