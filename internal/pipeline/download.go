package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
)

// Download fetches the archives for start..end into the landing directory,
// replacing files of the same name. Years missing from the table and failed
// downloads are reported per item; the other archives are still fetched.
func (r *Runner) Download(ctx context.Context, loc Locator, f Fetcher, start, end int) (Report, error) {
	s := r.begin(StageDownload)

	names, err := loc.Locate(start, end)
	var unmapped domain.ItemErrors
	switch {
	case errors.As(err, &unmapped):
		for _, ie := range unmapped {
			s.record(ie)
		}
	case err != nil:
		return s.abort(err)
	}
	s.logger.Info("archives located", "start", start, "end", end, "archives", len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}

		var n int64
		err := writeFile(r.ws.LandingDir, name, func(w io.Writer) error {
			var ferr error
			n, ferr = f.Fetch(ctx, name, w)
			return ferr
		})
		if err != nil {
			s.fail(name, err)
			continue
		}
		r.metrics.BytesDownloaded.Add(float64(n))
		s.succeeded()
		s.logger.Info("archive downloaded", "archive", name, "bytes", n)
	}

	return s.finish()
}
