package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
)

var errNoHeader = errors.New("file has no header row")

// TransformOptions selects columns, batch size and output format.
type TransformOptions struct {
	Columns   []string // empty selects every column
	BatchSize int
	Format    domain.BatchFormat
}

func (o TransformOptions) validate() (TransformOptions, error) {
	if o.BatchSize <= 0 {
		return o, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrConfig, o.BatchSize)
	}
	format, err := domain.ParseBatchFormat(string(o.Format))
	if err != nil {
		return o, err
	}
	o.Format = format
	return o, nil
}

// Transform converts every CSV in the extraction directory into JSON batch
// files of at most BatchSize rows. Batch i of "x.csv" is written to
// "x.csv<i>.json". Null fields are left out of each row object.
func (r *Runner) Transform(ctx context.Context, opts TransformOptions) (Report, error) {
	s := r.begin(StageTransform)

	opts, err := opts.validate()
	if err != nil {
		return s.abort(err)
	}

	sources, err := r.ws.extractFiles(domain.CSVExt)
	if err != nil {
		return s.abort(fmt.Errorf("list extraction directory: %w", err))
	}
	s.logger.Info("transforming",
		"files", len(sources),
		"columns", opts.Columns,
		"batch_size", opts.BatchSize,
		"format", opts.Format,
	)

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return s.abort(err)
		}
		rows, err := r.transformFile(ctx, s, source, opts)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s.abort(err)
		}
		if err != nil {
			s.fail(source, err)
			continue
		}
		s.logger.Info("file transformed", "file", source, "rows", rows)
	}

	return s.finish()
}

// transformFile streams one CSV. Batches are written as they fill; a write
// failure is recorded for that batch only. A read error ends the file after
// the rows read so far have been written.
func (r *Runner) transformFile(ctx context.Context, s *stageRun, source string, opts TransformOptions) (int, error) {
	f, err := os.Open(filepath.Join(r.ws.ExtractDir, source))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := csv.NewReader(bufio.NewReader(f))
	cr.FieldsPerRecord = -1

	keys, positions, err := rowLayout(cr, opts)
	if err != nil {
		return 0, err
	}

	var (
		rows  int
		index int
		batch = make([]domain.Record, 0, opts.BatchSize)
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		name := domain.BatchFileName(source, index)
		err := writeFile(r.ws.ExtractDir, name, func(w io.Writer) error {
			return writeBatch(w, batch, opts.Format)
		})
		if err != nil {
			s.fail(fmt.Sprintf("%s#%d", source, index), err)
		} else {
			s.succeeded()
			s.addRecords(len(batch))
			s.logger.Debug("batch written", "file", name, "rows", len(batch))
		}
		index++
		batch = batch[:0]
	}

	values := make([]string, len(positions))
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			flush()
			return rows, fmt.Errorf("read csv: %w", err)
		}

		for i, pos := range positions {
			values[i] = ""
			if pos < len(row) {
				values[i] = row[pos]
			}
		}
		batch = append(batch, domain.NewRecord(keys, values))
		rows++

		if len(batch) == opts.BatchSize {
			flush()
			if err := ctx.Err(); err != nil {
				return rows, err
			}
		}
	}
	flush()
	return rows, nil
}

// rowLayout decides the object keys and the CSV positions they come from.
//
// Array format reads the header row and looks the requested columns up in
// it. Lines format with columns does not read a header at all: fields map to
// the columns by position and every line is a row. Without columns, both
// formats take the keys from the first line.
func rowLayout(cr *csv.Reader, opts TransformOptions) ([]string, []int, error) {
	if opts.Format == domain.FormatLines && len(opts.Columns) > 0 {
		return opts.Columns, sequence(len(opts.Columns)), nil
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	if len(opts.Columns) == 0 {
		return header, sequence(len(header)), nil
	}

	index := make(map[string]int, len(header))
	for i := len(header) - 1; i >= 0; i-- {
		index[header[i]] = i
	}
	positions := make([]int, len(opts.Columns))
	for i, col := range opts.Columns {
		pos, ok := index[col]
		if !ok {
			return nil, nil, fmt.Errorf("column %q not in header", col)
		}
		positions[i] = pos
	}
	return opts.Columns, positions, nil
}

func sequence(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// writeBatch serializes records as a JSON array, or one object per line. A
// column is numeric for the whole batch or for none of it.
func writeBatch(w io.Writer, batch []domain.Record, format domain.BatchFormat) error {
	lines := format == domain.FormatLines
	if !lines {
		if _, err := io.WriteString(w, "["); err != nil {
			return err
		}
	}
	numeric := domain.NumericColumns(batch)
	for i, rec := range batch {
		data, err := rec.Encode(numeric)
		if err != nil {
			return err
		}
		if !lines && i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if lines {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	if !lines {
		_, err := io.WriteString(w, "]")
		return err
	}
	return nil
}
