package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
)

// Load inserts the records of every JSON batch file in the extraction
// directory into sink. Each file must hold a single JSON document: an array
// of objects, or one object. The sink is closed before Load returns.
func (r *Runner) Load(ctx context.Context, sink Sink) (Report, error) {
	return r.loadInto(ctx, StageLoad, sink)
}

// Publish is Load with a message sink, reported under its own stage name.
func (r *Runner) Publish(ctx context.Context, sink Sink) (Report, error) {
	return r.loadInto(ctx, StagePublish, sink)
}

func (r *Runner) loadInto(ctx context.Context, stage string, sink Sink) (Report, error) {
	s := r.begin(stage)

	fatal := r.loadFiles(ctx, s, sink)
	r.closeSink(ctx, s, sink)

	if fatal != nil {
		return s.abort(fatal)
	}
	s.logger.Info("total records loaded", "records", s.report.Records)
	return s.finish()
}

func (r *Runner) loadFiles(ctx context.Context, s *stageRun, sink Sink) error {
	files, err := r.ws.extractFiles(domain.JSONExt)
	if err != nil {
		return fmt.Errorf("list extraction directory: %w", err)
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := readBatch(filepath.Join(r.ws.ExtractDir, name))
		if err != nil {
			s.fail(name, err)
			continue
		}
		if len(batch.Docs) == 0 {
			s.succeeded()
			s.logger.Debug("empty batch skipped", "file", name)
			continue
		}

		n, err := sink.Insert(ctx, batch)
		if err != nil {
			s.fail(name, err)
			continue
		}
		s.addRecords(n)
		s.succeeded()
		s.logger.Info("file loaded", "file", name, "records", n, "records_total", s.report.Records)
	}
	return nil
}

// closeSink runs even when ctx is already cancelled, bounded by closeTimeout.
func (r *Runner) closeSink(ctx context.Context, s *stageRun, sink Sink) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.closeTimeout)
	defer cancel()
	if err := sink.Close(cctx); err != nil {
		s.fail("close", err)
	}
}

// readBatch parses a batch file. Line-delimited files (several documents)
// are rejected with domain.ErrTrailingData.
func readBatch(path string) (domain.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Batch{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return domain.Batch{}, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Batch{}, fmt.Errorf("%w (line-delimited batch files cannot be loaded)", domain.ErrTrailingData)
	}

	batch := domain.Batch{Source: filepath.Base(path)}
	switch firstByte(doc) {
	case '[':
		if err := json.Unmarshal(doc, &batch.Docs); err != nil {
			return domain.Batch{}, fmt.Errorf("parse json array: %w", err)
		}
	case '{':
		batch.Docs = []json.RawMessage{doc}
	default:
		return domain.Batch{}, errors.New("top-level JSON value must be an array or an object")
	}
	return batch, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
