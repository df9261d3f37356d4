package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/couchcryptid/storm-events-etl/internal/observability"
	"github.com/couchcryptid/storm-events-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeFetcher struct {
	archives map[string][]byte
	fetched  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, name string, w io.Writer) (int64, error) {
	f.fetched = append(f.fetched, name)
	data, ok := f.archives[name]
	if !ok {
		return 0, fmt.Errorf("download %s: status 404", name)
	}
	n, err := w.Write(data)
	return int64(n), err
}

type fakeSink struct {
	docs        []json.RawMessage
	sources     []string
	failOn      string
	closed      bool
	closeErr    error
	closeCtxErr error
}

func (s *fakeSink) Insert(_ context.Context, batch domain.Batch) (int, error) {
	if batch.Source == s.failOn {
		// Report the whole batch alongside the error, as a driver that assigns
		// ids before writing does.
		return len(batch.Docs), errors.New("insert rejected")
	}
	s.sources = append(s.sources, batch.Source)
	s.docs = append(s.docs, batch.Docs...)
	return len(batch.Docs), nil
}

func (s *fakeSink) Close(ctx context.Context) error {
	s.closed = true
	s.closeCtxErr = ctx.Err()
	return s.closeErr
}

// --- helpers ---

func newTestRunner(t *testing.T) *pipeline.Runner {
	t.Helper()
	root := t.TempDir()
	ws, err := pipeline.NewWorkspace(filepath.Join(root, "landDir"), filepath.Join(root, "extractDir"))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.New(ws, logger, observability.NewMetricsForTesting(), clockwork.NewFakeClock(), time.Second)
}

func newTestTable(t *testing.T, rows string) *domain.YearTable {
	t.Helper()
	table, err := domain.ParseTable(strings.NewReader(rows))
	require.NoError(t, err)
	return table
}

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

// dirNames lists every entry of dir, temp files included.
func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// stormCSV builds a details-like CSV with rows data lines.
func stormCSV(rows int) string {
	var b strings.Builder
	b.WriteString("EVENT_ID,STATE,YEAR,EVENT_TYPE,MAGNITUDE\n")
	for i := range rows {
		fmt.Fprintf(&b, "%d,TEXAS,2011,Hail,%s\n", 100000+i, []string{"1.75", "", "0.88"}[i%3])
	}
	return b.String()
}
