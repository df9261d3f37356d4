package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/couchcryptid/storm-events-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_ProjectsAndDropsNulls(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a,b,c\n1,x,\n")

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{
		Columns:   []string{"a", "c"},
		BatchSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Records)
	assert.JSONEq(t, `[{"a":1}]`, readTestFile(t, ws.ExtractDir, "x.csv0.json"))
}

func TestTransform_AllColumnsKeepsOrder(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "STATE,EVENT_ID,BEGIN_TIME\nKANSAS,5501,0930\nNA,5502,1015\n")

	_, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t,
		`[{"STATE":"KANSAS","EVENT_ID":5501,"BEGIN_TIME":"0930"},{"EVENT_ID":5502,"BEGIN_TIME":"1015"}]`,
		readTestFile(t, ws.ExtractDir, "x.csv0.json"))
}

func TestTransform_BatchesPerSource(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "a.csv", stormCSV(5))
	writeTestFile(t, ws.ExtractDir, "b.csv", stormCSV(2))

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Records)
	assert.Equal(t, 4, rep.Items)

	assert.Equal(t, []string{
		"a.csv", "a.csv0.json", "a.csv1.json", "a.csv2.json",
		"b.csv", "b.csv0.json",
	}, dirNames(t, ws.ExtractDir))

	var last []map[string]any
	require.NoError(t, json.Unmarshal([]byte(readTestFile(t, ws.ExtractDir, "a.csv2.json")), &last))
	assert.Len(t, last, 1)
}

func TestTransform_HeaderOnlyWritesNothing(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a,b\n")

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 3})
	require.NoError(t, err)
	assert.Zero(t, rep.Records)
	assert.Equal(t, []string{"x.csv"}, dirNames(t, ws.ExtractDir))
}

func TestTransform_IgnoresExistingBatches(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a\n1\n")
	writeTestFile(t, ws.ExtractDir, "x.csv0.json", `[{"a":"old"}]`)

	_, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, readTestFile(t, ws.ExtractDir, "x.csv0.json"))
}

func TestTransform_LinesWithColumnsIsPositional(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a,b\n1,2\n")

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{
		Columns:   []string{"x", "y"},
		BatchSize: 10,
		Format:    domain.FormatLines,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Records)

	lines := strings.Split(strings.TrimSuffix(readTestFile(t, ws.ExtractDir, "x.csv0.json"), "\n"), "\n")
	require.Len(t, lines, 2)
	// The header line shares the batch, so both columns stay strings.
	assert.JSONEq(t, `{"x":"a","y":"b"}`, lines[0])
	assert.JSONEq(t, `{"x":"1","y":"2"}`, lines[1])
}

func TestTransform_LinesWithoutColumnsUsesHeader(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a,b\n1,2\n3,\n")

	_, err := r.Transform(context.Background(), pipeline.TransformOptions{
		BatchSize: 10,
		Format:    domain.FormatLines,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1,\"b\":2}\n{\"a\":3}\n", readTestFile(t, ws.ExtractDir, "x.csv0.json"))
}

func TestTransform_MissingColumnIsItemFailure(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "bad.csv", "a,b\n1,2\n")
	writeTestFile(t, ws.ExtractDir, "good.csv", "a,z\n1,2\n")

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{
		Columns:   []string{"z"},
		BatchSize: 10,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "z" not in header`)
	assert.Equal(t, []string{"bad.csv"}, rep.Failed.Items())
	assert.Equal(t, `[{"z":2}]`, readTestFile(t, ws.ExtractDir, "good.csv0.json"))
}

func TestTransform_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts pipeline.TransformOptions
	}{
		{name: "zero batch size", opts: pipeline.TransformOptions{BatchSize: 0}},
		{name: "negative batch size", opts: pipeline.TransformOptions{BatchSize: -5}},
		{name: "unknown format", opts: pipeline.TransformOptions{BatchSize: 5, Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(t)
			writeTestFile(t, r.Workspace().ExtractDir, "x.csv", "a\n1\n")

			_, err := r.Transform(context.Background(), tt.opts)
			require.ErrorIs(t, err, domain.ErrConfig)
			assert.Equal(t, []string{"x.csv"}, dirNames(t, r.Workspace().ExtractDir))
		})
	}
}

func TestTransform_ColumnTypeFollowsBatch(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "BEGIN_TIME,EVENT_ID\n1015,1\n0930,2\n1200,3\n")

	_, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 2})
	require.NoError(t, err)

	// "0930" is not a number, so the whole first batch keeps BEGIN_TIME as text.
	assert.Equal(t, `[{"BEGIN_TIME":"1015","EVENT_ID":1},{"BEGIN_TIME":"0930","EVENT_ID":2}]`,
		readTestFile(t, ws.ExtractDir, "x.csv0.json"))
	assert.Equal(t, `[{"BEGIN_TIME":1200,"EVENT_ID":3}]`,
		readTestFile(t, ws.ExtractDir, "x.csv1.json"))
}

func TestTransform_BatchWriteFailureContinues(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "x.csv", "a\n1\n2\n3\n")
	// A directory in the way makes the rename of batch 0 fail.
	require.NoError(t, os.MkdirAll(filepath.Join(ws.ExtractDir, "x.csv0.json", "busy"), 0o755))

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 2})
	require.Error(t, err)
	assert.Equal(t, []string{"x.csv#0"}, rep.Failed.Items())
	assert.Equal(t, 1, rep.Records)
	assert.Equal(t, `[{"a":3}]`, readTestFile(t, ws.ExtractDir, "x.csv1.json"))
	assert.NotContains(t, strings.Join(dirNames(t, ws.ExtractDir), ","), ".part")
}

func TestTransform_MalformedLineKeepsEarlierRows(t *testing.T) {
	r := newTestRunner(t)
	ws := r.Workspace()
	writeTestFile(t, ws.ExtractDir, "bad.csv", "a,b\n1,2\n3,x\"y\n4,5\n")
	writeTestFile(t, ws.ExtractDir, "good.csv", "a\n7\n")

	rep, err := r.Transform(context.Background(), pipeline.TransformOptions{BatchSize: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read csv")
	assert.Equal(t, []string{"bad.csv"}, rep.Failed.Items())
	assert.Equal(t, 2, rep.Records)

	assert.Equal(t, `[{"a":1,"b":2}]`, readTestFile(t, ws.ExtractDir, "bad.csv0.json"))
	assert.Equal(t, `[{"a":7}]`, readTestFile(t, ws.ExtractDir, "good.csv0.json"))
}
