//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/adapter/mongo"
	"github.com/couchcryptid/storm-events-etl/internal/observability"
	"github.com/couchcryptid/storm-events-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

const (
	mongoUser     = "storm"
	mongoPassword = "hail-and-wind"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(t *testing.T) *pipeline.Runner {
	t.Helper()
	root := t.TempDir()
	ws, err := pipeline.NewWorkspace(filepath.Join(root, "landDir"), filepath.Join(root, "extractDir"))
	require.NoError(t, err)
	return pipeline.New(ws, discardLogger(), observability.NewMetricsForTesting(), clockwork.NewRealClock(), 10*time.Second)
}

// seedBatches writes a CSV of rows events into the extraction directory and
// transforms it into batch files of batchSize rows.
func seedBatches(ctx context.Context, t *testing.T, r *pipeline.Runner, rows, batchSize int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("EVENT_ID,STATE,EVENT_TYPE,MAGNITUDE,BEGIN_TIME\n")
	for i := range rows {
		fmt.Fprintf(&b, "%d,OKLAHOMA,Tornado,%s,0%d15\n", 900000+i, []string{"", "1.25"}[i%2], i%10)
	}
	path := filepath.Join(r.Workspace().ExtractDir, "StormEvents_details-ftp_v1.0_d2011_c20250520.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	rep, err := r.Transform(ctx, pipeline.TransformOptions{BatchSize: batchSize})
	require.NoError(t, err)
	require.Equal(t, rows, rep.Records)
}

// startMongo runs a MongoDB container with a root user and returns its
// connection parameters.
func startMongo(ctx context.Context, t *testing.T) mongo.Params {
	t.Helper()
	container, err := mongodb.Run(ctx, "mongo:7",
		mongodb.WithUsername(mongoUser),
		mongodb.WithPassword(mongoPassword),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start mongo container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	u, err := url.Parse(uri)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return mongo.Params{
		Host:       u.Hostname(),
		Port:       port,
		Database:   "storm",
		Collection: "details",
		Username:   mongoUser,
		Password:   mongoPassword,
		AuthSource: "admin",
		Timeout:    20 * time.Second,
	}
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("storm-events-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}
