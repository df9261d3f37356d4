package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Params are the connection settings taken from the load command.
type Params struct {
	Host       string
	Port       int
	Database   string
	Collection string
	Username   string
	Password   string
	AuthSource string // defaults to Database
	Timeout    time.Duration
}

// Validate checks that the target is fully named.
func (p Params) Validate() error {
	switch {
	case p.Host == "":
		return fmt.Errorf("%w: mongo host is required", domain.ErrConfig)
	case p.Port <= 0 || p.Port > 65535:
		return fmt.Errorf("%w: mongo port %d out of range", domain.ErrConfig, p.Port)
	case p.Database == "":
		return fmt.Errorf("%w: mongo database is required", domain.ErrConfig)
	case p.Collection == "":
		return fmt.Errorf("%w: mongo collection is required", domain.ErrConfig)
	}
	return nil
}

func (p Params) clientOptions() *options.ClientOptions {
	opts := options.Client().
		SetHosts([]string{net.JoinHostPort(p.Host, strconv.Itoa(p.Port))}).
		SetAppName("storm-events-etl")
	if p.Timeout > 0 {
		opts.SetConnectTimeout(p.Timeout).SetServerSelectionTimeout(p.Timeout)
	}
	if p.Username != "" {
		source := p.AuthSource
		if source == "" {
			source = p.Database
		}
		opts.SetAuth(options.Credential{
			Username:   p.Username,
			Password:   p.Password,
			AuthSource: source,
		})
	}
	return opts
}

// Store inserts batch records into one collection. It implements
// pipeline.Sink.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// Connect opens an authenticated session and pings the primary, so a bad
// host or bad credentials fail here instead of on the first insert.
func Connect(ctx context.Context, p Params, logger *slog.Logger) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(p.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo %s:%d: %w", p.Host, p.Port, err)
	}

	logger.Info("mongo connected",
		"host", p.Host,
		"port", p.Port,
		"database", p.Database,
		"collection", p.Collection,
		"username", p.Username,
	)

	return &Store{
		client:     client,
		collection: client.Database(p.Database).Collection(p.Collection),
		logger:     logger,
	}, nil
}

// Insert writes every record of the batch and returns how many were stored.
func (s *Store) Insert(ctx context.Context, batch domain.Batch) (int, error) {
	docs, err := toDocuments(batch.Docs)
	if err != nil {
		return 0, fmt.Errorf("convert %s: %w", batch.Source, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	// InsertedIDs is filled before the write, so it says nothing about a
	// failed insert. A failed file counts zero records.
	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", batch.Source, err)
	}
	return len(res.InsertedIDs), nil
}

// Close ends the session.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var errNotObject = errors.New("record is not a JSON object")

// toDocuments decodes JSON objects into ordered BSON documents. Relaxed
// extended JSON keeps integers as int32/int64 and fractions as doubles.
func toDocuments(raws []json.RawMessage) ([]any, error) {
	docs := make([]any, 0, len(raws))
	for i, raw := range raws {
		var doc bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			if !isObject(raw) {
				return nil, fmt.Errorf("record %d: %w", i, errNotObject)
			}
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
