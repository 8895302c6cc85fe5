package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gridFSOpTimeout = 30 * time.Second

// GridFSClient stores photos in a MongoDB GridFS bucket. The object key is
// used as the GridFS file id.
type GridFSClient struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
}

// NewGridFSClient connects to MongoDB and opens the configured bucket.
func NewGridFSClient(ctx context.Context, cfg config.MongoConfig) (*GridFSClient, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("mongo database is required")
	}
	name := cfg.Bucket
	if strings.TrimSpace(name) == "" {
		name = "fs"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &GridFSClient{client: client, db: client.Database(cfg.Database), name: name}, nil
}

// open returns a bucket handle whose deadlines follow ctx. Handles are not
// shared between calls because deadlines are per handle.
func (g *GridFSClient) open(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.name))
	if err != nil {
		return nil, err
	}
	d := deadline(ctx)
	if err := bucket.SetReadDeadline(d); err != nil {
		return nil, err
	}
	if err := bucket.SetWriteDeadline(d); err != nil {
		return nil, err
	}
	return bucket, nil
}

// EnsureBucket checks the server is reachable. GridFS creates its
// collections on first write.
func (g *GridFSClient) EnsureBucket(ctx context.Context) error {
	return g.client.Ping(ctx, nil)
}

func (g *GridFSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	bucket, err := g.open(ctx)
	if err != nil {
		return err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	return bucket.UploadFromStreamWithID(key, key, r, opts)
}

func (g *GridFSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := bucket.OpenDownloadStream(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (g *GridFSClient) Delete(ctx context.Context, key string) error {
	bucket, err := g.open(ctx)
	if err != nil {
		return err
	}
	err = bucket.Delete(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil
	}
	return err
}

// Bucket returns the GridFS bucket name.
func (g *GridFSClient) Bucket() string {
	return g.name
}

func (g *GridFSClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.client.Disconnect(ctx)
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(gridFSOpTimeout)
}
