package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

//go:generate mockgen -source $GOFILE -destination sink_mocks.go -package $GOPACKAGE

// Sink persists what a session produces for the downstream fetchers
type Sink interface {
	// Save writes the cookie jar and returns where it went
	Save(ctx context.Context, artifact *types.SessionArtifact) (string, error)
	// SaveScreenshot stores a diagnostics capture taken when a session fails
	SaveScreenshot(ctx context.Context, png []byte) (string, error)
}

type BlobSink struct {
	bucket    *blob.Bucket
	bucketURL string
	key       string
}

var _ Sink = &BlobSink{}

func NewBlobSink(bucket *blob.Bucket, bucketURL, key string) *BlobSink {
	return &BlobSink{
		bucket:    bucket,
		bucketURL: bucketURL,
		key:       key,
	}
}

// OpenBlobSink opens the bucket named by the config. file:// urls are
// resolved relative to the working directory and created when missing.
func OpenBlobSink(ctx context.Context, cfg config.Artifact) (*BlobSink, error) {
	u, err := url.Parse(cfg.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact bucket url %q: %w", cfg.BucketURL, err)
	}

	var bucket *blob.Bucket
	if u.Scheme == fileblob.Scheme {
		dir, err := filepath.Abs(filepath.FromSlash(u.Host + u.Path))
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
		bucket, err = fileblob.OpenBucket(dir, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact directory %s: %w", dir, err)
		}
	} else {
		bucket, err = blob.OpenBucket(ctx, cfg.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact bucket %s: %w", cfg.BucketURL, err)
		}
	}

	location := strings.TrimSuffix(cfg.BucketURL, "?"+u.RawQuery)
	return NewBlobSink(bucket, location, cfg.Key), nil
}

func (s *BlobSink) Save(ctx context.Context, artifact *types.SessionArtifact) (string, error) {
	// the fetchers read a bare array, not the artifact envelope
	bts, err := json.MarshalIndent(artifact.Cookies, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, s.key, bts, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", s.key, err)
	}

	location := s.location(s.key)
	log.Info().Int("cookies", len(artifact.Cookies)).Str("location", location).Msg("saved session cookies")
	return location, nil
}

func (s *BlobSink) SaveScreenshot(ctx context.Context, png []byte) (string, error) {
	key := ScreenshotKey(s.key)
	if err := s.bucket.WriteAll(ctx, key, png, &blob.WriterOptions{ContentType: "image/png"}); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	return s.location(key), nil
}

// Bucket is shared with sinks for other keys in the same bucket
func (s *BlobSink) Bucket() *blob.Bucket {
	return s.bucket
}

func (s *BlobSink) BucketURL() string {
	return s.bucketURL
}

func (s *BlobSink) Close() error {
	return s.bucket.Close()
}

func (s *BlobSink) location(key string) string {
	return strings.TrimSuffix(s.bucketURL, "/") + "/" + key
}

// ScreenshotKey is where the failure capture for an artifact key is stored,
// cookies.json -> cookies-failure.png
func ScreenshotKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + "-failure.png"
}
