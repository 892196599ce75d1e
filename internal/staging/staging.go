// SPDX-License-Identifier: MPL-2.0

// Package staging uploads launch artifacts into the staging bucket of a
// cloud launch over the S3 API.
package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrInvalidLocation is returned for staging URIs without a bucket.
	ErrInvalidLocation = errors.New("invalid staging location")

	// ErrBucketNotFound is returned when the staging bucket does not exist.
	ErrBucketNotFound = errors.New("staging bucket not found")
)

// knownSchemes are stripped from staging URIs.
var knownSchemes = []string{"gs://", "s3://"}

type (
	// Location is a bucket and an object prefix, e.g. gs://bucket/prefix.
	Location struct {
		Scheme string
		Bucket string
		Prefix string
	}

	// Config holds the S3 endpoint used for staging.
	Config struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Region    string
		UseSSL    bool
	}

	// ObjectStore is the subset of the S3 client the stager uses.
	ObjectStore interface {
		BucketExists(ctx context.Context, bucket string) (bool, error)
		PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	}

	// Stager writes objects below a staging location.
	Stager struct {
		store  ObjectStore
		logger *log.Logger
	}
)

// ParseLocation parses "gs://bucket/prefix", "s3://bucket/prefix" or
// "bucket/prefix".
func ParseLocation(uri string) (Location, error) {
	loc := Location{}
	rest := strings.TrimSpace(uri)
	for _, scheme := range knownSchemes {
		if strings.HasPrefix(rest, scheme) {
			loc.Scheme = scheme
			rest = strings.TrimPrefix(rest, scheme)
			break
		}
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, uri)
	}
	loc.Bucket = bucket
	loc.Prefix = strings.Trim(prefix, "/")
	return loc, nil
}

// Key returns the object key of name below the prefix.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// URI returns the full URI of name below the location.
func (l Location) URI(name string) string {
	scheme := l.Scheme
	if scheme == "" {
		scheme = "s3://"
	}
	return scheme + l.Bucket + "/" + l.Key(name)
}

// String returns the location URI.
func (l Location) String() string {
	s := l.Scheme + l.Bucket
	if l.Prefix != "" {
		s += "/" + l.Prefix
	}
	return s
}

// New connects a Stager to the S3 endpoint of cfg.
func New(cfg Config, logger *log.Logger) (*Stager, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("staging endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create staging client: %w", err)
	}
	return NewWithStore(client, logger), nil
}

// NewWithStore wraps an existing object store.
func NewWithStore(store ObjectStore, logger *log.Logger) *Stager {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "staging"})
	}
	return &Stager{store: store, logger: logger}
}

// Stage uploads data as name below loc and returns the object URI.
func (s *Stager) Stage(ctx context.Context, loc Location, name string, data []byte, contentType string) (string, error) {
	exists, err := s.store.BucketExists(ctx, loc.Bucket)
	if err != nil {
		return "", fmt.Errorf("check staging bucket %s: %w", loc.Bucket, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrBucketNotFound, loc.Bucket)
	}

	key := loc.Key(name)
	_, err = s.store.PutObject(ctx, loc.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", loc.URI(name), err)
	}
	s.logger.Debug("Staged object", "uri", loc.URI(name), "bytes", len(data))
	return loc.URI(name), nil
}

// StageJSON uploads v encoded as indented JSON.
func (s *Stager) StageJSON(ctx context.Context, loc Location, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return s.Stage(ctx, loc, name, data, "application/json")
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
