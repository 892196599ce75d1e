// SPDX-License-Identifier: MPL-2.0

package staging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
)

type memStore struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemStore(buckets ...string) *memStore {
	m := &memStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	for _, b := range buckets {
		m.buckets[b] = true
	}
	return m
}

func (m *memStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	return m.buckets[bucket], nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putErr != nil {
		return minio.UploadInfo{}, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{"gs://bucket/runs/x", Location{Scheme: "gs://", Bucket: "bucket", Prefix: "runs/x"}, false},
		{"s3://bucket", Location{Scheme: "s3://", Bucket: "bucket"}, false},
		{"bucket/prefix/", Location{Bucket: "bucket", Prefix: "prefix"}, false},
		{"gs://", Location{}, true},
		{"", Location{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLocation(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocation) {
					t.Errorf("ParseLocation() error = %v, want ErrInvalidLocation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLocation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLocation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocation_URI(t *testing.T) {
	t.Parallel()

	loc := Location{Scheme: "gs://", Bucket: "b", Prefix: "p"}
	if got := loc.URI("meta.json"); got != "gs://b/p/meta.json" {
		t.Errorf("URI() = %q", got)
	}
	if got := loc.String(); got != "gs://b/p" {
		t.Errorf("String() = %q", got)
	}
	if got := (Location{Bucket: "b"}).URI("x"); got != "s3://b/x" {
		t.Errorf("URI() without scheme = %q", got)
	}
}

func TestStager_StageJSON(t *testing.T) {
	t.Parallel()

	store := newMemStore("bucket")
	s := NewWithStore(store, log.New(io.Discard))
	loc := Location{Scheme: "gs://", Bucket: "bucket", Prefix: "launch"}

	uri, err := s.StageJSON(context.Background(), loc, "run.json", map[string]string{"run_id": "abc"})
	if err != nil {
		t.Fatalf("StageJSON() error = %v", err)
	}
	if uri != "gs://bucket/launch/run.json" {
		t.Errorf("uri = %q", uri)
	}

	var got map[string]string
	if err := json.Unmarshal(store.objects["bucket/launch/run.json"], &got); err != nil {
		t.Fatalf("stored object is not JSON: %v", err)
	}
	if got["run_id"] != "abc" {
		t.Errorf("stored run_id = %q", got["run_id"])
	}
	if store.types["bucket/launch/run.json"] != "application/json" {
		t.Errorf("content type = %q", store.types["bucket/launch/run.json"])
	}
}

func TestStager_MissingBucket(t *testing.T) {
	t.Parallel()

	s := NewWithStore(newMemStore(), log.New(io.Discard))
	_, err := s.Stage(context.Background(), Location{Bucket: "nope"}, "x", []byte("x"), "text/plain")
	if !errors.Is(err, ErrBucketNotFound) {
		t.Errorf("Stage() error = %v, want ErrBucketNotFound", err)
	}
}

func TestStager_UploadFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore("bucket")
	store.putErr = errors.New("boom")
	s := NewWithStore(store, log.New(io.Discard))

	if _, err := s.Stage(context.Background(), Location{Bucket: "bucket"}, "x", []byte("x"), ""); err == nil {
		t.Error("Stage() should fail when the upload fails")
	}
}

func TestNew_RequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, log.New(io.Discard)); err == nil {
		t.Error("New() without endpoint should fail")
	}
	if _, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, log.New(io.Discard)); err != nil {
		t.Errorf("New() error = %v", err)
	}
}
