package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// ObjectAPI is the subset of *minio.Client the object store sink uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// LatestKey names the manifest object under Prefix/Name/ that points at the
// current report version.
const LatestKey = "LATEST"

// Manifest is the content of the LATEST object.
type Manifest struct {
	Version     string    `json:"version"`
	Prefix      string    `json:"prefix"`
	Tables      []string  `json:"tables"`
	PublishedAt time.Time `json:"published_at"`
}

// ObjectStore publishes a report to an S3-compatible store. Every Write
// uploads its tables below a fresh version prefix, Prefix/Name/<version>/,
// and then replaces Prefix/Name/LATEST with a Manifest naming that version.
// Objects of earlier versions are never overwritten, so the manifest PUT is
// the only step that changes what readers see.
type ObjectStore struct {
	Client ObjectAPI
	Bucket string
	Prefix string
	Name   string
	Format Format
	// Now stamps versions and manifests. Defaults to time.Now.
	Now func() time.Time
}

// Write uploads a new report version and points LATEST at it. On failure the
// objects uploaded for the version are removed and LATEST is left as it was.
func (s ObjectStore) Write(ctx context.Context, tables map[string]*table.Dataset) (string, error) {
	logger := ctxlog.FromContext(ctx)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	publishedAt := now().UTC()
	base := path.Join(strings.Trim(s.Prefix, "/"), s.Name)
	version := publishedAt.Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	prefix := path.Join(base, version)
	names := sortedNames(tables)

	var uploaded []string
	published := false
	defer func() {
		if published {
			return
		}
		for _, key := range uploaded {
			if err := s.Client.RemoveObject(context.WithoutCancel(ctx), s.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
				logger.Warn("Failed to remove object of unpublished report.", "bucket", s.Bucket, "key", key, "error", err)
			}
		}
	}()

	manifest := Manifest{Version: version, Prefix: prefix + "/", PublishedAt: publishedAt}
	for _, name := range names {
		var buf bytes.Buffer
		if err := Encode(&buf, s.Format, tables[name]); err != nil {
			return "", fmt.Errorf("table %q: %w", name, err)
		}
		key := path.Join(prefix, fileName(name, s.Format))
		_, err := s.Client.PutObject(ctx, s.Bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
			ContentType: contentType(s.Format),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload %s/%s: %w", s.Bucket, key, err)
		}
		uploaded = append(uploaded, key)
		manifest.Tables = append(manifest.Tables, fileName(name, s.Format))
		logger.Debug("Uploaded report table.", "table", name, "bucket", s.Bucket, "key", key)
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	latest := path.Join(base, LatestKey)
	_, err = s.Client.PutObject(ctx, s.Bucket, latest, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish %s/%s: %w", s.Bucket, latest, err)
	}
	published = true

	location := "s3://" + s.Bucket + "/" + prefix + "/"
	logger.Info("Published report.", "location", location, "version", version, "tables", len(tables))
	return location, nil
}

func contentType(f Format) string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

// ClientConfig locates an S3-compatible endpoint.
type ClientConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinIOClient builds a client with static credentials.
func NewMinIOClient(cfg ClientConfig) (*minio.Client, error) {
	if strings.Contains(cfg.Endpoint, "://") {
		return nil, fmt.Errorf("endpoint must not include scheme: %q", cfg.Endpoint)
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
}

// EnsureBucket creates bucket if it does not exist.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
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
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var _ ObjectAPI = (*minio.Client)(nil)
