// Package publish uploads a run's output tree to an S3-compatible bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

// Publisher uploads the files of an output tree.
type Publisher interface {
	Publish(ctx context.Context, runID, root string, categories []string) ([]string, error)
}

// S3Config is a resolved bucket target with credentials. Build it with
// FromSettings, which trims values and fills defaults.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

const defaultRegion = "us-east-1"

// FromSettings reads credentials from the environment variables the
// settings name. ok is false when publishing is not configured.
func FromSettings(s config.PublishConfig) (cfg S3Config, ok bool) {
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		return S3Config{}, false
	}
	region := strings.TrimSpace(s.Region)
	if region == "" {
		region = defaultRegion
	}
	return S3Config{
		Endpoint:  endpoint,
		Region:    region,
		AccessKey: strings.TrimSpace(os.Getenv(s.AccessKeyEnv)),
		SecretKey: strings.TrimSpace(os.Getenv(s.SecretKeyEnv)),
		Bucket:    strings.TrimSpace(s.Bucket),
		Prefix:    strings.Trim(strings.TrimSpace(s.Prefix), "/"),
		UseSSL:    s.UseSSL,
	}, true
}

func (c S3Config) validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if len(missing) > 0 {
		return fmt.Errorf("publish: s3 %s required", strings.Join(missing, ", "))
	}
	return nil
}

// S3Publisher uploads output trees with minio-go. The bucket is checked,
// and created if absent, before the first upload; a failed check is
// retried on the next Publish.
type S3Publisher struct {
	client *minio.Client
	cfg    S3Config

	mu    sync.Mutex
	ready bool
}

// NewS3Publisher validates cfg and creates the client. No request is made
// until Publish.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: s3 client for %s: %w", cfg.Endpoint, err)
	}
	return &S3Publisher{client: client, cfg: cfg}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		ctxlog.FromContext(ctx).Info("creating bucket", "bucket", p.cfg.Bucket)
		if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
			return err
		}
	}
	p.ready = true
	return nil
}

// Publish uploads every regular file under root/<category> and returns the
// object keys written.
func (p *S3Publisher) Publish(ctx context.Context, runID, root string, categories []string) ([]string, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("publish: run id is required")
	}
	files, err := Collect(root, categories)
	if err != nil {
		return nil, err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("publish: bucket %s: %w", p.cfg.Bucket, err)
	}

	logger := ctxlog.FromContext(ctx)
	keys := make([]string, 0, len(files))
	for _, rel := range files {
		key := ObjectKey(p.cfg.Prefix, runID, rel)
		_, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, filepath.Join(root, filepath.FromSlash(rel)), minio.PutObjectOptions{
			ContentType: contentType(rel),
		})
		if err != nil {
			return keys, fmt.Errorf("publish: uploading %s: %w", rel, err)
		}
		logger.Debug("uploaded", "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}

// Collect lists the regular files under root/<category>, as slash
// separated paths relative to root, sorted.
func Collect(root string, categories []string) ([]string, error) {
	var files []string
	for _, c := range categories {
		dir := filepath.Join(root, c)
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && p == dir {
					return filepath.SkipDir
				}
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("publish: scanning %s: %w", c, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ObjectKey joins prefix, run id and a relative file path.
func ObjectKey(prefix, runID, rel string) string {
	parts := []string{}
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, strings.TrimSpace(runID), strings.TrimLeft(strings.TrimSpace(rel), "/"))
	return path.Join(parts...)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".zip":
		return "application/zip"
	case ".txt":
		return "text/plain"
	case ".yml", ".yaml":
		return "application/yaml"
	}
	return "application/octet-stream"
}
