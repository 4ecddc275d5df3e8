// Package volume mirrors the shared model directory to an S3 bucket so a
// fresh worker can populate its local volume without touching the upstream
// tessdata source.
package volume

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Name is the volume's logical name.
const Name = "models"

const weightExt = ".traineddata"

// ObjectStore is the part of the S3 client the mirror uses.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Mirror struct {
	client ObjectStore
	bucket string
	prefix string
	log    *zap.SugaredLogger

	// параллельных передач
	Concurrency int
}

func NewS3Mirror(client ObjectStore, bucket, prefix string, log *zap.SugaredLogger) *S3Mirror {
	return &S3Mirror{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		log:         log,
		Concurrency: 4,
	}
}

// NewS3MirrorFromEnv uses the default AWS credential chain.
func NewS3MirrorFromEnv(ctx context.Context, bucket, prefix string, log *zap.SugaredLogger) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return NewS3Mirror(s3.NewFromConfig(cfg), bucket, prefix, log), nil
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Push uploads every weight file in dir.
func (m *S3Mirror) Push(ctx context.Context, dir string) ([]string, error) {
	names, err := localWeights(dir)
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit())
	for _, name := range names {
		name := name
		g.Go(func() error {
			f, err := os.Open(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket: aws.String(m.bucket),
				Key:    aws.String(m.key(name)),
				Body:   f,
			}); err != nil {
				return fmt.Errorf("put %s: %w", name, err)
			}
			m.log.Infow("weights pushed", "file", name, "bucket", m.bucket, "key", m.key(name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// Pull downloads every weight object under the prefix into dir. Files are
// written to a temp name and renamed into place.
func (m *S3Mirror) Pull(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("make dir: %w", err)
	}
	names, err := m.remoteWeights(ctx)
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit())
	for _, name := range names {
		name := name
		g.Go(func() error {
			out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(m.bucket),
				Key:    aws.String(m.key(name)),
			})
			if err != nil {
				return fmt.Errorf("get %s: %w", name, err)
			}
			defer out.Body.Close()
			if err := writeAtomic(dir, name, out.Body); err != nil {
				return err
			}
			m.log.Debugw("weights pulled", "file", name, "bucket", m.bucket)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (m *S3Mirror) limit() int {
	if m.Concurrency > 0 {
		return m.Concurrency
	}
	return 1
}

func (m *S3Mirror) remoteWeights(ctx context.Context) ([]string, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(m.bucket)}
	if m.prefix != "" {
		in.Prefix = aws.String(m.prefix + "/")
	}
	var names []string
	p := s3.NewListObjectsV2Paginator(m.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", m.bucket, err)
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if strings.HasSuffix(name, weightExt) && aws.ToString(obj.Key) == m.key(name) {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func localWeights(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), weightExt) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func writeAtomic(dir, name string, r io.Reader) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
