package acquire

import (
	"context"
	"path"

	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// Mirror caches upstream archives so repeated runs do not hit the source
type Mirror interface {
	// Get copies the archive to dst; false means the mirror lacks it
	Get(ctx context.Context, snapshot, name, dst string) (bool, error)
	// Put uploads the local archive src
	Put(ctx context.Context, snapshot, name, src string) error
}

// S3Mirror is a Mirror backed by an S3-compatible bucket
type S3Mirror struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Mirror connects to the bucket, creating it when missing
func NewS3Mirror(ctx context.Context, cfg config.MirrorConfig, logger zerolog.Logger) (*S3Mirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, errors.New(ErrMirrorFailed, "failed to create mirror client", err).
			AddContext("endpoint", cfg.Endpoint)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.New(ErrMirrorFailed, "failed to check mirror bucket", err).
			AddContext("bucket", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.New(ErrMirrorFailed, "failed to create mirror bucket", err).
				AddContext("bucket", cfg.Bucket)
		}
	}

	return &S3Mirror{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "acquire.mirror").Logger(),
	}, nil
}

func objectKey(snapshot, name string) string {
	return path.Join(snapshot, name)
}

func (m *S3Mirror) Get(ctx context.Context, snapshot, name, dst string) (bool, error) {
	key := objectKey(snapshot, name)

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.New(ErrMirrorFailed, "failed to stat mirrored archive", err).
			AddContext("key", key)
	}

	if err := m.client.FGetObject(ctx, m.bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		return false, errors.New(ErrMirrorFailed, "failed to fetch mirrored archive", err).
			AddContext("key", key)
	}

	m.logger.Debug().Str("key", key).Msg("Archive served from mirror")
	return true, nil
}

func (m *S3Mirror) Put(ctx context.Context, snapshot, name, src string) error {
	key := objectKey(snapshot, name)
	info, err := m.client.FPutObject(ctx, m.bucket, key, src, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return errors.New(ErrMirrorFailed, "failed to upload archive to mirror", err).
			AddContext("key", key)
	}
	m.logger.Debug().Str("key", key).Int64("size", info.Size).Msg("Archive mirrored")
	return nil
}
