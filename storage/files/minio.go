package files

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
)

// MinIOStore keeps artifacts as objects in a single bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	region string
	logger core.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

var _ core.FileStore = (*MinIOStore)(nil)

func NewMinIOStore(conf core.MinIOConfig, logger core.Logger) (*MinIOStore, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
		Region: conf.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating MinIO client")
	}

	s := &MinIOStore{
		client: client,
		bucket: conf.Bucket,
		region: conf.Region,
		logger: logger,
	}

	// do not fail start-up if MinIO is not ready yet; the bucket is ensured again on demand
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = s.ensureBucket(ctx); err != nil {
		logger.Error("MinIO not ready during startup", err, map[string]interface{}{"endpoint": conf.Endpoint, "bucket": conf.Bucket})
	}
	return s, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket")
	}
	if !exists {
		if err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return errors.Wrap(err, "creating bucket")
		}
		s.logger.Info("created bucket", map[string]interface{}{"bucket": s.bucket})
	}
	s.bucketEnsured = true
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *MinIOStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "uploading object")
}

func (s *MinIOStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "stating object")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "getting object")
	}
	return obj, nil
}

func (s *MinIOStore) Remove(ctx context.Context, name string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	return errors.Wrap(s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}), "removing object")
}
