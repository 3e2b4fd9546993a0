package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxObjectSize guards against loading something that is clearly not source code.
const maxObjectSize = 8 << 20

type Store struct {
	client     *minio.Client
	bucketName string
}

// New connects to MinIO and checks the bucket is there. Loading code never
// creates buckets.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket %q does not exist", bucket)
	}

	return &Store{client: cli, bucketName: bucket}, nil
}

// Load returns the object at key as text. A missing object reports
// fs.ErrNotExist, same as a missing local file.
func (s *Store) Load(ctx context.Context, key string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return "", s.mapErr(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return "", s.mapErr(key, err)
	}
	if info.Size > maxObjectSize {
		return "", fmt.Errorf("minio object %s/%s is %d bytes, limit is %d", s.bucketName, key, info.Size, maxObjectSize)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", s.mapErr(key, err)
	}
	return string(data), nil
}

func (s *Store) mapErr(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return &fs.PathError{Op: "open", Path: s.bucketName + "/" + key, Err: fs.ErrNotExist}
	case "AccessDenied":
		return &fs.PathError{Op: "open", Path: s.bucketName + "/" + key, Err: fs.ErrPermission}
	}
	return fmt.Errorf("minio get %s/%s: %w", s.bucketName, key, err)
}

// Check reports whether the bucket is still reachable.
func (s *Store) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("minio bucket %q does not exist", s.bucketName)
	}
	return nil
}
