package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options 描述 S3 兼容存储（R2/MinIO/AWS）的连接参数。
type S3Options struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
	HeaderTimeout   time.Duration
}

type s3Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Bucket 通过 minio-go 连接 S3 兼容存储。未提供密钥时读取 AWS_* 环境变量。
func NewS3Bucket(opts S3Options) (Bucket, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("s3 endpoint required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}

	creds := credentials.NewEnvAWS()
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     creds,
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: newTransport(opts.HeaderTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &s3Bucket{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (b *s3Bucket) Get(ctx context.Context, key string) (*Object, error) {
	objectKey, err := cleanKey(b.prefix, key)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateS3Error(err)
	}

	// GetObject 是惰性的，Stat 触发真正的 GET 并拿到长度等元数据。
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, translateS3Error(err)
	}

	return &Object{
		Key:     key,
		Body:    obj,
		Size:    info.Size,
		ModTime: info.LastModified,
		ETag:    info.ETag,
	}, nil
}

func translateS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NotFound":
		return ErrNotFound
	case resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket":
		return ErrNotFound
	}
	return fmt.Errorf("s3 get: %w", err)
}
