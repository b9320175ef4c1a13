package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrMissingMinioConfiguration = errors.New("media: missing minio endpoint or bucket")

// MinioConfig captures the object storage connection.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL prefixes object keys in returned URLs; defaults to the endpoint and bucket.
	PublicURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, bucketName string, objectName string, reader *bytes.Reader, objectSize int64, contentType string) error
}

type minioPutter struct {
	client *minio.Client
}

func (putter minioPutter) PutObject(ctx context.Context, bucketName string, objectName string, reader *bytes.Reader, objectSize int64, contentType string) error {
	_, err := putter.client.PutObject(ctx, bucketName, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// MinioStore writes objects to an S3 compatible bucket.
type MinioStore struct {
	putter    objectPutter
	bucket    string
	publicURL string
}

// NewMinioStore connects to the endpoint and creates the bucket when it does not exist.
func NewMinioStore(ctx context.Context, configuration MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	bucket := strings.TrimSpace(configuration.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, ErrMissingMinioConfiguration
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(configuration.AccessKey, configuration.SecretKey, ""),
		Secure: configuration.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("media: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("media: create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(configuration.PublicURL)
	if publicURL == "" {
		scheme := "http"
		if configuration.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}
	return newMinioStore(minioPutter{client: client}, bucket, publicURL), nil
}

func newMinioStore(putter objectPutter, bucket string, publicURL string) *MinioStore {
	return &MinioStore{
		putter:    putter,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (store *MinioStore) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	if err := store.putter.PutObject(ctx, store.bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}
	return store.publicURL + "/" + key, nil
}
