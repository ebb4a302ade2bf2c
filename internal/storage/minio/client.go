// Package minio stores listing images in an S3-compatible bucket that browsers read from directly.
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/dtroode/flavourmarket/internal/model"
)

// objectStore is the part of *minio.Client the image store uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var (
	_ objectStore        = (*minio.Client)(nil)
	_ model.ImageStorage = (*Client)(nil)
)

const (
	publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

	// Object keys are never reused, so images can be cached forever.
	imageCacheControl = "public, max-age=31536000, immutable"
)

// Client uploads listing images and builds their public URLs.
type Client struct {
	store     objectStore
	bucket    string
	publicURL string
}

// NewClient creates the image store on bucket, creating it readable by everyone when missing.
// publicURL is the base browsers reach the object store on, e.g. http://localhost:9000;
// when empty the client's endpoint is used.
func NewClient(ctx context.Context, client *minio.Client, bucket, publicURL string) (*Client, error) {
	if publicURL == "" {
		endpoint := client.EndpointURL()
		scheme := endpoint.Scheme
		if scheme == "" {
			scheme = "http"
		}
		publicURL = scheme + "://" + endpoint.Host
	}
	return newClient(ctx, client, bucket, publicURL)
}

func newClient(ctx context.Context, store objectStore, bucket, publicURL string) (*Client, error) {
	c := &Client{
		store:     store,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}

	if err := c.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare image bucket: %w", err)
	}

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.store.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.store.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	if err := c.store.SetBucketPolicy(ctx, c.bucket, fmt.Sprintf(publicReadPolicy, c.bucket)); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}

	return nil
}

// Upload stores an image under key and returns the URL browsers load it from.
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: imageCacheControl,
	}
	if _, err := c.store.PutObject(ctx, c.bucket, key, reader, size, opts); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return c.URL(key), nil
}

// Delete removes an uploaded image. Used to roll back an upload whose listing write failed.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.store.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// URL returns the public URL of key.
func (c *Client) URL(key string) string {
	return c.publicURL + "/" + c.bucket + "/" + key
}
