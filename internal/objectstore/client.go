package objectstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"labelflow/internal/config"
)

// Client moves objects between buckets.
type Client struct {
	client *minio.Client
	region string

	mu      sync.Mutex
	ensured map[string]struct{}
}

// New builds a Client from the [object_store] configuration.
func New(cfg config.ObjectStore) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("object store access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &Client{client: client, region: region, ensured: make(map[string]struct{})}, nil
}

// Move copies key from srcBucket into dstBucket and removes the source object.
func (c *Client) Move(ctx context.Context, srcBucket, dstBucket, key string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("object store client is nil")
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	if err := c.ensureBucket(ctx, dstBucket); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", dstBucket, err)
	}

	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: key},
		minio.CopySrcOptions{Bucket: srcBucket, Object: key},
	)
	if err != nil {
		return fmt.Errorf("copy %s/%s to %s: %w", srcBucket, key, dstBucket, err)
	}
	if err := c.client.RemoveObject(ctx, srcBucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", srcBucket, key, err)
	}
	return nil
}

// Ping verifies the endpoint accepts the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("object store client is nil")
	}
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}
	return nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	c.mu.Lock()
	_, ok := c.ensured[bucket]
	c.mu.Unlock()
	if ok {
		return nil
	}

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.ensured[bucket] = struct{}{}
	c.mu.Unlock()
	return nil
}
