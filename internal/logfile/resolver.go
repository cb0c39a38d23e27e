package logfile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resolver maps a location string to a File. Paths become Local files and
// s3:// URIs become S3Objects; the S3 client is created on first use.
type Resolver struct {
	newClient func(ctx context.Context) (S3API, error)

	once   sync.Once
	client S3API
	err    error
}

// NewResolver returns a Resolver using the default AWS credential chain.
func NewResolver() *Resolver {
	return &Resolver{newClient: defaultS3Client}
}

// NewResolverWithClient returns a Resolver that uses client for s3:// URIs.
func NewResolverWithClient(client S3API) *Resolver {
	return &Resolver{newClient: func(context.Context) (S3API, error) { return client, nil }}
}

// Resolve returns the File for uri.
func (r *Resolver) Resolve(ctx context.Context, uri string) (File, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return NewLocal(uri), nil
	}
	bucket, key, ok := ParseS3URI(uri)
	if !ok {
		return nil, fmt.Errorf("malformed s3 uri %q", uri)
	}
	r.once.Do(func() {
		r.client, r.err = r.newClient(ctx)
	})
	if r.err != nil {
		return nil, fmt.Errorf("s3 client: %w", r.err)
	}
	return NewS3Object(r.client, bucket, key), nil
}

func defaultS3Client(ctx context.Context) (S3API, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}
