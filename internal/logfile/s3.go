package logfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used to tail an object.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Object is a log file stored as an object. Writers replace the object
// with a longer version of itself; the handle keeps a byte offset and
// fetches only the range past it.
type S3Object struct {
	client S3API
	bucket string
	key    string
}

// NewS3Object returns an S3Object for bucket/key.
func NewS3Object(client S3API, bucket, key string) *S3Object {
	return &S3Object{client: client, bucket: bucket, key: key}
}

// ParseS3URI splits s3://bucket/key. ok is false for any other form.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func (o *S3Object) Path() string { return "s3://" + o.bucket + "/" + o.key }

// Remote always reports true: every read is a network round trip.
func (o *S3Object) Remote() bool { return true }

func (o *S3Object) Exists(ctx context.Context) (bool, error) {
	_, err := o.head(ctx)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (o *S3Object) Open(_ context.Context) (Handle, error) {
	return &s3Handle{obj: o}, nil
}

func (o *S3Object) head(ctx context.Context) (*s3.HeadObjectOutput, error) {
	return o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
}

type s3Handle struct {
	obj    *S3Object
	offset int64
}

func (h *s3Handle) Read(ctx context.Context) ([]byte, error) {
	head, err := h.obj.head(ctx)
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", h.obj.Path(), err)
	}
	if aws.ToInt64(head.ContentLength) <= h.offset {
		return nil, nil
	}

	out, err := h.obj.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.obj.bucket),
		Key:    aws.String(h.obj.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-", h.offset)),
	})
	if err != nil {
		if isInvalidRange(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", h.obj.Path(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.obj.Path(), err)
	}
	h.offset += int64(len(data))
	return data, nil
}

func (h *s3Handle) Close() error { return nil }

func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "InvalidRange"
}
