package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/metadata"
	"github.com/ppiankov/tabspectre/internal/models"
)

// S3API is the slice of the S3 client this backend uses. Kept small so
// tests can fake it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 stores snapshots as objects under a key prefix in one bucket.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 creates an S3 backend using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to load AWS configuration")
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3WithClient creates an S3 backend over an existing client.
func NewS3WithClient(client S3API, bucket, prefix string) *S3 {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) key(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

func (s *S3) location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// Save uploads the snapshot and returns its s3:// location. Gzipped
// snapshots carry a Content-Encoding header. CSV is a local-only format.
func (s *S3) Save(ctx context.Context, meta *models.ServerMetadata, path string, format Format) (string, error) {
	if format == FormatCSV {
		return "", apierr.New(apierr.KindStorage, "csv format is not supported on the s3 backend")
	}

	data, err := metadata.ToJSON(meta, format == FormatJSON)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(path)),
		ContentType: aws.String("application/json"),
	}
	if format == FormatJSONGZ {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to compress snapshot")
		}
		if err := zw.Close(); err != nil {
			return "", apierr.Wrap(apierr.KindStorage, err, "failed to compress snapshot")
		}
		input.Body = bytes.NewReader(buf.Bytes())
		input.ContentEncoding = aws.String("gzip")
	} else {
		input.Body = bytes.NewReader(data)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", apierr.Wrap(apierr.KindStorage, err, "failed to upload %s", s.location(s.key(path)))
	}
	return s.location(s.key(path)), nil
}

// Load downloads and parses a snapshot. Gzip is detected by the .gz suffix.
func (s *S3) Load(ctx context.Context, path string) (*models.ServerMetadata, error) {
	key := s.key(path)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to download %s", s.location(key))
	}
	defer out.Body.Close()

	var r io.Reader = out.Body
	if strings.HasSuffix(key, ".gz") {
		zr, err := gzip.NewReader(out.Body)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindStorage, err, "failed to read %s", s.location(key))
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to read %s", s.location(key))
	}
	return metadata.FromJSON(data)
}

// List returns snapshot paths under the key prefix, relative to it.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	}
	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindStorage, err, "failed to list s3://%s/%s", s.bucket, s.prefix)
		}
		for _, obj := range out.Contents {
			paths = append(paths, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return paths, nil
}

// Delete removes a snapshot object. It reports false without error when the
// object does not exist; any other head failure is a storage error.
func (s *S3) Delete(ctx context.Context, path string) (bool, error) {
	key := s.key(path)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, apierr.Wrap(apierr.KindStorage, err, "failed to check %s", s.location(key))
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return false, apierr.Wrap(apierr.KindStorage, err, "failed to delete %s", s.location(key))
	}
	return true, nil
}
