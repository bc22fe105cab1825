package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"skip-analyzer/domain/cache"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// sourceModTimeKey is the object metadata carrying the video mtime the
// analysis was computed against
const sourceModTimeKey = "source-mtime"

// S3API is the subset of the S3 client the store uses
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds the configuration for the S3 store
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Store implements cache.Store with one object per video in a bucket
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store from the default AWS credential chain, or from
// static credentials when both keys are set
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 cache requires a bucket")
	}

	var configOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.Region))
	}

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, clientOpts...), cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithClient creates a store around an existing client (for testing)
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key holding the analysis of videoPath. Relative
// paths are resolved against the working directory first, so the same
// video always maps to one key.
func (s *S3Store) Key(videoPath string) string {
	if abs, err := filepath.Abs(videoPath); err == nil {
		videoPath = abs
	}
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean(videoPath)), "/")
	return path.Join(s.prefix, clean) + cache.ArtifactSuffix
}

// Get implements cache.Store
func (s *S3Store) Get(ctx context.Context, videoPath string) (*cache.Entry, error) {
	key := s.Key(videoPath)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}

	intervals, err := decodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, err)
	}

	return &cache.Entry{Intervals: intervals, ModTime: objectModTime(out)}, nil
}

// objectModTime reads the stamped video mtime, falling back to the
// object's LastModified for artifacts written without one
func objectModTime(out *s3.GetObjectOutput) time.Time {
	if v, ok := out.Metadata[sourceModTimeKey]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	if out.LastModified != nil {
		return *out.LastModified
	}
	return time.Time{}
}

// Put implements cache.Store
func (s *S3Store) Put(ctx context.Context, videoPath string, entry cache.Entry) error {
	data, err := encodeArtifact(entry.Intervals)
	if err != nil {
		return err
	}

	key := s.Key(videoPath)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if !entry.ModTime.IsZero() {
		input.Metadata = map[string]string{
			sourceModTimeKey: entry.ModTime.UTC().Format(time.RFC3339Nano),
		}
	}
	_, err = s.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Invalidate implements cache.Store
func (s *S3Store) Invalidate(ctx context.Context, videoPath string) error {
	key := s.Key(videoPath)

	// DeleteObject succeeds for missing keys, so check first
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", cache.ErrNotCached, s.bucket, key)
		}
		return fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
	}

	return s.delete(ctx, key)
}

// InvalidateAll implements cache.Store
func (s *S3Store) InvalidateAll(ctx context.Context) (int, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	removed := 0
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, cache.ArtifactSuffix) {
				continue
			}
			if err := s.delete(ctx, key); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (s *S3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Ensure S3Store implements cache.Store
var _ cache.Store = (*S3Store)(nil)
