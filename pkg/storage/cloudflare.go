package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	internalConfig "github.com/sefazor/ourphotos-gallery/internal/config"
)

// CloudflareStorage talks to an R2 bucket through the S3-compatible API.
type CloudflareStorage struct {
	client *s3.Client
	bucket string
	log    *zap.Logger
}

func NewCloudflareStorage(ctx context.Context, cfg *internalConfig.Config, log *zap.Logger) (*CloudflareStorage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2.AccessKeyID,
			cfg.R2.SecretAccessKey,
			"",
		)),
		config.WithRegion(cfg.R2.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2.Endpoint)
		o.UsePathStyle = cfg.R2.UsePathStyle
		// R2 rejects the default trailing CRC checksums on streamed bodies.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return NewCloudflareStorageWithClient(client, cfg.R2.Bucket, log), nil
}

func NewCloudflareStorageWithClient(client *s3.Client, bucket string, log *zap.Logger) *CloudflareStorage {
	return &CloudflareStorage{
		client: client,
		bucket: bucket,
		log:    log.With(zap.String("bucket", bucket)),
	}
}

func (s *CloudflareStorage) Get(ctx context.Context, key string, opts GetOptions) (*Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if opts.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(opts.IfNoneMatch)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, s.translate("get", key, err)
	}

	return &Object{
		ObjectInfo: ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ETag:         aws.ToString(out.ETag),
			ContentType:  aws.ToString(out.ContentType),
			LastModified: aws.ToTime(out.LastModified),
			Metadata:     out.Metadata,
		},
		Body: out.Body,
	}, nil
}

func (s *CloudflareStorage) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translate("head", key, err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     out.Metadata,
	}, nil
}

// Put uploads body. Seekable bodies are sized in place; anything else is
// buffered so the request carries a Content-Length.
func (s *CloudflareStorage) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (*ObjectInfo, error) {
	size := opts.ContentLength
	if size <= 0 {
		if rs, ok := body.(io.ReadSeeker); ok {
			n, err := seekerSize(rs)
			if err != nil {
				return nil, fmt.Errorf("failed to size body: %w", err)
			}
			size = n
		} else {
			buf, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}
			body = bytes.NewReader(buf)
			size = int64(len(buf))
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}
	if opts.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(opts.IfNoneMatch)
	}

	s.log.Debug("put object", zap.String("key", key), zap.Int64("size", size))

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, s.translate("put", key, err)
	}

	return &ObjectInfo{
		Key:         key,
		Size:        size,
		ETag:        aws.ToString(out.ETag),
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
	}, nil
}

func (s *CloudflareStorage) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > MaxDeleteBatch {
		return fmt.Errorf("delete batch of %d exceeds limit %d", len(keys), MaxDeleteBatch)
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		s.log.Error("failed to delete objects", zap.Int("batch_size", len(keys)), zap.Error(err))
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("failed to delete %d objects, first %s: %s",
			len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
	}

	s.log.Debug("deleted objects", zap.Int("count", len(keys)))
	return nil
}

func (s *CloudflareStorage) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 || limit > ListPageSize {
		limit = ListPageSize
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Cursor != "" {
		input.ContinuationToken = aws.String(opts.Cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		s.log.Error("failed to list objects", zap.String("prefix", opts.Prefix), zap.Error(err))
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	res := &ListResult{
		Truncated: aws.ToBool(out.IsTruncated),
		Cursor:    aws.ToString(out.NextContinuationToken),
	}
	for _, o := range out.Contents {
		res.Objects = append(res.Objects, ObjectInfo{
			Key:          aws.ToString(o.Key),
			Size:         aws.ToInt64(o.Size),
			ETag:         aws.ToString(o.ETag),
			LastModified: aws.ToTime(o.LastModified),
		})
	}
	return res, nil
}

// translate maps S3 API errors onto the package sentinels.
func (s *CloudflareStorage) translate(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			return ErrPreconditionFailed
		case "NotModified":
			return ErrNotModified
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusPreconditionFailed, http.StatusConflict:
			return ErrPreconditionFailed
		case http.StatusNotModified:
			return ErrNotModified
		}
	}

	s.log.Error("object storage request failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, key, err)
}

func seekerSize(rs io.ReadSeeker) (int64, error) {
	current, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(current, io.SeekStart); err != nil {
		return 0, err
	}
	return end - current, nil
}
