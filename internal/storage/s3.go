package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/config"
	"github.com/coffersTech/dynamobackup/internal/engine"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	manager.UploadAPIClient
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

// S3Store streams objects into a bucket. Each object is a multipart upload
// fed through a pipe, so a backup never has to fit in memory.
type S3Store struct {
	client      S3API
	uploader    *manager.Uploader
	bucket      string
	compression string
	ext         string
	logger      *zap.Logger
}

func NewS3Store(client S3API, bucket, compression string, partSize int64, logger *zap.Logger) (*S3Store, error) {
	ext, err := Extension(compression)
	if err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.LeavePartsOnError = false
	})
	return &S3Store{
		client:      client,
		uploader:    uploader,
		bucket:      bucket,
		compression: compression,
		ext:         ext,
		logger:      logger,
	}, nil
}

// Create starts an upload of key plus the compression extension.
func (s *S3Store) Create(ctx context.Context, key string) (engine.ObjectWriter, error) {
	key += s.ext
	pr, pw := io.Pipe()
	lw, err := newLineWriter(pw, s.compression)
	if err != nil {
		return nil, err
	}

	w := &s3Writer{
		lineWriter: lw,
		key:        key,
		pipe:       pw,
		done:       make(chan error, 1),
		logger:     s.logger.With(zap.String("bucket", s.bucket), zap.String("key", key)),
	}
	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        pr,
			ContentType: aws.String(contentType(s.compression)),
		})
		// Unblocks WriteLine when the upload fails before the body ends.
		pr.CloseWithError(err)
		w.done <- err
	}()

	w.logger.Debug("upload started")
	return w, nil
}

// SetTags replaces the tag set of an existing object.
func (s *S3Store) SetTags(ctx context.Context, key string, tags map[string]string) error {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	set := make([]types.Tag, 0, len(names))
	for _, name := range names {
		set = append(set, types.Tag{Key: aws.String(name), Value: aws.String(tags[name])})
	}

	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: set},
	})
	if err != nil {
		return fmt.Errorf("put tagging s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

type s3Writer struct {
	*lineWriter
	key    string
	pipe   *io.PipeWriter
	done   chan error
	logger *zap.Logger
}

func (w *s3Writer) Key() string {
	return w.key
}

// Close ends the body and waits for the upload to complete.
func (w *s3Writer) Close() error {
	if err := w.finish(); err != nil {
		w.pipe.CloseWithError(err)
		<-w.done
		return fmt.Errorf("finish %s: %w", w.key, err)
	}
	w.pipe.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("upload %s: %w", w.key, err)
	}
	w.logger.Debug("upload complete")
	return nil
}

// Abort fails the body with err. The uploader then aborts any multipart
// upload it has started, so no object is created.
func (w *s3Writer) Abort(err error) {
	if err == nil {
		err = errors.New("aborted")
	}
	w.pipe.CloseWithError(err)
	w.abandon()
	uploadErr := <-w.done
	w.logger.Warn("upload aborted", zap.Error(err), zap.NamedError("upload_error", uploadErr))
}

func contentType(compression string) string {
	switch compression {
	case config.CompressionZstd:
		return "application/zstd"
	case config.CompressionGzip:
		return "application/gzip"
	default:
		return "application/x-ndjson"
	}
}
