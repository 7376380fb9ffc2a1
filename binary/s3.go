package binary

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"trellis.io/ldp/trelliserr"
)

// S3Store is the alternate C3 binary driver, demonstrating the
// "polymorphism over storage" design note (spec.md §9) with a second real
// backend. It is constructed directly with NewS3Store; the CLI's
// --binary-store s3 choice does not build one and fails at startup. It
// satisfies exactly the same Store contract as FilesystemStore.
type S3Store struct {
	Client   *s3.Client
	Bucket   string
	Prefix   string
	Uploader *manager.Uploader
	Log      *logrus.Logger
}

func NewS3Store(client *s3.Client, bucket, prefix string, log *logrus.Logger) *S3Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &S3Store{
		Client:   client,
		Bucket:   bucket,
		Prefix:   prefix,
		Uploader: manager.NewUploader(client),
		Log:      log,
	}
}

func (s *S3Store) key(id string) string {
	if s.Prefix == "" {
		return id
	}
	return s.Prefix + "/" + id
}

func (s *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
	}
	return out.Body, nil
}

func (s *S3Store) GetRange(ctx context.Context, id string, from, to int64) (io.ReadCloser, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", from, to)
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(id)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
	}
	return out.Body, nil
}

func (s *S3Store) Put(ctx context.Context, id string, r io.Reader, meta Metadata) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(id)),
		Body:   r,
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if _, err := s.Uploader.Upload(ctx, input); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "upload binary", err)
	}
	return nil
}

func (s *S3Store) Purge(ctx context.Context, id string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		s.Log.WithField("id", id).Warn("purge requested for missing or unreachable S3 binary")
	}
	return nil
}

func (s *S3Store) Digest(ctx context.Context, id string, algorithm string) (string, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return "", trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
	}
	defer out.Body.Close()

	digest, supported, err := digestReader(out.Body, algorithm)
	if err != nil {
		return "", trelliserr.Wrap(trelliserr.Internal, "compute digest", err)
	}
	if !supported {
		return "", fmt.Errorf("unsupported digest algorithm %q", algorithm)
	}
	return digest, nil
}
