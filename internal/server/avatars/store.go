// Package avatars stores profile images in an S3-compatible bucket
// (MinIO in development).
package avatars

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/avdeev-dm/accountd/internal/common"
	sc "github.com/avdeev-dm/accountd/internal/server/config"
)

// extensions maps the accepted image content types to file extensions.
// Anything outside this set is rejected before touching the bucket.
var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store uploads and removes avatar objects. Object keys are random, so a
// replaced avatar never overwrites the old object in place.
type Store struct {
	client objectAPI
	bucket string
}

func NewStore(cfg *sc.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("error loading s3 config: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &Store{client: client, bucket: cfg.S3Bucket}, nil
}

// Store uploads the image and returns its object key. Returns
// common.ErrUnsupportedFileType for content types outside the allow list.
func (s *Store) Store(ctx context.Context, r io.Reader, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", common.ErrUnsupportedFileType
	}

	key := fmt.Sprintf("avatars/%v.%s", uuid.New(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading avatar: %v", err)
	}

	return key, nil
}

// Delete removes a previously stored avatar object. Deleting an empty ref
// is a no-op.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &ref,
	})
	if err != nil {
		return fmt.Errorf("error deleting avatar: %v", err)
	}

	return nil
}
