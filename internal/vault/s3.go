package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
)

// S3Vault stores capsule blobs as objects under <prefix>/blobs/<key>.
// Uploads go through the multipart upload manager so large videos stream.
type S3Vault struct {
	name       string
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Vault creates a vault backed by an S3 bucket. A custom endpoint with
// path-style addressing supports LocalStack and MinIO.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &S3Vault{
		name:       cfg.Name,
		bucket:     cfg.S3Bucket,
		prefix:     cfg.S3Prefix,
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (v *S3Vault) objectKey(key string) string {
	return path.Join(v.prefix, "blobs", key)
}

func (v *S3Vault) exists(ctx context.Context, key string) (bool, error) {
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

// PutContent uploads the blob unless an object with the key already exists.
func (v *S3Vault) PutContent(key string, r io.Reader, size int64) error {
	ctx := context.Background()
	obj := v.objectKey(key)

	found, err := v.exists(ctx, obj)
	if err != nil {
		return fmt.Errorf("checking for %s: %w", obj, err)
	}
	if found {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		return nil
	}

	counter := &countingReader{r: r}
	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(obj),
		Body:   counter,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", obj, err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

// GetContent downloads the blob under key and writes it to w.
func (v *S3Vault) GetContent(key string, w io.Writer) error {
	obj := v.objectKey(key)
	buf := manager.NewWriteAtBuffer(nil)
	_, err := v.downloader.Download(context.Background(), buf, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(obj),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: %s", capsule.ErrContentNotFound, key)
		}
		return fmt.Errorf("downloading %s: %w", obj, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (v *S3Vault) HasContent(key string) (bool, error) {
	found, err := v.exists(context.Background(), v.objectKey(key))
	if err != nil {
		return false, fmt.Errorf("checking for %s: %w", key, err)
	}
	return found, nil
}

// DeleteContent removes the object. S3 deletes of missing keys succeed.
func (v *S3Vault) DeleteContent(key string) error {
	_, err := v.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements capsule.Vault interface
var _ capsule.Vault = (*S3Vault)(nil)
