package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/util"
)

// S3Scheme marks a media endpoint that is an S3 bucket: s3://bucket/optional/prefix.
const S3Scheme = "s3://"

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// BaseEndpoint points the client at an S3-compatible service instead of AWS.
	BaseEndpoint string
	UsePathStyle bool
	// PublicBaseURL is where uploaded objects are served from.
	PublicBaseURL string
}

type S3Uploader struct { // implements Uploader
	client        ObjectPutter
	publicBaseURL string
}

func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if opts.PublicBaseURL == "" {
		return nil, mperr.InvalidArgumentf("media.s3.public_base_url is required for s3 media endpoints")
	}

	region := opts.Region
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return NewS3UploaderWithClient(client, opts.PublicBaseURL), nil
}

func NewS3UploaderWithClient(client ObjectPutter, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload stores the file under a content-addressed key. The token is unused;
// the bucket is reached with the configured credentials.
func (u *S3Uploader) Upload(ctx context.Context, endpoint, _ string, filePath string) (string, error) {
	bucket, prefix, err := ParseS3Endpoint(endpoint)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", mperr.FileNotFound(filePath)
	}
	if err != nil {
		return "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot read media file").WithMeta("path", filePath)
	}

	key := ObjectKey(prefix, filePath, util.ContentHash(data))
	contentType := DetectContentType(filePath)

	mediaLogger.Debug().Str("bucket", bucket).Str("key", key).Str("content_type", contentType).Msg("Uploading media to S3")

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", mperr.WrapWithCode(err, mperr.CodeUpload, "upload of "+filepath.Base(filePath)+" to s3 failed").
			WithMeta("path", filePath).
			WithMeta("bucket", bucket)
	}

	location := u.publicBaseURL + "/" + key
	mediaLogger.Info().Str("path", filePath).Str("url", location).Msg("Media uploaded")
	return location, nil
}

// ParseS3Endpoint splits s3://bucket/prefix into its parts.
func ParseS3Endpoint(endpoint string) (bucket, prefix string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", mperr.Uploadf("invalid s3 media endpoint %q", endpoint).WithMeta("endpoint", endpoint)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// ObjectKey names an object by a prefix of its content hash, so re-uploading
// the same file overwrites the same object.
func ObjectKey(prefix, filePath, contentHash string) string {
	name := contentHash[:16] + strings.ToLower(filepath.Ext(filePath))
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
