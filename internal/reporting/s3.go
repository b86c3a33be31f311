package reporting

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/observability"
)

// Uploader copies report files to an S3 compatible object store.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Entry
}

// NewUploader builds an S3 client from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewUploader(ctx context.Context, cfg config.S3Config, log *logger.Log) (*Uploader, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 archive is disabled")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		// Checksums only where the operation requires them.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log.WithComponent("s3_uploader"),
	}, nil
}

// Key returns the object key of name within run.
func (u *Uploader) Key(runID, name string) string {
	return path.Join(u.prefix, runID, name)
}

// Upload puts data under key.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	observability.RecordUpload(err)
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	u.log.WithFields(logger.Fields{"s3_key": key, "bytes": len(data)}).Info("object uploaded")
	return nil
}

// UploadFiles uploads local files under the run prefix and returns their keys.
func (u *Uploader) UploadFiles(ctx context.Context, runID string, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return keys, err
		}
		key := u.Key(runID, filepath.Base(p))
		if err := u.Upload(ctx, key, data); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
