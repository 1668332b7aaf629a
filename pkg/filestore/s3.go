package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// S3Config configures the S3 connector. Credential fields fall back to the
// standard AWS environment variables.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// S3 implements Client against AWS S3.
type S3 struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3 creates an S3 connector.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	cfg.AccessKeyID = config.FirstNonEmpty(cfg.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.SecretAccessKey = config.FirstNonEmpty(cfg.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.SessionToken = config.FirstNonEmpty(cfg.SessionToken, os.Getenv("AWS_SESSION_TOKEN"))
	cfg.Region = config.FirstNonEmpty(cfg.Region, os.Getenv("AWS_REGION"), "us-east-1")

	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, config.MissingError(
			[2]string{"access_key", "AWS_ACCESS_KEY_ID"},
			[2]string{"secret_key", "AWS_SECRET_ACCESS_KEY"},
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

// Upload stores a local file under key in the bucket and returns its s3://
// URI.
func (s *S3) Upload(ctx context.Context, bucket, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", bucket, key)
	log.Info().Str("file", localPath).Str("uri", uri).Msg("uploaded file to S3")

	return uri, nil
}

// Download fetches the object into targetDir, preserving the key's base name.
func (s *S3) Download(ctx context.Context, bucket, key, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	localPath := filepath.Join(targetDir, filepath.Base(key))
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	log.Info().Str("uri", fmt.Sprintf("s3://%s/%s", bucket, key)).Str("file", localPath).Msg("downloaded file from S3")

	return localPath, nil
}

// Delete removes the object.
func (s *S3) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", bucket, key, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("deleted file from S3")

	return nil
}

// List returns the objects under prefix.
func (s *S3) List(ctx context.Context, bucket, prefix string) ([]Item, error) {
	items := []Item{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			item := Item{
				Name: filepath.Base(aws.ToString(obj.Key)),
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				item.Modified = obj.LastModified.Unix()
			}
			items = append(items, item)
		}
	}

	return items, nil
}
