// Package ocr extracts text from scanned documents through cloud OCR
// services.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	textracttypes "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/filestore"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// TextractConfig configures the Textract extractor. Credential fields fall
// back to the standard AWS environment variables; Bucket falls back to
// S3_BUCKET and Folder to S3_FOLDER.
type TextractConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Folder          string

	// Features enables Textract analysis (TABLES, FORMS) instead of plain
	// text detection.
	Features []string

	// PollInterval between job status checks. Defaults to 3s.
	PollInterval time.Duration
}

// Textract runs asynchronous Textract jobs over documents staged in S3.
type Textract struct {
	client *textract.Client
	store  *filestore.S3
	cfg    TextractConfig
}

// NewTextract creates the extractor.
func NewTextract(ctx context.Context, cfg TextractConfig) (*Textract, error) {
	cfg.AccessKeyID = config.FirstNonEmpty(cfg.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.SecretAccessKey = config.FirstNonEmpty(cfg.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.Region = config.FirstNonEmpty(cfg.Region, os.Getenv("AWS_REGION"), "us-east-1")
	cfg.Bucket = config.FirstNonEmpty(cfg.Bucket, os.Getenv("S3_BUCKET"))
	cfg.Folder = config.FirstNonEmpty(cfg.Folder, os.Getenv("S3_FOLDER"))
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}

	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, config.MissingError(
			[2]string{"access_key", "AWS_ACCESS_KEY_ID"},
			[2]string{"secret_key", "AWS_SECRET_ACCESS_KEY"},
		)
	}
	if cfg.Bucket == "" {
		return nil, config.MissingError([2]string{"bucket", "S3_BUCKET"})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store, err := filestore.NewS3(ctx, filestore.S3Config{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &Textract{
		client: textract.NewFromConfig(awsCfg),
		store:  store,
		cfg:    cfg,
	}, nil
}

// Extract stages a local file in S3, runs Textract over it, and removes the
// staged object afterwards. It returns one document per page.
func (t *Textract) Extract(ctx context.Context, localPath string) ([]types.Document, error) {
	key := path.Join(t.cfg.Folder, uuid.NewString()+"-"+filepath.Base(localPath))
	if _, err := t.store.Upload(ctx, t.cfg.Bucket, key, localPath); err != nil {
		return nil, err
	}
	defer func() {
		if err := t.store.Delete(context.WithoutCancel(ctx), t.cfg.Bucket, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to remove staged textract object")
		}
	}()

	return t.ExtractFromS3(ctx, t.cfg.Bucket, key)
}

// ExtractFromS3 runs Textract over an object already in S3.
func (t *Textract) ExtractFromS3(ctx context.Context, bucket, key string) ([]types.Document, error) {
	location := &textracttypes.DocumentLocation{
		S3Object: &textracttypes.S3Object{
			Bucket: aws.String(bucket),
			Name:   aws.String(key),
		},
	}

	var jobID string
	if len(t.cfg.Features) > 0 {
		features := make([]textracttypes.FeatureType, len(t.cfg.Features))
		for i, f := range t.cfg.Features {
			features[i] = textracttypes.FeatureType(strings.ToUpper(f))
		}
		out, err := t.client.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
			DocumentLocation: location,
			FeatureTypes:     features,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start textract analysis: %w", err)
		}
		jobID = aws.ToString(out.JobId)
	} else {
		out, err := t.client.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
			DocumentLocation: location,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start textract text detection: %w", err)
		}
		jobID = aws.ToString(out.JobId)
	}

	log.Debug().Str("job_id", jobID).Str("key", key).Msg("started textract job")

	blocks, err := t.pollJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return blocksToDocuments(blocks, fmt.Sprintf("s3://%s/%s", bucket, key)), nil
}

// pollJob waits for the job to finish and collects all result pages.
func (t *Textract) pollJob(ctx context.Context, jobID string) ([]textracttypes.Block, error) {
	analysis := len(t.cfg.Features) > 0

	for {
		status, blocks, nextToken, err := t.getResults(ctx, jobID, nil, analysis)
		if err != nil {
			return nil, err
		}

		switch status {
		case textracttypes.JobStatusSucceeded:
			all := blocks
			for nextToken != nil {
				_, more, token, err := t.getResults(ctx, jobID, nextToken, analysis)
				if err != nil {
					return nil, err
				}
				all = append(all, more...)
				nextToken = token
			}
			return all, nil
		case textracttypes.JobStatusFailed, textracttypes.JobStatusPartialSuccess:
			return nil, fmt.Errorf("textract job %s finished with status %s", jobID, status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.cfg.PollInterval):
		}
	}
}

func (t *Textract) getResults(ctx context.Context, jobID string, nextToken *string, analysis bool) (textracttypes.JobStatus, []textracttypes.Block, *string, error) {
	if analysis {
		out, err := t.client.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: nextToken,
		})
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to get textract analysis: %w", err)
		}
		return out.JobStatus, out.Blocks, out.NextToken, nil
	}

	out, err := t.client.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
		JobId:     aws.String(jobID),
		NextToken: nextToken,
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get textract text detection: %w", err)
	}
	return out.JobStatus, out.Blocks, out.NextToken, nil
}

// blocksToDocuments joins LINE blocks into one document per page.
func blocksToDocuments(blocks []textracttypes.Block, source string) []types.Document {
	pages := map[int32][]string{}
	var order []int32
	for _, b := range blocks {
		if b.BlockType != textracttypes.BlockTypeLine || b.Text == nil {
			continue
		}
		page := int32(1)
		if b.Page != nil {
			page = *b.Page
		}
		if _, seen := pages[page]; !seen {
			order = append(order, page)
		}
		pages[page] = append(pages[page], *b.Text)
	}

	docs := make([]types.Document, 0, len(order))
	for _, page := range order {
		doc := types.NewDocument(strings.Join(pages[page], "\n"), source)
		doc.Page = int(page)
		doc.Metadata["page"] = int(page)
		docs = append(docs, doc)
	}
	return docs
}
