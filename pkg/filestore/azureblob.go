package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// AzureBlob implements Client against Azure Blob Storage.
type AzureBlob struct {
	client *azblob.Client
}

// NewAzureBlob creates an Azure Blob connector. The connection string falls
// back to AZURE_STORAGE_CONNECTION_STRING.
func NewAzureBlob(connectionString string) (*AzureBlob, error) {
	connectionString = config.FirstNonEmpty(connectionString, os.Getenv("AZURE_STORAGE_CONNECTION_STRING"))
	if connectionString == "" {
		return nil, config.MissingError([2]string{"connection_string", "AZURE_STORAGE_CONNECTION_STRING"})
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureBlob{client: client}, nil
}

// Upload stores a local file as a blob and returns its container/name pair.
func (a *AzureBlob) Upload(ctx context.Context, container, blobName, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := a.client.UploadStream(ctx, container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("failed to upload %s to container %s: %w", localPath, container, err)
	}

	log.Info().Str("file", localPath).Str("container", container).Str("blob", blobName).Msg("uploaded blob")

	return fmt.Sprintf("%s/%s", container, blobName), nil
}

// Download fetches a blob into targetDir and returns the local path.
func (a *AzureBlob) Download(ctx context.Context, container, blobName, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	resp, err := a.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download blob %s from container %s: %w", blobName, container, err)
	}
	defer resp.Body.Close()

	localPath := filepath.Join(targetDir, filepath.Base(blobName))
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("failed to write blob to %s: %w", localPath, err)
	}

	log.Info().Str("container", container).Str("blob", blobName).Str("file", localPath).Msg("downloaded blob")

	return localPath, nil
}

// Delete removes a blob.
func (a *AzureBlob) Delete(ctx context.Context, container, blobName string) error {
	if _, err := a.client.DeleteBlob(ctx, container, blobName, nil); err != nil {
		return fmt.Errorf("failed to delete blob %s from container %s: %w", blobName, container, err)
	}

	log.Info().Str("container", container).Str("blob", blobName).Msg("deleted blob")

	return nil
}

// List returns the blobs under prefix.
func (a *AzureBlob) List(ctx context.Context, container, prefix string) ([]Item, error) {
	items := []Item{}

	var opts *azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: &prefix}
	}

	pager := a.client.NewListBlobsFlatPager(container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s: %w", container, err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			name := *blob.Name
			item := Item{
				Name: filepath.Base(name),
				Path: name,
			}
			if blob.Properties != nil && blob.Properties.ContentLength != nil {
				item.Size = *blob.Properties.ContentLength
			}
			if blob.Properties != nil && blob.Properties.LastModified != nil {
				item.Modified = blob.Properties.LastModified.Unix()
			}
			items = append(items, item)
		}
	}

	return items, nil
}
