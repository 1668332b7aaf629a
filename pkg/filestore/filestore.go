// Package filestore contains the cloud object storage connectors: AWS S3 and
// Azure Blob Storage.
package filestore

import "context"

// Item describes a stored object.
type Item struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

// Client is the common surface of the storage connectors.
type Client interface {
	// Upload stores the local file under key and returns the object URI.
	Upload(ctx context.Context, container, key, localPath string) (string, error)
	// Download fetches the object into the target directory and returns the
	// local path.
	Download(ctx context.Context, container, key, targetDir string) (string, error)
	// Delete removes the object.
	Delete(ctx context.Context, container, key string) error
	// List returns objects under the prefix.
	List(ctx context.Context, container, prefix string) ([]Item, error)
}
