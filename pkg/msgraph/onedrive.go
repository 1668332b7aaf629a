package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// OneDrive accesses users' OneDrive files through Microsoft Graph.
type OneDrive struct {
	client *Client
}

// NewOneDrive creates a OneDrive connector.
func NewOneDrive(ctx context.Context, creds Credentials) (*OneDrive, error) {
	client, err := NewClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &OneDrive{client: client}, nil
}

// GetUserID resolves a user's object ID from their email address.
func (o *OneDrive) GetUserID(ctx context.Context, email string) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := o.client.getJSON(ctx, "/users/"+url.PathEscape(email), &user); err != nil {
		return "", fmt.Errorf("failed to resolve user %s: %w", email, err)
	}
	return user.ID, nil
}

// Upload puts a local file into the user's OneDrive, optionally under
// folderPath, and returns the new item's ID.
func (o *OneDrive) Upload(ctx context.Context, email, localPath, folderPath string) (string, error) {
	userID, err := o.GetUserID(ctx, email)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	itemPath := name
	if folderPath != "" {
		itemPath = strings.Trim(folderPath, "/") + "/" + name
	}

	var item DriveItem
	path := fmt.Sprintf("/users/%s/drive/root:/%s:/content", userID, escapeDrivePath(itemPath))
	if err := o.client.do(ctx, "PUT", path, f, "application/octet-stream", &item); err != nil {
		return "", fmt.Errorf("failed to upload %s to OneDrive: %w", localPath, err)
	}

	log.Info().Str("file", localPath).Str("item_id", item.ID).Str("user", email).Msg("uploaded file to OneDrive")

	return item.ID, nil
}

// ListFolder returns the files inside the user's folder.
func (o *OneDrive) ListFolder(ctx context.Context, email, folderPath string) ([]DriveItem, error) {
	userID, err := o.GetUserID(ctx, email)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/users/%s/drive/root/children", userID)
	if folderPath != "" && folderPath != "/" {
		path = fmt.Sprintf("/users/%s/drive/root:/%s:/children", userID, escapeDrivePath(strings.Trim(folderPath, "/")))
	}

	var items []DriveItem
	for path != "" {
		var page driveItemsResponse
		if err := o.client.getJSON(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("failed to list OneDrive folder %s: %w", folderPath, err)
		}
		items = append(items, page.Value...)
		path = strings.TrimPrefix(page.NextLink, o.client.baseURL)
		if page.NextLink == "" {
			break
		}
	}

	log.Debug().Str("user", email).Str("folder", folderPath).Int("items", len(items)).Msg("listed OneDrive folder")

	return items, nil
}

// Download fetches a file by item ID into targetDir and returns the local
// path.
func (o *OneDrive) Download(ctx context.Context, email, itemID, targetDir string) (string, error) {
	userID, err := o.GetUserID(ctx, email)
	if err != nil {
		return "", err
	}

	var item DriveItem
	if err := o.client.getJSON(ctx, fmt.Sprintf("/users/%s/drive/items/%s", userID, itemID), &item); err != nil {
		return "", fmt.Errorf("failed to get OneDrive item %s: %w", itemID, err)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	localPath := filepath.Join(targetDir, item.Name)
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	if err := o.client.download(ctx, fmt.Sprintf("/users/%s/drive/items/%s/content", userID, itemID), f); err != nil {
		return "", err
	}

	log.Info().Str("item_id", itemID).Str("file", localPath).Msg("downloaded file from OneDrive")

	return localPath, nil
}

// escapeDrivePath URL-escapes each path segment while keeping slashes as
// separators.
func escapeDrivePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
