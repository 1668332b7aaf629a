package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// SharePointConfig locates the site and document library. Empty fields fall
// back to SITE_HOSTNAME, SITE_PATH, DRIVE_NAME and DRIVE_ID.
type SharePointConfig struct {
	Credentials  Credentials
	SiteHostname string
	SitePath     string
	DriveName    string
	DriveID      string
}

// SharePoint accesses a SharePoint document library through Microsoft Graph.
type SharePoint struct {
	client  *Client
	cfg     SharePointConfig
	siteID  string
	driveID string
}

// Site represents a SharePoint site.
type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	WebURL      string `json:"webUrl"`
}

// Drive represents a document library.
type Drive struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
}

// NewSharePoint creates a SharePoint connector.
func NewSharePoint(ctx context.Context, cfg SharePointConfig) (*SharePoint, error) {
	cfg.SiteHostname = config.FirstNonEmpty(cfg.SiteHostname, os.Getenv("SITE_HOSTNAME"))
	cfg.SitePath = config.FirstNonEmpty(cfg.SitePath, os.Getenv("SITE_PATH"))
	cfg.DriveName = config.FirstNonEmpty(cfg.DriveName, os.Getenv("DRIVE_NAME"))
	cfg.DriveID = config.FirstNonEmpty(cfg.DriveID, os.Getenv("DRIVE_ID"))

	var missing [][2]string
	if cfg.SiteHostname == "" {
		missing = append(missing, [2]string{"site_hostname", "SITE_HOSTNAME"})
	}
	if cfg.SitePath == "" {
		missing = append(missing, [2]string{"site_path", "SITE_PATH"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}
	if cfg.DriveName == "" && cfg.DriveID == "" {
		return nil, config.MissingError(
			[2]string{"drive_name", "DRIVE_NAME"},
			[2]string{"drive_id", "DRIVE_ID"},
		)
	}

	client, err := NewClient(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	return &SharePoint{client: client, cfg: cfg}, nil
}

// resolveSite looks up the site ID once and caches it.
func (s *SharePoint) resolveSite(ctx context.Context) (string, error) {
	if s.siteID != "" {
		return s.siteID, nil
	}

	sitePath := strings.Trim(s.cfg.SitePath, "/")
	var site Site
	path := fmt.Sprintf("/sites/%s:/%s", s.cfg.SiteHostname, escapeDrivePath(sitePath))
	if err := s.client.getJSON(ctx, path, &site); err != nil {
		return "", fmt.Errorf("failed to resolve site %s/%s: %w", s.cfg.SiteHostname, sitePath, err)
	}

	s.siteID = site.ID
	return s.siteID, nil
}

// resolveDrive finds the configured document library, by ID when given,
// otherwise by display name.
func (s *SharePoint) resolveDrive(ctx context.Context) (string, error) {
	if s.driveID != "" {
		return s.driveID, nil
	}
	if s.cfg.DriveID != "" {
		s.driveID = s.cfg.DriveID
		return s.driveID, nil
	}

	siteID, err := s.resolveSite(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Value []Drive `json:"value"`
	}
	if err := s.client.getJSON(ctx, fmt.Sprintf("/sites/%s/drives", siteID), &resp); err != nil {
		return "", fmt.Errorf("failed to list drives: %w", err)
	}

	for _, d := range resp.Value {
		if strings.EqualFold(d.Name, s.cfg.DriveName) {
			s.driveID = d.ID
			return s.driveID, nil
		}
	}
	return "", fmt.Errorf("drive %q not found in site %s", s.cfg.DriveName, siteID)
}

// ListFolder returns the files in the named document library folder.
func (s *SharePoint) ListFolder(ctx context.Context, folderName string) ([]DriveItem, error) {
	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/drives/%s/root/children", driveID)
	if folderName != "" && folderName != "/" {
		path = fmt.Sprintf("/drives/%s/root:/%s:/children", driveID, escapeDrivePath(strings.Trim(folderName, "/")))
	}

	var items []DriveItem
	for path != "" {
		var page driveItemsResponse
		if err := s.client.getJSON(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("failed to list SharePoint folder %s: %w", folderName, err)
		}
		items = append(items, page.Value...)
		if page.NextLink == "" {
			break
		}
		path = strings.TrimPrefix(page.NextLink, s.client.baseURL)
	}

	// Folders are not files; callers want downloadable items only.
	files := items[:0]
	for _, item := range items {
		if item.Folder == nil {
			files = append(files, item)
		}
	}

	log.Debug().Str("folder", folderName).Int("files", len(files)).Msg("listed SharePoint folder")

	return files, nil
}

// Download fetches a file by ID into targetDir and returns the local path.
func (s *SharePoint) Download(ctx context.Context, fileID, targetDir string) (string, error) {
	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return "", err
	}

	var item DriveItem
	if err := s.client.getJSON(ctx, fmt.Sprintf("/drives/%s/items/%s", driveID, fileID), &item); err != nil {
		return "", fmt.Errorf("failed to get SharePoint item %s: %w", fileID, err)
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

	if err := s.client.download(ctx, fmt.Sprintf("/drives/%s/items/%s/content", driveID, fileID), f); err != nil {
		return "", err
	}

	log.Info().Str("file_id", fileID).Str("file", localPath).Msg("downloaded file from SharePoint")

	return localPath, nil
}

// Upload puts a local file into the document library under targetFolder and
// returns the new item's ID.
func (s *SharePoint) Upload(ctx context.Context, localPath, targetFolder string) (string, error) {
	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	itemPath := url.PathEscape(filepath.Base(localPath))
	if targetFolder != "" && targetFolder != "/" {
		itemPath = escapeDrivePath(strings.Trim(targetFolder, "/")) + "/" + itemPath
	}

	var item DriveItem
	path := fmt.Sprintf("/drives/%s/root:/%s:/content", driveID, itemPath)
	if err := s.client.do(ctx, "PUT", path, f, "application/octet-stream", &item); err != nil {
		return "", fmt.Errorf("failed to upload %s to SharePoint: %w", localPath, err)
	}

	log.Info().Str("file", localPath).Str("item_id", item.ID).Msg("uploaded file to SharePoint")

	return item.ID, nil
}
