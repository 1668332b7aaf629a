// Package msgraph contains the Microsoft Graph connectors: OneDrive,
// SharePoint document libraries and Graph change-notification webhooks. All
// of them authenticate with an Entra app registration through the OAuth2
// client-credentials flow.
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/elsai-io/elsai-go/pkg/config"
)

const graphAPIBaseURL = "https://graph.microsoft.com/v1.0"

// Credentials holds the Entra app registration. Empty fields fall back to
// TENANT_ID, CLIENT_ID and CLIENT_SECRET.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

func (c *Credentials) resolve() error {
	c.TenantID = config.FirstNonEmpty(c.TenantID, os.Getenv("TENANT_ID"))
	c.ClientID = config.FirstNonEmpty(c.ClientID, os.Getenv("CLIENT_ID"))
	c.ClientSecret = config.FirstNonEmpty(c.ClientSecret, os.Getenv("CLIENT_SECRET"))

	var missing [][2]string
	if c.TenantID == "" {
		missing = append(missing, [2]string{"tenant_id", "TENANT_ID"})
	}
	if c.ClientID == "" {
		missing = append(missing, [2]string{"client_id", "CLIENT_ID"})
	}
	if c.ClientSecret == "" {
		missing = append(missing, [2]string{"client_secret", "CLIENT_SECRET"})
	}
	if len(missing) > 0 {
		return config.MissingError(missing...)
	}
	return nil
}

// Client is a thin Graph REST client shared by the Graph-backed connectors.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Graph client that acquires app-only tokens via the
// client-credentials flow.
func NewClient(ctx context.Context, creds Credentials) (*Client, error) {
	if err := creds.resolve(); err != nil {
		return nil, err
	}

	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", creds.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}

	return &Client{
		httpClient: cc.Client(ctx),
		baseURL:    graphAPIBaseURL,
	}, nil
}

// NewClientWithToken creates a Graph client around a static access token.
// Useful when the token is managed elsewhere.
func NewClientWithToken(ctx context.Context, accessToken string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return &Client{
		httpClient: oauth2.NewClient(ctx, src),
		baseURL:    graphAPIBaseURL,
	}
}

// do performs a Graph request, decoding a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API error: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) patchJSON(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(data), "application/json", out)
}

// download streams a Graph content endpoint to w.
func (c *Client) download(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API error: GET %s returned %d: %s", path, resp.StatusCode, string(data))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to stream download: %w", err)
	}
	return nil
}

// DriveItem represents a file or folder in OneDrive or SharePoint.
type DriveItem struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Size             int64       `json:"size"`
	WebURL           string      `json:"webUrl"`
	File             *FileInfo   `json:"file,omitempty"`
	Folder           *FolderInfo `json:"folder,omitempty"`
	DownloadURL      string      `json:"@microsoft.graph.downloadUrl,omitempty"`
	LastModifiedTime string      `json:"lastModifiedDateTime,omitempty"`
}

// FileInfo contains file-specific metadata.
type FileInfo struct {
	MimeType string `json:"mimeType"`
}

// FolderInfo contains folder-specific metadata.
type FolderInfo struct {
	ChildCount int `json:"childCount"`
}

type driveItemsResponse struct {
	Value    []DriveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink,omitempty"`
}
