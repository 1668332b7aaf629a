// Package prompts fetches managed prompt deployments from Pezzo.
package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// ErrPromptNotFound is returned when no deployment exists for the prompt in
// the requested environment.
var ErrPromptNotFound = errors.New("prompt not found")

// PezzoConfig locates the Pezzo server and project. Empty fields fall back to
// PEZZO_API_KEY, PEZZO_PROJECT_ID and PEZZO_SERVER_URL.
type PezzoConfig struct {
	APIKey    string
	ProjectID string
	ServerURL string
	// Environment falls back to PEZZO_ENVIRONMENT, then Production.
	Environment string
}

// Pezzo fetches prompt deployments.
type Pezzo struct {
	cfg        PezzoConfig
	httpClient *http.Client
}

// Prompt is a deployed prompt version.
type Prompt struct {
	PromptID string                 `json:"promptId"`
	Content  string                 `json:"content"`
	Settings map[string]interface{} `json:"settings"`
}

type pezzoDeployment struct {
	PromptID string `json:"promptId"`
	Type     string `json:"type"`
	Content  struct {
		Prompt string `json:"prompt"`
	} `json:"content"`
	Settings map[string]interface{} `json:"settings"`
}

// NewPezzo creates a prompt client.
func NewPezzo(cfg PezzoConfig) (*Pezzo, error) {
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("PEZZO_API_KEY"))
	cfg.ProjectID = config.FirstNonEmpty(cfg.ProjectID, os.Getenv("PEZZO_PROJECT_ID"))
	cfg.ServerURL = config.FirstNonEmpty(cfg.ServerURL, os.Getenv("PEZZO_SERVER_URL"), "https://api.pezzo.ai")
	cfg.Environment = config.FirstNonEmpty(cfg.Environment, os.Getenv("PEZZO_ENVIRONMENT"), "Production")

	var missing [][2]string
	if cfg.APIKey == "" {
		missing = append(missing, [2]string{"api_key", "PEZZO_API_KEY"})
	}
	if cfg.ProjectID == "" {
		missing = append(missing, [2]string{"project_id", "PEZZO_PROJECT_ID"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &Pezzo{cfg: cfg, httpClient: retryClient.StandardClient()}, nil
}

// GetPrompt fetches the deployed version of a prompt by name.
func (p *Pezzo) GetPrompt(ctx context.Context, name string) (*Prompt, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("environmentName", p.cfg.Environment)

	reqURL := p.cfg.ServerURL + "/api/prompts/v2/deployment?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-pezzo-api-key", p.cfg.APIKey)
	req.Header.Set("x-pezzo-project-id", p.cfg.ProjectID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pezzo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("prompt %s in environment %s: %w", name, p.cfg.Environment, ErrPromptNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("pezzo returned %d: %s", resp.StatusCode, string(body))
	}

	var deployment pezzoDeployment
	if err := json.NewDecoder(resp.Body).Decode(&deployment); err != nil {
		return nil, fmt.Errorf("failed to decode pezzo response: %w", err)
	}

	log.Debug().Str("prompt", name).Str("environment", p.cfg.Environment).Msg("fetched pezzo prompt")

	return &Prompt{
		PromptID: deployment.PromptID,
		Content:  deployment.Content.Prompt,
		Settings: deployment.Settings,
	}, nil
}

// Render substitutes {variable} placeholders in the prompt content.
func (pr *Prompt) Render(vars map[string]string) string {
	out := pr.Content
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
