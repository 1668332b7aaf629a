// Package config loads service credentials from the environment. Every
// connector constructor accepts explicit values and falls back to these
// settings, so a process configured purely through environment variables
// needs no arguments at all.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// OpenAI holds credentials for the public OpenAI API.
type OpenAI struct {
	APIKey string `envconfig:"OPENAI_API_KEY"`
}

// AzureOpenAI holds credentials for an Azure OpenAI resource.
type AzureOpenAI struct {
	Endpoint     string  `envconfig:"AZURE_OPENAI_ENDPOINT"`
	APIKey       string  `envconfig:"AZURE_OPENAI_API_KEY"`
	APIVersion   string  `envconfig:"OPENAI_API_VERSION"`
	DeploymentID string  `envconfig:"AZURE_OPENAI_DEPLOYMENT_ID"`
	Temperature  float32 `envconfig:"AZURE_OPENAI_TEMPERATURE" default:"0.1"`

	EmbeddingDeployment string `envconfig:"AZURE_EMBEDDING_DEPLOYMENT_NAME"`
}

// AWS holds static AWS credentials plus the S3 staging location used by the
// Textract extractor.
type AWS struct {
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `envconfig:"AWS_SESSION_TOKEN"`
	Region          string `envconfig:"AWS_REGION"`
	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Folder        string `envconfig:"S3_FOLDER"`
}

// AzureVision holds credentials for Azure Document Intelligence and the
// Cognitive Services Read API.
type AzureVision struct {
	VisionKey       string `envconfig:"VISION_KEY"`
	VisionEndpoint  string `envconfig:"VISION_ENDPOINT"`
	SubscriptionKey string `envconfig:"AZURE_SUBSCRIPTION_KEY"`
	Endpoint        string `envconfig:"AZURE_ENDPOINT"`
}

// MSGraph holds an Entra app registration used for OneDrive, SharePoint and
// Graph webhook access.
type MSGraph struct {
	TenantID     string `envconfig:"TENANT_ID"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	SiteHostname string `envconfig:"SITE_HOSTNAME"`
	SitePath     string `envconfig:"SITE_PATH"`
	DriveName    string `envconfig:"DRIVE_NAME"`
	DriveID      string `envconfig:"DRIVE_ID"`
}

// AzureBlob holds the Azure Storage connection string.
type AzureBlob struct {
	ConnectionString string `envconfig:"AZURE_STORAGE_CONNECTION_STRING"`
}

// Elasticsearch holds Elastic Cloud credentials.
type Elasticsearch struct {
	URL    string `envconfig:"ELASTIC_SEARCH_URL"`
	APIKey string `envconfig:"ELASTIC_SEARCH_API_KEY"`
}

// Pinecone holds the Pinecone API key.
type Pinecone struct {
	APIKey string `envconfig:"PINECONE_API_KEY"`
}

// Chroma holds the Chroma server location.
type Chroma struct {
	URL string `envconfig:"CHROMA_URL" default:"http://localhost:8000"`
}

// Pezzo holds credentials for the Pezzo prompt registry.
type Pezzo struct {
	APIKey      string `envconfig:"PEZZO_API_KEY"`
	ProjectID   string `envconfig:"PEZZO_PROJECT_ID"`
	Environment string `envconfig:"PEZZO_ENVIRONMENT"`
	ServerURL   string `envconfig:"PEZZO_SERVER_URL" default:"https://api.pezzo.ai"`
}

// LlamaParse holds credentials for the LlamaParse cloud API.
type LlamaParse struct {
	APIKey  string `envconfig:"LLAMA_CLOUD_API_KEY"`
	BaseURL string `envconfig:"LLAMA_CLOUD_BASE_URL" default:"https://api.cloud.llamaindex.ai"`
}

// Database holds connection settings for the natural-language SQL connectors.
type Database struct {
	Name     string `envconfig:"DB_NAME"`
	URL      string `envconfig:"DB_URL"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
}

// Tika holds the Apache Tika server location for the fallback extractor.
type Tika struct {
	URL string `envconfig:"TIKA_URL" default:"http://localhost:9998"`
}

// Config aggregates every service section.
type Config struct {
	OpenAI        OpenAI
	AzureOpenAI   AzureOpenAI
	AWS           AWS
	AzureVision   AzureVision
	MSGraph       MSGraph
	AzureBlob     AzureBlob
	Elasticsearch Elasticsearch
	Pinecone      Pinecone
	Chroma        Chroma
	Pezzo         Pezzo
	LlamaParse    LlamaParse
	Database      Database
	Tika          Tika
}

// Load reads a .env file when present and then processes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FirstNonEmpty returns the first value that is not blank. Connectors use it
// to prefer explicit arguments over environment fallbacks.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MissingError describes absent required settings, naming both the parameter
// and the environment variable that can supply it.
func MissingError(pairs ...[2]string) error {
	var missing []string
	for _, p := range pairs {
		missing = append(missing, fmt.Sprintf("%s (env var: %s)", p[0], p[1]))
	}
	return fmt.Errorf("the following required parameters are missing: %s; provide them as arguments or set the corresponding environment variables", strings.Join(missing, ", "))
}
