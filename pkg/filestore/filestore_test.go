package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3_MissingCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := NewS3(context.Background(), S3Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
	assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
}

func TestNewS3_EnvFallback(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "ak")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "sk")
	t.Setenv("AWS_REGION", "")

	client, err := NewS3(context.Background(), S3Config{})
	require.NoError(t, err)
	assert.NotNil(t, client.uploader)
	assert.NotNil(t, client.downloader)
}

func TestNewAzureBlob_MissingConnectionString(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "")

	_, err := NewAzureBlob("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_STORAGE_CONNECTION_STRING")
}

func TestNewAzureBlob_ParsesConnectionString(t *testing.T) {
	connStr := "DefaultEndpointsProtocol=https;AccountName=testaccount;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"

	client, err := NewAzureBlob(connStr)
	require.NoError(t, err)
	assert.NotNil(t, client.client)
}

// Both connectors satisfy the shared interface.
var (
	_ Client = (*S3)(nil)
	_ Client = (*AzureBlob)(nil)
)
