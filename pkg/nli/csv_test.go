package nli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elsai-io/elsai-go/pkg/types"
)

type echoModel struct {
	reply  string
	prompt string
}

func (m *echoModel) Complete(_ context.Context, messages []types.Message) (string, error) {
	m.prompt = messages[len(messages)-1].Content
	return m.reply, nil
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVAgentAsk(t *testing.T) {
	sales := writeCSV(t, "sales.csv", "region,total\nnorth,100\nsouth,250\n")

	model := &echoModel{reply: "The south region sold the most."}
	agent, err := NewCSVAgent(model, sales)
	require.NoError(t, err)

	answer, err := agent.Ask(context.Background(), "which region sold the most?")
	require.NoError(t, err)
	assert.Equal(t, "The south region sold the most.", answer)

	assert.Contains(t, model.prompt, "Table sales (2 rows)")
	assert.Contains(t, model.prompt, "region | total")
	assert.Contains(t, model.prompt, "south | 250")
	assert.Contains(t, model.prompt, "which region sold the most?")
}

func TestCSVAgentSampleRows(t *testing.T) {
	content := "n\n"
	for i := 0; i < 10; i++ {
		content += "row\n"
	}
	path := writeCSV(t, "big.csv", content)

	model := &echoModel{reply: "ok"}
	agent, err := NewCSVAgent(model, path)
	require.NoError(t, err)
	agent.SampleRows = 3

	_, err = agent.Ask(context.Background(), "how many rows?")
	require.NoError(t, err)
	assert.Contains(t, model.prompt, "... 7 more rows omitted")
}

func TestCSVAgentNoFiles(t *testing.T) {
	_, err := NewCSVAgent(&echoModel{})
	require.Error(t, err)
}
