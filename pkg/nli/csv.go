// Package nli answers natural-language questions over tabular files with a
// chat model.
package nli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/extract"
	"github.com/elsai-io/elsai-go/pkg/llm"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// csvTable is one loaded file.
type csvTable struct {
	name   string
	header []string
	rows   [][]string
}

// CSVAgent answers questions about one or more CSV files.
type CSVAgent struct {
	model  llm.ChatModel
	tables []csvTable

	// SampleRows caps how many rows per table go into the prompt. Zero
	// means all rows.
	SampleRows int
	// Verbose logs the assembled prompt.
	Verbose bool
}

// NewCSVAgent loads the given CSV files.
func NewCSVAgent(model llm.ChatModel, paths ...string) (*CSVAgent, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files given")
	}

	agent := &CSVAgent{model: model, SampleRows: 50}
	for _, path := range paths {
		header, rows, err := extract.CSVRows(path)
		if err != nil {
			return nil, err
		}
		agent.tables = append(agent.tables, csvTable{
			name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			header: header,
			rows:   rows,
		})
	}
	return agent, nil
}

const csvPrompt = `You are a data analyst. Answer the question using only the tables below. If the tables cannot answer it, say so.

%s
Question: %s`

// Ask answers a question about the loaded tables.
func (a *CSVAgent) Ask(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(csvPrompt, a.renderTables(), question)

	if a.Verbose {
		log.Info().Str("prompt", prompt).Msg("csv agent prompt")
	}

	answer, err := a.model.Complete(ctx, []types.Message{
		types.NewMessage("", types.RoleUser, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return answer, nil
}

func (a *CSVAgent) renderTables() string {
	var b strings.Builder
	for _, t := range a.tables {
		fmt.Fprintf(&b, "Table %s (%d rows)\n", t.name, len(t.rows))
		b.WriteString(strings.Join(t.header, " | "))
		b.WriteString("\n")

		rows := t.rows
		if a.SampleRows > 0 && len(rows) > a.SampleRows {
			rows = rows[:a.SampleRows]
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		if len(rows) < len(t.rows) {
			fmt.Fprintf(&b, "... %d more rows omitted\n", len(t.rows)-len(rows))
		}
		b.WriteString("\n")
	}
	return b.String()
}
