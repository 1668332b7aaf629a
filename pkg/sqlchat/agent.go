package sqlchat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/llm"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// Agent turns natural-language questions into SQL, runs them, and phrases the
// rows as an answer.
type Agent struct {
	connector *Connector
	model     llm.ChatModel

	// MaxRows caps how many result rows are handed to the model.
	MaxRows int
}

// Result carries the intermediate artifacts of one question.
type Result struct {
	Question string
	SQL      string
	Rows     []map[string]interface{}
	Answer   string
}

// NewAgent creates an agent over a connector and a chat model.
func NewAgent(connector *Connector, model llm.ChatModel) *Agent {
	return &Agent{connector: connector, model: model, MaxRows: 50}
}

const generatePrompt = `You are an expert %s analyst. Given the schema below, write a single read-only SQL query answering the question. Return only the SQL, no explanation, no markdown fences.

Schema:
%s

Question: %s`

const answerPrompt = `Answer the question using only the query results below. Be concise.

Question: %s
SQL: %s
Results (JSON): %s`

// GenerateSQL asks the model for a query answering the question.
func (a *Agent) GenerateSQL(ctx context.Context, question string) (string, error) {
	schema, err := a.connector.Schema()
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(generatePrompt, a.connector.dialect, schema, question)
	raw, err := a.model.Complete(ctx, []types.Message{
		types.NewMessage("", types.RoleUser, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}

	return stripFences(raw), nil
}

// stripFences removes markdown code fences the model may wrap the query in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// Invoke answers a question end to end.
func (a *Agent) Invoke(ctx context.Context, question string) (*Result, error) {
	query, err := a.GenerateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("question", question).Str("sql", query).Msg("generated SQL")

	rows, err := a.connector.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	limited := rows
	if a.MaxRows > 0 && len(limited) > a.MaxRows {
		limited = limited[:a.MaxRows]
	}
	rowsJSON, err := json.Marshal(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}

	answer, err := a.model.Complete(ctx, []types.Message{
		types.NewMessage("", types.RoleUser, fmt.Sprintf(answerPrompt, question, query, rowsJSON)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to phrase answer: %w", err)
	}

	return &Result{
		Question: question,
		SQL:      query,
		Rows:     rows,
		Answer:   answer,
	}, nil
}
