// Package llm contains the chat model connectors: OpenAI, Azure OpenAI and
// AWS Bedrock. Each connector configures the upstream SDK from explicit
// arguments or environment variables and exposes the same ChatModel surface,
// so the higher-level packages (sqlchat, nli, chathistory summarization) can
// accept any provider.
package llm

import (
	"context"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// ChatModel is the provider-independent completion interface.
type ChatModel interface {
	// Complete sends the conversation to the model and returns the
	// assistant's reply text.
	Complete(ctx context.Context, messages []types.Message) (string, error)
}

// Prompt is a convenience for single-turn user prompts.
func Prompt(ctx context.Context, m ChatModel, prompt string) (string, error) {
	return m.Complete(ctx, []types.Message{{Role: types.RoleUser, Content: prompt}})
}
