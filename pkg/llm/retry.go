package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/types"
)

const (
	retries             = 3
	delayBetweenRetries = time.Second
)

// completeWithRetry performs a chat completion with retries. Auth failures
// are not retried.
func completeWithRetry(ctx context.Context, client *openai.Client, request openai.ChatCompletionRequest) (resp openai.ChatCompletionResponse, err error) {
	err = retry.Do(func() error {
		resp, err = client.CreateChatCompletion(ctx, request)
		if err != nil {
			if isUnauthorized(err) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		return nil
	},
		retry.Attempts(retries),
		retry.Delay(delayBetweenRetries),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)

	return
}

func isUnauthorized(err error) bool {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized
	}
	return false
}

// toChatMessages converts history messages into the SDK's message type.
func toChatMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
