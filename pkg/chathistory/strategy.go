package chathistory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/llm"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// Strategy reduces a session's messages to fit a context window.
type Strategy interface {
	Apply(ctx context.Context, messages []types.Message) ([]types.Message, error)
}

// TrimmingStrategy drops the oldest non-system messages once a session exceeds
// MaxMessages or MaxTokens. System messages always survive, and at least
// PreserveRecent of the newest messages are kept.
type TrimmingStrategy struct {
	MaxMessages    int
	MaxTokens      int
	PreserveRecent int
	counter        *TokenCounter
}

// NewTrimmingStrategy creates a trimmer. Zero limits disable the corresponding
// check.
func NewTrimmingStrategy(maxMessages, maxTokens int) *TrimmingStrategy {
	return &TrimmingStrategy{
		MaxMessages:    maxMessages,
		MaxTokens:      maxTokens,
		PreserveRecent: 2,
		counter:        NewTokenCounter(),
	}
}

func (s *TrimmingStrategy) Apply(_ context.Context, messages []types.Message) ([]types.Message, error) {
	var system, rest []types.Message
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	overLimit := func() bool {
		if s.MaxMessages > 0 && len(system)+len(rest) > s.MaxMessages {
			return true
		}
		if s.MaxTokens > 0 && s.counter.CountMessages(system)+s.counter.CountMessages(rest) > s.MaxTokens {
			return true
		}
		return false
	}

	trimmed := 0
	for overLimit() && len(rest) > s.PreserveRecent {
		rest = rest[1:]
		trimmed++
	}

	if trimmed > 0 {
		log.Debug().Int("trimmed", trimmed).Int("kept", len(system)+len(rest)).Msg("trimmed chat history")
	}

	return append(system, rest...), nil
}

// SummarizationStrategy incrementally condenses older messages into system
// summary messages once a session exceeds TriggerCount messages. Each summary
// carries "type": "summary" and "summary_upto" metadata recording the ID of
// the last message it covers, so a later pass only summarizes messages that
// arrived after the previous summary.
type SummarizationStrategy struct {
	TriggerCount   int
	PreserveRecent int
	model          llm.ChatModel
}

const summaryPrompt = "Summarize the following conversation concisely, keeping all facts, names and decisions that later turns may refer back to:\n\n%s"

// NewSummarizationStrategy creates a summarizer backed by a chat model.
func NewSummarizationStrategy(model llm.ChatModel, triggerCount int) *SummarizationStrategy {
	if triggerCount <= 0 {
		triggerCount = 20
	}
	return &SummarizationStrategy{
		TriggerCount:   triggerCount,
		PreserveRecent: 4,
		model:          model,
	}
}

func (s *SummarizationStrategy) Apply(ctx context.Context, messages []types.Message) ([]types.Message, error) {
	if len(messages) <= s.TriggerCount {
		return messages, nil
	}

	for i := range messages {
		if messages[i].MessageID == "" {
			messages[i].MessageID = uuid.NewString()
		}
	}

	var system, summaries, regular []types.Message
	for _, m := range messages {
		switch {
		case isSummary(m):
			summaries = append(summaries, m)
		case m.Role == types.RoleSystem:
			system = append(system, m)
		default:
			regular = append(regular, m)
		}
	}

	pending := regular
	if len(summaries) > 0 {
		pending = messagesAfter(regular, summaries[len(summaries)-1])
	}
	if len(pending) <= s.PreserveRecent {
		return messages, nil
	}

	toSummarize := pending[:len(pending)-s.PreserveRecent]
	recent := pending[len(pending)-s.PreserveRecent:]

	var transcript strings.Builder
	for _, m := range toSummarize {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	sessionID := messages[0].SessionID
	summary, err := s.model.Complete(ctx, []types.Message{
		types.NewMessage(sessionID, types.RoleUser, fmt.Sprintf(summaryPrompt, transcript.String())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize history: %w", err)
	}

	summaryMsg := types.NewMessage(sessionID, types.RoleSystem, "Conversation summary: "+summary)
	summaryMsg.Metadata["type"] = "summary"
	summaryMsg.Metadata["summary_upto"] = toSummarize[len(toSummarize)-1].MessageID
	summaryMsg.Metadata["original_message_count"] = len(toSummarize)

	log.Debug().Int("summarized", len(toSummarize)).Int("kept", len(system)+len(summaries)+1+len(recent)).Msg("summarized chat history")

	out := make([]types.Message, 0, len(system)+len(summaries)+1+len(recent))
	out = append(out, system...)
	out = append(out, summaries...)
	out = append(out, summaryMsg)
	out = append(out, recent...)
	return out, nil
}

func isSummary(m types.Message) bool {
	if m.Role != types.RoleSystem || m.Metadata == nil {
		return false
	}
	kind, _ := m.Metadata["type"].(string)
	_, hasUpto := m.Metadata["summary_upto"]
	return kind == "summary" && hasUpto
}

// messagesAfter returns the regular messages newer than the message the last
// summary covers. When the covered message is gone the whole slice is
// summarized again.
func messagesAfter(regular []types.Message, summary types.Message) []types.Message {
	upto, _ := summary.Metadata["summary_upto"].(string)
	if upto == "" {
		return regular
	}
	for i, m := range regular {
		if m.MessageID == upto {
			return regular[i+1:]
		}
	}
	return regular
}
