package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// SummaryPromptSystem instructs the summarizer call. It runs as a plain
// completion with no tools attached.
const SummaryPromptSystem = `Your job is to summarize a history of previous messages in a conversation between an AI persona and a human.
The conversation you are given is a from a fixed context window and may not be complete.
Messages sent by the AI are marked with the 'assistant' role.
The AI 'assistant' can also make calls to functions, whose outputs can be seen in messages with the 'tool' role.
Things the AI says in the message content are considered inner monologue and are not seen by the user.
The only AI messages seen by the user are from when the AI uses 'send_message'.
Messages the user sends are in the 'user' role.
The 'user' role is also used for important system events, such as login events and heartbeat events (heartbeats run the AI's program without user action, allowing the AI to act without prompting from the user sending them a message).
Summarize what happened in the conversation from the perspective of the AI (use the first person).
Keep your summary less than 100 words, do NOT exceed this word limit.
Only output the summary, do NOT include anything else in your output.`

// SummaryRequestAck is the scripted assistant acknowledgement inserted
// between the summarizer prompt and the transcript, anchoring the reply
// format.
const SummaryRequestAck = "Understood, I will respond with a summary of the message (and only the summary, nothing else) once I receive the conversation history. I'm ready."

// RecursiveTruncScale shrinks the pre-summarization cutoff when the slice
// itself is too large for one summarizer call.
const RecursiveTruncScale = 0.8

// Summarizer produces conversation summaries through the LLM.
type Summarizer struct {
	llm     agent.ChatService
	counter TokenCounter
}

// NewSummarizer builds a Summarizer using counter for overflow detection.
func NewSummarizer(llm agent.ChatService, counter TokenCounter) *Summarizer {
	if counter == nil {
		counter = EstimateTokens
	}
	return &Summarizer{llm: llm, counter: counter}
}

// Summarize condenses msgs into a short first-person summary. When the
// flattened slice would itself exceed the warning fraction of the context
// window, its prefix is recursively pre-summarized at a cutoff scaled by
// RecursiveTruncScale before the final call.
func (s *Summarizer) Summarize(ctx context.Context, model string, contextWindow int, msgs []*models.Message) (string, error) {
	input := FormatMessagesForSummary(msgs)
	inputTokens := s.counter(input)

	if budget := MessageSummaryWarningFrac * float64(contextWindow); float64(inputTokens) > budget {
		truncRatio := budget / float64(inputTokens) * RecursiveTruncScale
		cutoff := int(float64(len(msgs)) * truncRatio)
		if cutoff > 0 && cutoff < len(msgs) {
			prefixSummary, err := s.Summarize(ctx, model, contextWindow, msgs[:cutoff])
			if err != nil {
				return "", err
			}
			condensed := append([]*models.Message{summaryAsMessage(prefixSummary)}, msgs[cutoff:]...)
			input = FormatMessagesForSummary(condensed)
		}
	}

	req := &agent.ChatRequest{
		Model: model,
		Messages: []*models.Message{
			promptMessage(models.RoleSystem, SummaryPromptSystem),
			promptMessage(models.RoleAssistant, SummaryRequestAck),
			promptMessage(models.RoleUser, input),
		},
	}
	resp, err := s.llm.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarizer call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarizer call returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func summaryAsMessage(summary string) *models.Message {
	return promptMessage(models.RoleSystem, "Summary of earlier messages: "+summary)
}

func promptMessage(role models.Role, content string) *models.Message {
	return &models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
