package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/backoff"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// Rate-limit backoff: 1s initial, doubling with jitter, capped attempts.
// Only HTTP 429 is retried here; other failures surface immediately so the
// step engine can classify them.
const rateLimitMaxRetries = 20

var rateLimitPolicy = backoff.Policy{
	Initial: time.Second,
	Max:     time.Minute,
	Factor:  2,
	Jitter:  0.5,
}

// ChatCompletion implements agent.ChatService: one blocking completion call
// carrying the assembled log and tool schemas, returning finish reason and
// usage untouched for the engine to interpret.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	if p.client == nil {
		return nil, errors.New("OpenAI API key not configured")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: convertLogMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Functions) > 0 {
		chatReq.Tools = convertTools(req.Functions)
	}

	var resp openai.ChatCompletionResponse
	var lastErr error
	for attempt := 1; attempt <= rateLimitMaxRetries; attempt++ {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			return convertChatResponse(&resp), nil
		}
		lastErr = err
		if statusCodeOf(err) != http.StatusTooManyRequests {
			perr := NewProviderError(p.Name(), req.Model, err).WithStatus(statusCodeOf(err))
			if code := errorCodeOf(err); code != "" {
				perr = perr.WithCode(code)
			}
			return nil, perr
		}
		if attempt == rateLimitMaxRetries {
			break
		}
		if err := backoff.Sleep(ctx, rateLimitPolicy, attempt); err != nil {
			return nil, err
		}
	}
	perr := NewProviderError(p.Name(), req.Model, lastErr).WithStatus(http.StatusTooManyRequests)
	return nil, perr
}

// convertLogMessages maps the persisted message log to the OpenAI wire
// format. The log's position-0 system message rides along as a regular
// system-role entry.
func convertLogMessages(messages []*models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if len(msg.ToolCalls) > 0 {
			oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				}
			}
		}
		result = append(result, oaiMsg)
	}
	return result
}

func convertChatResponse(resp *openai.ChatCompletionResponse) *agent.ChatResponse {
	out := &agent.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: agent.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, choice := range resp.Choices {
		converted := agent.ChatChoice{
			Index:        choice.Index,
			FinishReason: string(choice.FinishReason),
			Message: agent.ChatMessage{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
		}
		if choice.Message.FunctionCall != nil {
			converted.Message.FunctionCall = &agent.FunctionCall{
				Name:      choice.Message.FunctionCall.Name,
				Arguments: choice.Message.FunctionCall.Arguments,
			}
		}
		for _, tc := range choice.Message.ToolCalls {
			converted.Message.ToolCalls = append(converted.Message.ToolCalls, models.ToolCall{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: []byte(tc.Function.Arguments),
			})
		}
		out.Choices = append(out.Choices, converted)
	}
	return out
}
