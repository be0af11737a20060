package providers

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/mnemos/pkg/models"
)

func TestConvertLogMessages(t *testing.T) {
	msgs := []*models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "hi", Name: "alice"},
		{
			Role:    models.RoleAssistant,
			Content: "thinking",
			ToolCalls: []models.ToolCall{{
				ID: "c1", Name: "send_message", Input: []byte(`{"message":"x"}`),
			}},
		},
		{Role: models.RoleTool, Content: `{"status":"OK"}`, Name: "send_message", ToolCallID: "c1"},
	}

	converted := convertLogMessages(msgs)
	if len(converted) != 4 {
		t.Fatalf("len = %d", len(converted))
	}
	if converted[0].Role != "system" || converted[1].Name != "alice" {
		t.Fatalf("converted = %+v", converted[:2])
	}
	if len(converted[2].ToolCalls) != 1 || converted[2].ToolCalls[0].Function.Name != "send_message" {
		t.Fatalf("tool call lost: %+v", converted[2])
	}
	if converted[3].ToolCallID != "c1" {
		t.Fatalf("tool call id lost: %+v", converted[3])
	}
}

func TestConvertChatResponse(t *testing.T) {
	resp := &openai.ChatCompletionResponse{
		ID:    "resp-1",
		Model: "gpt-4",
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			FinishReason: openai.FinishReasonToolCalls,
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: "inner",
				ToolCalls: []openai.ToolCall{{
					ID:   "c1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "send_message",
						Arguments: `{"message":"hello"}`,
					},
				}},
			},
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	out := convertChatResponse(resp)
	if out.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", out.Usage)
	}
	choice := out.Choices[0]
	if choice.FinishReason != "tool_calls" {
		t.Fatalf("finish reason = %q", choice.FinishReason)
	}
	if len(choice.Message.ToolCalls) != 1 || choice.Message.ToolCalls[0].Name != "send_message" {
		t.Fatalf("tool calls = %+v", choice.Message.ToolCalls)
	}
	if string(choice.Message.ToolCalls[0].Input) != `{"message":"hello"}` {
		t.Fatalf("arguments = %s", choice.Message.ToolCalls[0].Input)
	}
}

func TestConvertChatResponseLegacyFunctionCall(t *testing.T) {
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: openai.FinishReasonFunctionCall,
			Message: openai.ChatCompletionMessage{
				Role: "assistant",
				FunctionCall: &openai.FunctionCall{
					Name:      "send_message",
					Arguments: `{}`,
				},
			},
		}},
	}
	out := convertChatResponse(resp)
	fc := out.Choices[0].Message.FunctionCall
	if fc == nil || fc.Name != "send_message" {
		t.Fatalf("function call = %+v", fc)
	}
}
