// Package llm is the model boundary: one chat completion per call, tool
// catalog derived from the realtor's calendar flag, no retry logic.
// Provider failures propagate and are fatal for the loop iteration that
// triggered them.
package llm

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v2"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	promptx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/prompt"
	toolx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/tool"
)

type Client struct {
	api         *openaisdk.Client
	chatModel   string
	searchModel string
}

func New(api *openaisdk.Client, chatModel, searchModel string) (*Client, error) {
	if api == nil {
		return nil, errors.New("openai client is required")
	}
	if chatModel == "" {
		return nil, errors.New("chat model is required")
	}
	if searchModel == "" {
		return nil, errors.New("search model is required")
	}
	return &Client{api: api, chatModel: chatModel, searchModel: searchModel}, nil
}

// Chat sends the ordered history plus the tool catalog and returns exactly
// one assistant turn. Tool-call arguments are kept as raw strings; the
// executor treats them as untrusted input.
func (c *Client) Chat(ctx context.Context, turns []contractx.Turn, calendarUse bool) (contractx.Turn, error) {
	res, err := c.api.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    c.chatModel,
		Messages: toMessages(turns),
		Tools:    toolx.Catalog(calendarUse),
	})
	if err != nil {
		return contractx.Turn{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(res.Choices) == 0 {
		return contractx.Turn{}, fmt.Errorf("%w: empty choices", contractx.ErrModelInvoke)
	}

	msg := res.Choices[0].Message
	calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, contractx.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return contractx.AssistantTurn(msg.Content, calls), nil
}

// Search invokes the search-oriented model with a minimal fixed system
// instruction and no tool support.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	res, err := c.api.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.searchModel,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(promptx.SearchSystemMessage()),
			openaisdk.UserMessage(query),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: search: %v", contractx.ErrModelInvoke, err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: search returned no choices", contractx.ErrModelInvoke)
	}
	return res.Choices[0].Message.Content, nil
}

// toMessages converts stored turns into the SDK's message unions.
// Assistant turns replay their tool calls so the provider can correlate
// the tool turns that follow.
func toMessages(turns []contractx.Turn) []openaisdk.ChatCompletionMessageParamUnion {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case contractx.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(t.Content))
		case contractx.RoleUser:
			msgs = append(msgs, openaisdk.UserMessage(t.Content))
		case contractx.RoleTool:
			msgs = append(msgs, openaisdk.ToolMessage(t.Content, t.ToolCallID))
		case contractx.RoleAssistant:
			msgs = append(msgs, assistantMessage(t))
		}
	}
	return msgs
}

func assistantMessage(t contractx.Turn) openaisdk.ChatCompletionMessageParamUnion {
	assistant := openaisdk.ChatCompletionAssistantMessageParam{}
	if t.Content != "" {
		assistant.Content.OfString = openaisdk.String(t.Content)
	}
	for _, call := range t.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		})
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}
