package tool

import "github.com/openai/openai-go/v2"

const (
	ToolSearchWeb     = "search_web"
	ToolSetAddress    = "set_address"
	ToolBookTime      = "book_time"
	ToolListAvailable = "list_available_times"
	ToolBookTrue      = "book_true"
	ToolStopMessages  = "stop_messages"
)

// Catalog returns the tool contracts offered to the model for one request.
// The composition depends on the realtor's calendar flag, so it must be
// rebuilt per request, never cached globally: when the calendar is in use
// the agent may book concrete times and list open slots; otherwise it only
// gets book_true, which marks the lead booked without a time.
func Catalog(calendarUse bool) []openai.ChatCompletionToolUnionParam {
	list := []openai.ChatCompletionToolUnionParam{
		searchWebTool(),
		setAddressTool(),
	}
	if calendarUse {
		list = append(list, bookTimeTool(), listAvailableTool())
	} else {
		list = append(list, bookTrueTool())
	}
	return append(list, stopMessagesTool())
}

func searchWebTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolSearchWeb,
		Description: openai.String("Call on another agent to search the web."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to be sent to the agent.",
				},
			},
			"required": []string{"query"},
		},
	})
}

func setAddressTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolSetAddress,
		Description: openai.String("Update the lead's addresses and neighberhoods."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"addresses": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"address":      map[string]any{"type": "string"},
							"neighberhood": map[string]any{"type": "string"},
						},
						"required": []string{"address"},
					},
				},
			},
			"required": []string{"addresses"},
		},
	})
}

func bookTimeTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolBookTime,
		Description: openai.String("Book a meeting time for the lead."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"booked_date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"booked_time": map[string]any{"type": "string", "description": "HH:mm"},
			},
			"required": []string{"booked_date", "booked_time"},
		},
	})
}

func listAvailableTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolListAvailable,
		Description: openai.String("List available booking times for a date."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
			},
			"required": []string{"date"},
		},
	})
}

func bookTrueTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolBookTrue,
		Description: openai.String("Mark the lead as booked without scheduling."),
		Parameters: openai.FunctionParameters{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	})
}

func stopMessagesTool() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolStopMessages,
		Description: openai.String("Cancel any scheduled follow-up messages."),
		Parameters: openai.FunctionParameters{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	})
}
