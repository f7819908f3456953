package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// generateDatasetTool returns the tool definition for generate_dataset
func generateDatasetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_dataset",
		Description: "Generate a question/answer dataset from text or files using the configured language model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Source text to generate from (mutually exclusive with paths)",
				},
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Absolute paths of text, markdown or HTML files, combined into one dataset",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Output format when output is set",
					"enum":        []string{"json", "csv", "txt"},
					"default":     "json",
				},
				"output": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to write the dataset to; omitted returns the records inline",
				},
				"include_records": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return the records in the response (default: true when output is omitted)",
				},
				"fail_on_error": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, any failed chunk fails the whole call instead of returning a partial dataset",
					"default":     false,
				},
			},
		},
	}
}

// chunkTextTool returns the tool definition for chunk_text
func chunkTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_text",
		Description: "Split text into overlapping chunks without calling the model, to preview chunking settings",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to split",
				},
				"chunk_size": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum chunk length in characters (default from configuration)",
					"minimum":     1,
				},
				"chunk_overlap": map[string]interface{}{
					"type":        "integer",
					"description": "Characters shared with the previous chunk; must be smaller than chunk_size",
					"minimum":     0,
				},
				"markdown": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also split at markdown headings",
				},
				"include_text": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, return only chunk positions and sizes",
					"default":     true,
				},
			},
			Required: []string{"text"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report run history, chunk cache statistics and whether a generation is in progress",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
