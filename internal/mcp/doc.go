// Package mcp implements the Model Context Protocol (MCP) server for textfission.
//
// The MCP server exposes three tools to AI assistants:
//   - generate_dataset: Generate question/answer records from text or files
//   - chunk_text: Preview how text is split, without calling the model
//   - get_status: Report run history and chunk cache statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	textfission serve
//
// It listens on stdin for MCP protocol messages and writes responses to
// stdout. Logs go to stderr.
//
// # Tool: generate_dataset
//
//	Request:
//	{
//	  "name": "generate_dataset",
//	  "arguments": {
//	    "paths": ["/data/handbook.md"],
//	    "output": "/data/handbook.json",
//	    "format": "json"
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "6f1c0c7e-...",
//	  "statistics": {
//	    "chunks": 12,
//	    "processed": 12,
//	    "cached": 4,
//	    "failed": 0,
//	    "records": 51,
//	    "duration_ms": 18234
//	  },
//	  "output": "/data/handbook.json",
//	  "format": "json"
//	}
//
// Without output the records are returned inline. Only one generation runs
// at a time; a second call while one is in flight fails with -32002 rather
// than queueing.
//
// # Tool: chunk_text
//
//	Request:
//	{
//	  "name": "chunk_text",
//	  "arguments": {"text": "...", "chunk_size": 500, "chunk_overlap": 50}
//	}
//
//	Response:
//	{
//	  "chunk_count": 3,
//	  "chunks": [{"index": 0, "start": 0, "end": 498, "overlap": 0, "tokens": 112, "text": "..."}]
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "textfission": {
//	      "command": "/usr/local/bin/textfission",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENAI_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Tool failures are returned as *MCPError values carrying a JSON-RPC style
// code:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (model, database, cancellation)
//   - -32001: Source file not found or unreadable
//   - -32002: Generation in progress
//   - -32004: No text or paths given
//   - -32005: Chunk failures with fail_on_error set
//   - -32006: Export failed
package mcp
