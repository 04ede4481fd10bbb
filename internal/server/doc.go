// Package server implements the MCP (Model Context Protocol) server for the
// decoder.
//
// This package provides a JSON-RPC 2.0 server that exposes page detection,
// merge checks and document decoding to MCP clients, so a model can inspect
// why a word was read the way it was.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Pages:
//   - ocr_load_page: Load a page and get metadata
//   - ocr_crop: Extract a rectangular region
//
// Shapes:
//   - ocr_detect_shapes: Find shapes and word groups
//   - ocr_render_shape: Render one shape with its own ink only
//   - ocr_check_merge: Probability that two shapes are one glyph
//
// Decoding:
//   - ocr_decode_image: Decode the pages of a document into words
//
// # Page Caching
//
// Pages are loaded through the recognizer's page cache, so repeated calls on
// one page read the file once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(rec, server.WithLogger(log))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
