package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the page image",
	}
}

func scaleProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Optional scale factor (e.g., 4.0 to enlarge small glyphs). Default 1.0",
		"default":     1.0,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "ocr_load_page",
			Description: "Load a page image and return its dimensions and format. The page stays cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_detect_shapes",
			Description: "Find the ink shapes on a page and group them into words, rows and paragraphs. Shape IDs index the page's shapes for ocr_render_shape and ocr_check_merge.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"document": map[string]interface{}{
						"type":        "string",
						"description": "Document name recorded on the groups. Default: the file name",
					},
					"page": map[string]interface{}{
						"type":        "integer",
						"description": "Page number recorded on the groups. Default 1",
						"default":     1,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_render_shape",
			Description: "Return one detected shape as a base64-encoded PNG, with only its own ink.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"shape": map[string]interface{}{
						"type":        "integer",
						"description": "Shape ID from ocr_detect_shapes",
					},
					"scale": scaleProperty(),
				},
				"required": []string{"path", "shape"},
			},
		},
		{
			Name:        "ocr_crop",
			Description: "Crop a rectangular region of a page and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"scale": scaleProperty(),
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "ocr_check_merge",
			Description: "Estimate the probability that two detected shapes are fragments of one glyph, and whether the merge detector would join them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"a": map[string]interface{}{
						"type":        "integer",
						"description": "Shape ID of the first fragment",
					},
					"b": map[string]interface{}{
						"type":        "integer",
						"description": "Shape ID of the second fragment",
					},
				},
				"required": []string{"path", "a", "b"},
			},
		},
		{
			Name:        "ocr_decode_image",
			Description: "Decode the pages of one document into words with the beam-search decoder. Pages are decoded in the given order by a single decoder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths to the page images, in page order",
					},
					"document": map[string]interface{}{
						"type":        "string",
						"description": "Document name. Default: the first file name",
					},
				},
				"required": []string{"paths"},
			},
		},
	}
}
