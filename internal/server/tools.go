package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

var (
	puzzleProp = stringProp("Absolute path to the full puzzle image")
	pieceProp  = stringProp("Absolute path to the piece image")
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "puzzle_load",
			Description: "Load an image file into the cache and return its dimensions, format and channel count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "puzzle_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "puzzle_dominant_colors",
			Description: "Extract the most common colors of an image, quantized to steps of 16.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colors to return. Default 5",
						"default":     5,
					},
				},
				"required": []string{"path"},
			},
		},

		// Matching
		{
			Name:        "puzzle_scale_candidates",
			Description: "List the piece scale factors the matcher would try. With expected_pieces the piece is assumed to cover 1/N of the puzzle area; otherwise a fixed ladder is used.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"puzzle":          puzzleProp,
					"piece":           pieceProp,
					"expected_pieces": intProp("Total piece count of the puzzle, if known"),
				},
				"required": []string{"puzzle", "piece"},
			},
		},
		{
			Name:        "puzzle_match",
			Description: "Locate one or more pieces inside the puzzle with a coarse-to-fine multi-scale search. Returns position, scale and similarity (0-1) per piece. Pieces are matched independently and in order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"puzzle": puzzleProp,
					"piece":  pieceProp,
					"pieces": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Additional piece image paths",
					},
					"expected_pieces": intProp("Total piece count of the puzzle, if known"),
					"downscale": map[string]interface{}{
						"type":        "boolean",
						"description": "Reduce large puzzles for the coarse search. Default from configuration",
					},
					"use_gpu": map[string]interface{}{
						"type":        "boolean",
						"description": "Try the GPU for the coarse search; falls back to the CPU",
					},
					"metric": map[string]interface{}{
						"type":        "string",
						"description": "Coarse score",
						"enum":        []string{"SQDIFF_NORMED", "CCORR_NORMED", "SQDIFF", "CCOEFF_NORMED"},
					},
					"max_coarse_dim": intProp("Long-side size of the reduced puzzle in pixels"),
					"refine_radius":  intProp("Refinement radius in reduced pixels"),
				},
				"required": []string{"puzzle"},
			},
		},
		{
			Name:        "puzzle_scan",
			Description: "Brute-force scan of the piece over the puzzle at a fixed stride, scoring mean absolute RGB difference. No scale search. Sends progress notifications when the call carries a progress token.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"puzzle": puzzleProp,
					"piece":  pieceProp,
					"stride": map[string]interface{}{
						"type":        "integer",
						"description": "Step between evaluated offsets. Default from configuration (4)",
						"default":     4,
					},
				},
				"required": []string{"puzzle", "piece"},
			},
		},
		{
			Name:        "puzzle_crop_match",
			Description: "Crop the matched region from the puzzle and return it as base64-encoded PNG, optionally padded and scaled, to inspect a placement.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"puzzle":  puzzleProp,
					"x":       intProp("Left edge of the match (0-based)"),
					"y":       intProp("Top edge of the match (0-based)"),
					"width":   intProp("Width of the match"),
					"height":  intProp("Height of the match"),
					"padding": intProp("Extra pixels of context on every side. Default 0"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"puzzle", "x", "y", "width", "height"},
			},
		},

		// Analysis
		{
			Name:        "puzzle_metrics",
			Description: "Compare puzzle and piece: areas and ratio, dominant colors and their distance, and the physical scale when the real puzzle size is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"puzzle": puzzleProp,
					"piece":  pieceProp,
					"width_cm": map[string]interface{}{
						"type":        "number",
						"description": "Real puzzle width in centimetres",
					},
					"height_cm": map[string]interface{}{
						"type":        "number",
						"description": "Real puzzle height in centimetres",
					},
					"global_diff": map[string]interface{}{
						"type":        "boolean",
						"description": "Also stretch the piece to the puzzle size and report the mean absolute difference",
						"default":     false,
					},
				},
				"required": []string{"puzzle", "piece"},
			},
		},
		{
			Name:        "puzzle_history",
			Description: "List recent match runs, or the per-piece outcomes of one run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": stringProp("Run to show in full"),
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Number of runs to list. Default 20",
						"default":     20,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
