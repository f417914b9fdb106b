package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/match"
	"github.com/ironsheep/puzzle-match/internal/metrics"
)

// ErrHistoryDisabled is returned by puzzle_history when no store is attached.
var ErrHistoryDisabled = errors.New("history is disabled")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "puzzle_match").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

type progressTokenKey struct{}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if params.Meta != nil && params.Meta.ProgressToken != nil {
		ctx = context.WithValue(ctx, progressTokenKey{}, params.Meta.ProgressToken)
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image information
	case "puzzle_load":
		return s.handleLoad(args)
	case "puzzle_dimensions":
		return s.handleDimensions(args)
	case "puzzle_dominant_colors":
		return s.handleDominantColors(args)

	// Matching
	case "puzzle_scale_candidates":
		return s.handleScaleCandidates(args)
	case "puzzle_match":
		return s.handleMatch(ctx, args)
	case "puzzle_scan":
		return s.handleScan(ctx, args)
	case "puzzle_crop_match":
		return s.handleCropMatch(args)

	// Analysis
	case "puzzle_metrics":
		return s.handleMetrics(args)
	case "puzzle_history":
		return s.handleHistory(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func requirePath(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// === Image Information Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("path", a.Path); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("path", a.Path); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type dominantColorsArgs struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

func (s *Server) handleDominantColors(args json.RawMessage) (interface{}, error) {
	var a dominantColorsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("path", a.Path); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.DominantColors(img, a.Count)
}

// === Matching Handlers ===

type pairArgs struct {
	Puzzle string `json:"puzzle"`
	Piece  string `json:"piece"`
}

func (a pairArgs) validate() error {
	if err := requirePath("puzzle", a.Puzzle); err != nil {
		return err
	}
	return requirePath("piece", a.Piece)
}

type scaleCandidatesArgs struct {
	pairArgs
	ExpectedPieces int `json:"expected_pieces"`
}

type scaleCandidatesResult struct {
	PuzzleWidth  int       `json:"puzzle_width"`
	PuzzleHeight int       `json:"puzzle_height"`
	PieceWidth   int       `json:"piece_width"`
	PieceHeight  int       `json:"piece_height"`
	Scales       []float64 `json:"scales"`
}

func (s *Server) handleScaleCandidates(args json.RawMessage) (interface{}, error) {
	var a scaleCandidatesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	puzzle, piece, err := s.loadPair(a.pairArgs)
	if err != nil {
		return nil, err
	}
	return &scaleCandidatesResult{
		PuzzleWidth:  puzzle.Width(),
		PuzzleHeight: puzzle.Height(),
		PieceWidth:   piece.Width(),
		PieceHeight:  piece.Height(),
		Scales:       match.ScaleCandidates(puzzle.Width(), puzzle.Height(), piece.Width(), piece.Height(), a.ExpectedPieces),
	}, nil
}

type matchArgs struct {
	Puzzle         string   `json:"puzzle"`
	Piece          string   `json:"piece"`
	Pieces         []string `json:"pieces"`
	ExpectedPieces int      `json:"expected_pieces"`
	Downscale      *bool    `json:"downscale"`
	UseGPU         *bool    `json:"use_gpu"`
	Metric         string   `json:"metric"`
	MaxCoarseDim   int      `json:"max_coarse_dim"`
	RefineRadius   int      `json:"refine_radius"`
}

// options overlays the call arguments on the server defaults.
func (a matchArgs) options(defaults match.Options) (match.Options, error) {
	opts := defaults
	opts.ExpectedPieces = a.ExpectedPieces
	if a.Downscale != nil {
		opts.Downscale = *a.Downscale
	}
	if a.UseGPU != nil {
		opts.UseGPU = *a.UseGPU
	}
	if a.Metric != "" {
		m, err := match.ParseMetric(a.Metric)
		if err != nil {
			return opts, err
		}
		opts.Metric = m
	}
	if a.MaxCoarseDim > 0 {
		opts.MaxCoarseDim = a.MaxCoarseDim
	}
	if a.RefineRadius > 0 {
		opts.RefineRadius = a.RefineRadius
	}
	return opts, nil
}

func (s *Server) handleMatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a matchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("puzzle", a.Puzzle); err != nil {
		return nil, err
	}
	pieces := a.Pieces
	if a.Piece != "" {
		pieces = append([]string{a.Piece}, pieces...)
	}
	if len(pieces) == 0 {
		return nil, errors.New("piece or pieces is required")
	}
	opts, err := a.options(s.matchOpts)
	if err != nil {
		return nil, err
	}
	return s.runner.Match(ctx, a.Puzzle, pieces, opts)
}

type scanArgs struct {
	pairArgs
	Stride int `json:"stride"`
}

func (s *Server) handleScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a scanArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.Stride <= 0 {
		a.Stride = s.scanStride
	}
	return s.runner.Scan(ctx, a.Puzzle, a.Piece, a.Stride, s.scanProgress(ctx))
}

// scanProgressSteps is how many progress notifications a scan emits at most.
const scanProgressSteps = 20

// scanProgress returns a callback that forwards scan rows as MCP progress
// notifications, or nil when the caller sent no progress token.
func (s *Server) scanProgress(ctx context.Context) match.ProgressFunc {
	token := ctx.Value(progressTokenKey{})
	if token == nil || s.emit == nil {
		return nil
	}
	next := 0
	return func(row, total int) {
		if row < next {
			return
		}
		next = row + max(1, total/scanProgressSteps)
		s.emit(MCPNotification{
			JSONRPC: "2.0",
			Method:  "notifications/progress",
			Params: map[string]interface{}{
				"progressToken": token,
				"progress":      row,
				"total":         total,
			},
		})
	}
}

type cropMatchArgs struct {
	Puzzle  string  `json:"puzzle"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Padding int     `json:"padding"`
	Scale   float64 `json:"scale"`
}

// handleCropMatch returns the matched region of the puzzle, grown by padding
// on every side and clipped to the puzzle.
func (s *Server) handleCropMatch(args json.RawMessage) (interface{}, error) {
	var a cropMatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath("puzzle", a.Puzzle); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive, got %dx%d", a.Width, a.Height)
	}
	if a.Padding < 0 {
		return nil, fmt.Errorf("padding must not be negative, got %d", a.Padding)
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Puzzle)
	if err != nil {
		return nil, err
	}

	x0 := max(0, a.X-a.Padding)
	y0 := max(0, a.Y-a.Padding)
	x1 := min(img.Width(), a.X+a.Width+a.Padding)
	y1 := min(img.Height(), a.Y+a.Height+a.Padding)
	if x1 <= x0 || y1 <= y0 {
		return nil, fmt.Errorf("region (%d,%d) %dx%d lies outside the %dx%d puzzle",
			a.X, a.Y, a.Width, a.Height, img.Width(), img.Height())
	}
	return imaging.CropRegion(img, x0, y0, x1-x0, y1-y0, a.Scale)
}

// === Analysis Handlers ===

type metricsArgs struct {
	pairArgs
	WidthCm    float64 `json:"width_cm"`
	HeightCm   float64 `json:"height_cm"`
	GlobalDiff bool    `json:"global_diff"`
}

type metricsResult struct {
	*metrics.Report
	GlobalMeanAbsDiff *float64 `json:"global_mean_abs_diff,omitempty"`
	GlobalSimilarity  *float64 `json:"global_similarity,omitempty"`
}

func (s *Server) handleMetrics(args json.RawMessage) (interface{}, error) {
	var a metricsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	puzzle, piece, err := s.loadPair(a.pairArgs)
	if err != nil {
		return nil, err
	}
	rep, err := metrics.Basic(puzzle, piece, a.WidthCm, a.HeightCm)
	if err != nil {
		return nil, err
	}
	res := &metricsResult{Report: rep}
	if a.GlobalDiff {
		mad, sim, err := metrics.GlobalDiff(puzzle, piece)
		if err != nil {
			return nil, err
		}
		res.GlobalMeanAbsDiff, res.GlobalSimilarity = &mad, &sim
	}
	return res, nil
}

type historyArgs struct {
	RunID string `json:"run_id"`
	Limit int    `json:"limit"`
}

func (s *Server) handleHistory(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	var a historyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.RunID == "" {
		if a.Limit == 0 {
			a.Limit = 20
		}
		runs, err := s.history.ListRuns(ctx, a.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"runs": runs}, nil
	}

	run, err := s.history.GetRun(ctx, a.RunID)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.history.Outcomes(ctx, a.RunID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"run": run, "outcomes": outcomes}, nil
}

func (s *Server) loadPair(a pairArgs) (*imaging.Raster, *imaging.Raster, error) {
	puzzle, err := s.cache.Load(a.Puzzle)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load puzzle: %w", err)
	}
	piece, err := s.cache.Load(a.Piece)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load piece: %w", err)
	}
	return puzzle, piece, nil
}
