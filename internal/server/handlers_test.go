package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/puzzle-match/internal/history"
	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/pipeline"
)

// createTestImageFile creates a solid test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writeTestPNG(t, img)
}

// createPuzzleFiles writes a noise puzzle and a piece cut from it at (px, py).
func createPuzzleFiles(t *testing.T, w, h, px, py, pw, ph int) (string, string) {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 5))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	return writeTestPNG(t, img), writeTestPNG(t, img.SubImage(image.Rect(px, py, px+pw, py+ph)))
}

func writeTestPNG(t *testing.T, img image.Image) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return tmpFile.Name()
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (interface{}, error) {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return s.executeTool(context.Background(), name, argsJSON)
}

func TestHandleToolsCall_Load(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	params, _ := json.Marshal(map[string]interface{}{
		"name":      "puzzle_load",
		"arguments": map[string]interface{}{"path": imgPath},
	})
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	var info imaging.ImageInfo
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &info); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if info.Width != 100 || info.Height != 80 || info.Format != "png" {
		t.Errorf("info = %+v", info)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := New(Options{})
	tests := []struct {
		name     string
		params   string
		wantCode int
	}{
		{"invalid params", `{invalid`, -32602},
		{"unknown tool", `{"name":"nonexistent_tool","arguments":{}}`, -32000},
		{"missing file", `{"name":"puzzle_load","arguments":{"path":"/nonexistent/image.png"}}`, -32000},
		{"missing argument", `{"name":"puzzle_dimensions","arguments":{}}`, -32000},
		{"no arguments", `{"name":"puzzle_scan"}`, -32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleToolsCall(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(tt.params)})
			if resp.Error == nil {
				t.Fatal("expected error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	s := New(Options{History: store})
	puzzle, piece := createPuzzleFiles(t, 120, 90, 20, 30, 24, 20)

	toolTests := []struct {
		name string
		args map[string]interface{}
	}{
		{"puzzle_load", map[string]interface{}{"path": puzzle}},
		{"puzzle_dimensions", map[string]interface{}{"path": piece}},
		{"puzzle_dominant_colors", map[string]interface{}{"path": puzzle, "count": 3}},
		{"puzzle_scale_candidates", map[string]interface{}{"puzzle": puzzle, "piece": piece}},
		{"puzzle_match", map[string]interface{}{"puzzle": puzzle, "piece": piece}},
		{"puzzle_scan", map[string]interface{}{"puzzle": puzzle, "piece": piece}},
		{"puzzle_crop_match", map[string]interface{}{"puzzle": puzzle, "x": 20, "y": 30, "width": 24, "height": 20}},
		{"puzzle_metrics", map[string]interface{}{"puzzle": puzzle, "piece": piece, "width_cm": 30}},
		{"puzzle_history", map[string]interface{}{}},
	}

	for _, tt := range toolTests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callTool(t, s, tt.name, tt.args)
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tt.name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tt.name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(Options{})
	if _, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`)); err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(Options{})
	if _, err := s.executeTool(context.Background(), "puzzle_load", json.RawMessage(`{invalid`)); err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}

func TestHandleMatch(t *testing.T) {
	s := New(Options{})
	puzzle, piece := createPuzzleFiles(t, 160, 120, 48, 36, 40, 32)

	result, err := callTool(t, s, "puzzle_match", map[string]interface{}{
		"puzzle": puzzle,
		"piece":  piece,
		"pieces": []string{"/nonexistent/piece.png"},
		"metric": "ccoeff_normed",
	})
	if err != nil {
		t.Fatalf("puzzle_match: %v", err)
	}
	batch := result.(*pipeline.BatchResult)
	if len(batch.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(batch.Results))
	}
	first := batch.Results[0]
	if first.Outcome == nil {
		t.Fatalf("piece failed: %s", first.Error)
	}
	if first.Outcome.X != 48 || first.Outcome.Y != 36 {
		t.Errorf("placement = (%d,%d), want (48,36)", first.Outcome.X, first.Outcome.Y)
	}
	if first.Outcome.Metric.String() != "CCOEFF_NORMED" {
		t.Errorf("metric = %s", first.Outcome.Metric)
	}
	if batch.Results[1].Error == "" {
		t.Error("missing piece should report an error")
	}
}

func TestHandleMatch_BadArguments(t *testing.T) {
	s := New(Options{})
	puzzle, piece := createPuzzleFiles(t, 40, 40, 0, 0, 10, 10)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"no puzzle", map[string]interface{}{"piece": piece}},
		{"no pieces", map[string]interface{}{"puzzle": puzzle}},
		{"bad metric", map[string]interface{}{"puzzle": puzzle, "piece": piece, "metric": "SIFT"}},
		{"missing puzzle file", map[string]interface{}{"puzzle": "/nonexistent.png", "piece": piece}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := callTool(t, s, "puzzle_match", tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMatchArgs_Options(t *testing.T) {
	off := false
	on := true
	a := matchArgs{ExpectedPieces: 24, Downscale: &off, UseGPU: &on, Metric: "sqdiff", MaxCoarseDim: 900}
	base := New(Options{}).matchOpts

	opts, err := a.options(base)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.ExpectedPieces != 24 || opts.Downscale || !opts.UseGPU || opts.MaxCoarseDim != 900 {
		t.Errorf("options = %+v", opts)
	}
	if opts.RefineRadius != base.RefineRadius {
		t.Errorf("RefineRadius = %d, want default %d", opts.RefineRadius, base.RefineRadius)
	}
	if opts.Metric.String() != "SQDIFF" {
		t.Errorf("Metric = %s", opts.Metric)
	}
}

func TestHandleScan_ProgressNotifications(t *testing.T) {
	s := New(Options{})
	puzzle, piece := createPuzzleFiles(t, 60, 60, 8, 16, 12, 12)

	params, _ := json.Marshal(map[string]interface{}{
		"name":      "puzzle_scan",
		"arguments": map[string]interface{}{"puzzle": puzzle, "piece": piece, "stride": 1},
		"_meta":     map[string]interface{}{"progressToken": "scan-1"},
	})
	req, _ := json.Marshal(MCPRequest{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: params})

	var out strings.Builder
	if err := s.Serve(context.Background(), strings.NewReader(string(req)+"\n"), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var notifications int
	var final *MCPResponse
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	sc.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)
	for sc.Scan() {
		var msg map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if msg["method"] == "notifications/progress" {
			notifications++
			params := msg["params"].(map[string]interface{})
			if params["progressToken"] != "scan-1" {
				t.Errorf("progressToken = %v", params["progressToken"])
			}
			continue
		}
		var resp MCPResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		final = &resp
	}

	if final == nil || final.Error != nil {
		t.Fatalf("scan response = %+v", final)
	}
	// 49 rows sampled in steps of max(1, 49/20) = 2.
	if notifications != 25 {
		t.Errorf("notifications = %d, want 25", notifications)
	}
	if s.emit != nil {
		t.Error("emit should be cleared after Serve")
	}
}

func TestHandleScan_NoTokenNoNotifications(t *testing.T) {
	s := New(Options{})
	if s.scanProgress(context.Background()) != nil {
		t.Error("expected nil progress without token")
	}
}

func TestHandleCropMatch(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 255, 255})

	tests := []struct {
		name         string
		args         map[string]interface{}
		wantW, wantH int
		wantX, wantY int
		wantErr      bool
	}{
		{"plain", map[string]interface{}{"x": 10, "y": 20, "width": 30, "height": 40}, 30, 40, 10, 20, false},
		{"padded", map[string]interface{}{"x": 10, "y": 20, "width": 30, "height": 40, "padding": 5}, 40, 50, 5, 15, false},
		{"clipped", map[string]interface{}{"x": 90, "y": 95, "width": 30, "height": 30, "padding": 2}, 12, 7, 88, 93, false},
		{"scaled", map[string]interface{}{"x": 0, "y": 0, "width": 20, "height": 10, "scale": 2.0}, 40, 20, 0, 0, false},
		{"outside", map[string]interface{}{"x": 150, "y": 150, "width": 10, "height": 10}, 0, 0, 0, 0, true},
		{"zero size", map[string]interface{}{"x": 0, "y": 0, "width": 0, "height": 10}, 0, 0, 0, 0, true},
		{"negative padding", map[string]interface{}{"x": 0, "y": 0, "width": 5, "height": 5, "padding": -1}, 0, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["puzzle"] = imgPath
			result, err := callTool(t, s, "puzzle_crop_match", tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("puzzle_crop_match: %v", err)
			}
			crop := result.(*imaging.CropResult)
			if crop.Width != tt.wantW || crop.Height != tt.wantH || crop.X != tt.wantX || crop.Y != tt.wantY {
				t.Errorf("crop = (%d,%d) %dx%d, want (%d,%d) %dx%d",
					crop.X, crop.Y, crop.Width, crop.Height, tt.wantX, tt.wantY, tt.wantW, tt.wantH)
			}
			if crop.MimeType != "image/png" || crop.ImageBase64 == "" {
				t.Errorf("unexpected encoding %q", crop.MimeType)
			}
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	s := New(Options{})
	puzzle := createTestImageFile(t, 200, 100, color.RGBA{255, 0, 0, 255})
	piece := createTestImageFile(t, 20, 10, color.RGBA{255, 0, 0, 255})

	result, err := callTool(t, s, "puzzle_metrics", map[string]interface{}{
		"puzzle": puzzle, "piece": piece, "width_cm": 50, "height_cm": 25, "global_diff": true,
	})
	if err != nil {
		t.Fatalf("puzzle_metrics: %v", err)
	}
	res := result.(*metricsResult)
	if res.AreaRatio != 0.01 {
		t.Errorf("AreaRatio = %v", res.AreaRatio)
	}
	if res.ColorDistance != 0 {
		t.Errorf("ColorDistance = %v", res.ColorDistance)
	}
	if res.Scale == nil || res.Scale.PxPerCmAvg != 4 {
		t.Errorf("Scale = %+v", res.Scale)
	}
	if res.GlobalMeanAbsDiff == nil || *res.GlobalMeanAbsDiff > 1 {
		t.Errorf("GlobalMeanAbsDiff = %v", res.GlobalMeanAbsDiff)
	}
}

func TestHandleHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := New(Options{})
		if _, err := callTool(t, s, "puzzle_history", map[string]interface{}{}); !errors.Is(err, ErrHistoryDisabled) {
			t.Fatalf("err = %v, want ErrHistoryDisabled", err)
		}
	})

	t.Run("runs and outcomes", func(t *testing.T) {
		store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("open history: %v", err)
		}
		defer store.Close()

		s := New(Options{History: store})
		puzzle, piece := createPuzzleFiles(t, 80, 60, 10, 10, 20, 16)
		result, err := callTool(t, s, "puzzle_match", map[string]interface{}{"puzzle": puzzle, "piece": piece})
		if err != nil {
			t.Fatalf("puzzle_match: %v", err)
		}
		runID := result.(*pipeline.BatchResult).RunID
		if runID == "" {
			t.Fatal("expected run ID")
		}

		listed, err := callTool(t, s, "puzzle_history", map[string]interface{}{"limit": 5})
		if err != nil {
			t.Fatalf("puzzle_history: %v", err)
		}
		runs := listed.(map[string]interface{})["runs"].([]history.RunSummary)
		if len(runs) != 1 || runs[0].ID != runID || runs[0].Pieces != 1 {
			t.Fatalf("runs = %+v", runs)
		}

		detail, err := callTool(t, s, "puzzle_history", map[string]interface{}{"run_id": runID})
		if err != nil {
			t.Fatalf("puzzle_history run: %v", err)
		}
		outcomes := detail.(map[string]interface{})["outcomes"].([]history.Outcome)
		if len(outcomes) != 1 || outcomes[0].X != 10 || outcomes[0].Y != 10 {
			t.Fatalf("outcomes = %+v", outcomes)
		}

		if _, err := callTool(t, s, "puzzle_history", map[string]interface{}{"run_id": "missing"}); !errors.Is(err, history.ErrRunNotFound) {
			t.Fatalf("err = %v, want ErrRunNotFound", err)
		}
	})
}
