package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/puzzle-match/internal/config"
)

type cliTestEnv struct {
	baseDir     string
	configPath  string
	historyPath string
}

// setupCLITestEnv isolates HOME and the working directory and writes a config
// that keeps the history database inside the test directory.
func setupCLITestEnv(t *testing.T, historyEnabled bool) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv(config.LogLevelEnv, "")
	t.Chdir(base)

	env := &cliTestEnv{
		baseDir:     base,
		configPath:  filepath.Join(base, "config.toml"),
		historyPath: filepath.Join(base, "data", "history.db"),
	}
	content := fmt.Sprintf("[logging]\nlevel = \"error\"\n\n[history]\nenabled = %t\npath = %q\n", historyEnabled, env.historyPath)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

// writeNoisePair writes a noise puzzle and a piece cropped from it at
// (px, py), returning both paths.
func writeNoisePair(t *testing.T, dir string, w, h, px, py, pw, ph int) (string, string) {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 5))
	puzzle := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			puzzle.SetNRGBA(x, y, color.NRGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255})
		}
	}
	piece := puzzle.SubImage(image.Rect(px, py, px+pw, py+ph))

	puzzlePath := filepath.Join(dir, "puzzle.png")
	piecePath := filepath.Join(dir, "piece.png")
	writePNG(t, puzzlePath, puzzle)
	writePNG(t, piecePath, piece)
	return puzzlePath, piecePath
}

func writeSolidPNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	writePNG(t, path, img)
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
