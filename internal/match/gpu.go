//go:build !nogpu

package match

import (
	_ "embed"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

//go:embed shaders/correlate.wgsl
var correlateShaderSource string

const (
	// gpuWaitTimeout bounds a single correlation dispatch.
	gpuWaitTimeout  = 30 * time.Second
	gpuPollInterval = time.Millisecond
)

// gpuMatcher computes cross terms with a wgpu compute shader. The device is
// opened once per Match call; buffers are created per candidate and released
// before the candidate returns.
type gpuMatcher struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  AdapterInfo

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

var _ CoarseMatcher = (*gpuMatcher)(nil)

// newGPUMatcher opens the first discrete or integrated adapter (else the
// first adapter) and builds the correlation pipeline. Every failure,
// including a panic inside the driver layer, wraps
// ErrAcceleratedDeviceUnavailable.
func newGPUMatcher() (m CoarseMatcher, err error) {
	g := &gpuMatcher{}
	defer func() {
		if r := recover(); r != nil {
			err = unavailable("gpu init panic: %v", r)
		}
		if err != nil {
			g.Close()
			m = nil
		}
	}()
	if err := g.init(); err != nil {
		return nil, err
	}
	Logger().Info("match: gpu adapter selected", "name", g.adapter.Name, "type", g.adapter.Type)
	return g, nil
}

func (g *gpuMatcher) init() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return unavailable("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return unavailable("create instance: %w", err)
	}
	g.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return unavailable("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return unavailable("open device: %w", err)
	}
	g.device = openDev.Device
	g.queue = openDev.Queue
	g.adapter = AdapterInfo{
		Name:    selected.Info.Name,
		Backend: "vulkan",
		Type:    fmt.Sprint(selected.Info.DeviceType),
	}

	if err := g.createPipeline(); err != nil {
		return unavailable("create pipeline: %w", err)
	}
	return nil
}

func (g *gpuMatcher) createPipeline() error {
	shader, err := g.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "correlate",
		Source: hal.ShaderSource{WGSL: correlateShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile correlate shader: %w", err)
	}
	g.shader = shader

	bindLayout, err := g.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "correlate_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	g.bindLayout = bindLayout

	pipeLayout, err := g.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "correlate_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{g.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	g.pipeLayout = pipeLayout

	pipeline, err := g.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "correlate_pipeline", Layout: g.pipeLayout,
		Compute: hal.ComputeState{Module: g.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	g.pipeline = pipeline
	return nil
}

func (g *gpuMatcher) Device() Device { return DeviceGPU }

// Adapter describes the opened adapter.
func (g *gpuMatcher) Adapter() AdapterInfo { return g.adapter }

// Close destroys the pipeline, device and instance. It is safe to call on a
// partially initialized matcher.
func (g *gpuMatcher) Close() error {
	if g.device != nil {
		if g.pipeline != nil {
			g.device.DestroyComputePipeline(g.pipeline)
		}
		if g.pipeLayout != nil {
			g.device.DestroyPipelineLayout(g.pipeLayout)
		}
		if g.bindLayout != nil {
			g.device.DestroyBindGroupLayout(g.bindLayout)
		}
		if g.shader != nil {
			g.device.DestroyShaderModule(g.shader)
		}
		g.device.Destroy()
	}
	if g.instance != nil {
		g.instance.Destroy()
	}
	*g = gpuMatcher{}
	return nil
}

// Match computes the cross terms on the GPU and scores them on the CPU. The
// winner, and offset (0,0), are recomputed on the CPU; any disagreement is
// treated as a device failure.
func (g *gpuMatcher) Match(puzzle, piece *imaging.Raster, metric Metric) (p Placement, err error) {
	if err := checkFits(puzzle, piece); err != nil {
		return Placement{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = Placement{}, unavailable("gpu correlation panic: %v", r)
		}
	}()

	cross, err := g.crossTerms(puzzle, piece)
	if err != nil {
		return Placement{}, unavailable("gpu correlation: %w", err)
	}

	best := bestPlacement(newIntegral(puzzle), piece, cross, metric)
	outW := puzzle.Width() - piece.Width() + 1
	for _, pt := range [][2]int{{best.X, best.Y}, {0, 0}} {
		want := crossAt(puzzle, piece, pt[0], pt[1])
		if got := cross[pt[1]*outW+pt[0]]; got != want {
			return Placement{}, unavailable("gpu result mismatch at (%d,%d): got %d, want %d", pt[0], pt[1], got, want)
		}
	}
	return best, nil
}

func (g *gpuMatcher) crossTerms(puzzle, piece *imaging.Raster) ([]int64, error) {
	if g.device == nil {
		return nil, fmt.Errorf("gpu matcher is closed")
	}
	if piece.Width() > maxGPUPieceWidth {
		return nil, fmt.Errorf("piece width %d exceeds kernel limit %d", piece.Width(), maxGPUPieceWidth)
	}

	params := gpuParams{
		PuzzleWidth:  uint32(puzzle.Width()),  //nolint:gosec // raster dimensions fit uint32
		PuzzleHeight: uint32(puzzle.Height()), //nolint:gosec // raster dimensions fit uint32
		PieceWidth:   uint32(piece.Width()),   //nolint:gosec // raster dimensions fit uint32
		PieceHeight:  uint32(piece.Height()),  //nolint:gosec // raster dimensions fit uint32
		OutWidth:     uint32(puzzle.Width() - piece.Width() + 1),
		OutHeight:    uint32(puzzle.Height() - piece.Height() + 1),
	}
	puzzleBytes := packGray(puzzle)
	pieceBytes := packGray(piece)
	count := int(params.OutWidth * params.OutHeight)
	sumsSize := uint64(count) * 8

	var buffers []hal.Buffer
	defer func() {
		for _, b := range buffers {
			g.device.DestroyBuffer(b)
		}
	}()
	newBuffer := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		b, err := g.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("create %s buffer: %w", label, err)
		}
		buffers = append(buffers, b)
		return b, nil
	}

	paramBuf, err := newBuffer("correlate_params", gpuParamsSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	puzzleBuf, err := newBuffer("correlate_puzzle", uint64(len(puzzleBytes)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	pieceBuf, err := newBuffer("correlate_piece", uint64(len(pieceBytes)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	sumsBuf, err := newBuffer("correlate_sums", sumsSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	stagingBuf, err := newBuffer("correlate_staging", sumsSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	for _, w := range []struct {
		buf  hal.Buffer
		data []byte
	}{{paramBuf, params.bytes()}, {puzzleBuf, puzzleBytes}, {pieceBuf, pieceBytes}} {
		if err := g.queue.WriteBuffer(w.buf, 0, w.data); err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
	}

	bindGroup, err := g.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "correlate_bind", Layout: g.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramBuf.NativeHandle(), Offset: 0, Size: gpuParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: puzzleBuf.NativeHandle(), Offset: 0, Size: uint64(len(puzzleBytes))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: pieceBuf.NativeHandle(), Offset: 0, Size: uint64(len(pieceBytes))}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: sumsBuf.NativeHandle(), Offset: 0, Size: sumsSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer g.device.DestroyBindGroup(bindGroup)

	encoder, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "correlate_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("correlate"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "correlate_pass"})
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch((params.OutWidth+7)/8, (params.OutHeight+7)/8, 1)
	pass.End()
	encoder.CopyBufferToBuffer(sumsBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: sumsSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer g.device.FreeCommandBuffer(cmdBuf)

	idx, err := g.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := g.waitSubmission(idx, gpuWaitTimeout); err != nil {
		return nil, err
	}

	readback, err := g.readBuffer(stagingBuf, sumsSize)
	if err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	Logger().Debug("match: gpu correlation",
		"offsets", count,
		"puzzle_bytes", len(puzzleBytes),
		"sums_bytes", sumsSize)
	return unpackSums(readback, count), nil
}

// waitSubmission polls the queue until the submission with index idx has
// completed or the timeout elapses.
func (g *gpuMatcher) waitSubmission(idx uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for g.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d not complete after %s", idx, timeout)
		}
		time.Sleep(gpuPollInterval)
	}
	return nil
}

// readBuffer copies size bytes out of a MapRead staging buffer. The caller
// must have waited for the copy into it to complete.
func (g *gpuMatcher) readBuffer(buf hal.Buffer, size uint64) ([]byte, error) {
	mapping, err := g.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := g.device.UnmapBuffer(buf); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return out, nil
}
