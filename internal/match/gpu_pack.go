package match

import (
	"encoding/binary"

	"github.com/ironsheep/puzzle-match/internal/imaging"
)

// maxGPUPieceWidth keeps a kernel row sum (width * 255 * 255) inside a u32.
const maxGPUPieceWidth = 66000

// gpuParams mirrors the Params uniform in shaders/correlate.wgsl.
type gpuParams struct {
	PuzzleWidth  uint32
	PuzzleHeight uint32
	PieceWidth   uint32
	PieceHeight  uint32
	OutWidth     uint32
	OutHeight    uint32
}

const gpuParamsSize = 32

func (p gpuParams) bytes() []byte {
	out := make([]byte, gpuParamsSize)
	for i, v := range []uint32{p.PuzzleWidth, p.PuzzleHeight, p.PieceWidth, p.PieceHeight, p.OutWidth, p.OutHeight} {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// packGray widens each gray pixel to a little-endian u32.
func packGray(r *imaging.Raster) []byte {
	pix := r.Pix()
	out := make([]byte, len(pix)*4)
	for i, v := range pix {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

// unpackSums decodes the lo/hi u32 pairs written by the kernel.
func unpackSums(raw []byte, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		lo := uint64(binary.LittleEndian.Uint32(raw[i*8:]))
		hi := uint64(binary.LittleEndian.Uint32(raw[i*8+4:]))
		out[i] = int64(hi<<32 | lo)
	}
	return out
}
