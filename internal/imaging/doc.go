// Package imaging provides the raster type and the image operations the
// matcher is built on.
//
// A Raster is an immutable, row-major 8-bit pixel buffer with either three
// (RGB) or one (gray) channels. Decoding goes through ImageCache; resampling,
// cropping and grayscale conversion return new rasters and never touch the
// receiver.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x, y) is the top-left corner and w, h the extent
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Rasters are never mutated,
// so any raster may be read from several goroutines at once.
//
// # Color Representation
//
// Colors are returned in multiple formats:
//   - Hex: 6-character format "#RRGGBB"
//   - RGB: 8-bit components (0-255)
//   - HSL: Hue (0-360), Saturation (0-100), Lightness (0-100)
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Regions outside raster bounds
//   - Empty or zero-sized rasters
//   - File I/O errors during image loading
//   - Encoding errors during image output
package imaging
