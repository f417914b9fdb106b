package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// cacheEntry pairs a decoded raster with the format name reported by the decoder.
type cacheEntry struct {
	raster *Raster
	format string
}

// ImageCache provides thread-safe caching of decoded rasters to avoid
// redundant disk reads.
//
// Rasters are keyed by the exact path string used to load them. Because a
// Raster is immutable the same value can be handed to any number of callers.
//
// # Memory Management
//
// Cached rasters remain in memory until explicitly removed via Evict() or
// Clear(). Puzzle photographs are large; long-running processes should evict
// puzzles they are done with.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	puzzle, err := cache.Load("/path/to/puzzle.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]cacheEntry),
	}
}

// Load retrieves a raster from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a decodable image
func (c *ImageCache) Load(path string) (*Raster, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.raster, nil
}

func (c *ImageCache) load(path string) (cacheEntry, error) {
	c.mu.RLock()
	if entry, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to decode image: %w", err)
	}

	raster, err := FromImage(img)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to convert %s: %w", path, err)
	}

	entry := cacheEntry{raster: raster, format: format}
	c.mu.Lock()
	c.entries[path] = entry
	c.mu.Unlock()

	return entry, nil
}

// Len returns the number of cached rasters.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all rasters from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Evict removes a specific raster from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name ("png", "jpeg", "tiff", ...).
	Format string `json:"format"`

	// Channels is 1 for grayscale sources and 3 otherwise.
	Channels int `json:"channels"`

	// Extension is the lower-cased file extension, including the dot.
	Extension string `json:"extension"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache (if not already cached) and
// returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	entry, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ImageInfo{
		Width:         entry.raster.Width(),
		Height:        entry.raster.Height(),
		Format:        entry.format,
		Channels:      entry.raster.Channels(),
		Extension:     strings.ToLower(filepath.Ext(path)),
		FileSizeBytes: stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	r, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	return &DimensionsResult{
		Width:  r.Width(),
		Height: r.Height(),
	}, nil
}
