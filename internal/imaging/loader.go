package imaging

import (
	"container/list"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// DefaultCapacity is the number of pages a PageCache keeps when none is
// given.
const DefaultCapacity = 16

// PageCache provides thread-safe caching of decoded page images.
//
// Pages are keyed by the path passed to Load. Different paths to the same
// file (relative vs absolute) are separate entries.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	pages    map[string]*list.Element
	loads    int
	hits     int
}

type entry struct {
	path string
	img  image.Image
}

// NewPageCache creates a cache holding at most capacity pages. A capacity
// below 1 means DefaultCapacity.
func NewPageCache(capacity int) *PageCache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &PageCache{
		capacity: capacity,
		order:    list.New(),
		pages:    make(map[string]*list.Element),
	}
}

// Load returns the page at path, reading it from disk on a miss. JPEG
// orientation tags are applied so the page is upright.
func (c *PageCache) Load(path string) (image.Image, error) {
	c.mu.Lock()
	if el, ok := c.pages[path]; ok {
		c.order.MoveToFront(el)
		c.hits++
		img := el.Value.(*entry).img
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if el, ok := c.pages[path]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry).img, nil
	}
	c.pages[path] = c.order.PushFront(&entry{path: path, img: img})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.pages, oldest.Value.(*entry).path)
	}
	return img, nil
}

// Evict removes one page. Unknown paths are ignored.
func (c *PageCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.pages[path]; ok {
		c.order.Remove(el)
		delete(c.pages, path)
	}
}

// Clear removes every page.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.pages = make(map[string]*list.Element)
}

// Len is the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the number of disk loads and cache hits so far.
func (c *PageCache) Stats() (loads, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads, c.hits
}

// PageInfo contains metadata about a page image file.
type PageInfo struct {
	Path          string `json:"path"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadPageInfo loads a page through the cache and describes it. The format
// is taken from the file extension.
func LoadPageInfo(cache *PageCache, path string) (*PageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	b := img.Bounds()
	return &PageInfo{
		Path:          path,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
