// Package imaging loads page images and renders shapes for inspection.
//
// # Page Cache
//
// Decoding a scanned page is expensive and the same page is often visited
// several times (shape detection, then decoding, then merge inspection from
// the MCP server). [PageCache] keeps the most recently used pages in memory
// up to a fixed capacity and evicts the least recently used one beyond it.
//
// # Coordinate System
//
// All pixel coordinates are page coordinates:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// PageCache is safe for concurrent use. The rendering functions are
// stateless.
package imaging
