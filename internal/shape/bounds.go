package shape

import (
	"fmt"
	"image"
)

// Bounds represents a rectangular bounding box in page pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge (exclusive)
	Y2 int `json:"y2"` // Bottom edge (exclusive)
}

// FromRect converts an image.Rectangle to Bounds.
func FromRect(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Rect converts the bounds to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Width is the horizontal extent in pixels.
func (b Bounds) Width() int { return b.X2 - b.X1 }

// Height is the vertical extent in pixels.
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Empty reports whether the bounds cover no pixels.
func (b Bounds) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

// Union returns the smallest bounds containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

// Contains reports whether o lies entirely within b.
func (b Bounds) Contains(o Bounds) bool {
	return o.X1 >= b.X1 && o.Y1 >= b.Y1 && o.X2 <= b.X2 && o.Y2 <= b.Y2
}

// HorizontalGap is the number of blank columns between b and o, or 0 when
// their horizontal extents touch or overlap.
func (b Bounds) HorizontalGap(o Bounds) int {
	gap := max(b.X1, o.X1) - min(b.X2, o.X2)
	if gap < 0 {
		return 0
	}
	return gap
}

// HorizontalOverlap is the number of columns shared by b and o.
func (b Bounds) HorizontalOverlap(o Bounds) int {
	overlap := min(b.X2, o.X2) - max(b.X1, o.X1)
	if overlap < 0 {
		return 0
	}
	return overlap
}

// VerticalOverlap is the number of rows shared by b and o.
func (b Bounds) VerticalOverlap(o Bounds) int {
	overlap := min(b.Y2, o.Y2) - max(b.Y1, o.Y1)
	if overlap < 0 {
		return 0
	}
	return overlap
}

func (b Bounds) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}
