package detection

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Point is a pixel position relative to the image origin.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Component is one 8-connected run of ink pixels.
type Component struct {
	// Label is the component's index in the label map, starting at 1.
	Label int `json:"label"`

	// Bounds is the bounding box in page coordinates.
	Bounds shape.Bounds `json:"bounds"`

	// Area is the number of ink pixels.
	Area int `json:"area"`
}

// binarise returns the ink mask of img. Pixels darker than threshold are ink.
// The mask is indexed [y][x] relative to img.Bounds().Min.
func binarise(img image.Image, threshold uint8) [][]bool {
	bw := segment.Threshold(effect.Grayscale(img), threshold)
	r := bw.Bounds()
	ink := make([][]bool, r.Dy())
	for y := 0; y < r.Dy(); y++ {
		ink[y] = make([]bool, r.Dx())
		for x := 0; x < r.Dx(); x++ {
			ink[y][x] = bw.GrayAt(r.Min.X+x, r.Min.Y+y).Y == 0
		}
	}
	return ink
}

// labelComponents flood-fills the ink mask. The returned label map holds 0
// for paper and the component label otherwise. Components smaller than
// minArea are dropped and their pixels relabelled as paper. origin is added
// to the component bounds.
func labelComponents(ink [][]bool, origin image.Point, minArea int) ([][]int, []Component) {
	height := len(ink)
	width := 0
	if height > 0 {
		width = len(ink[0])
	}
	labels := make([][]int, height)
	for y := range labels {
		labels[y] = make([]int, width)
	}

	var comps []Component
	next := 1
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !ink[y][x] || labels[y][x] != 0 {
				continue
			}
			pixels := floodFill(ink, labels, x, y, next)
			if len(pixels) < minArea {
				for _, p := range pixels {
					labels[p.Y][p.X] = -1
				}
				continue
			}
			comps = append(comps, Component{
				Label:  next,
				Bounds: boundsOf(pixels, origin),
				Area:   len(pixels),
			})
			next++
		}
	}
	for y := range labels {
		for x := range labels[y] {
			if labels[y][x] < 0 {
				labels[y][x] = 0
			}
		}
	}
	return labels, comps
}

// floodFill labels every ink pixel 8-connected to (startX, startY) and
// returns them. It uses an explicit stack so large blots cannot overflow the
// goroutine stack.
func floodFill(ink [][]bool, labels [][]int, startX, startY, label int) []Point {
	height := len(ink)
	width := len(ink[0])
	stack := []Point{{X: startX, Y: startY}}
	var pixels []Point

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if labels[p.Y][p.X] != 0 || !ink[p.Y][p.X] {
			continue
		}

		labels[p.Y][p.X] = label
		pixels = append(pixels, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return pixels
}

func boundsOf(pixels []Point, origin image.Point) shape.Bounds {
	minX, minY := pixels[0].X, pixels[0].Y
	maxX, maxY := minX, minY
	for _, p := range pixels[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return shape.Bounds{
		X1: minX + origin.X,
		Y1: minY + origin.Y,
		X2: maxX + 1 + origin.X,
		Y2: maxY + 1 + origin.Y,
	}
}
