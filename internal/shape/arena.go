package shape

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Arena owns every shape of one document. Shapes are addressed by ID, which
// is their index in the arena. An Arena is not safe for concurrent mutation;
// each document gets its own.
type Arena struct {
	shapes  []*Shape
	derived map[string][]ID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores s and assigns its ID. Adding a shape that already belongs to
// this arena returns its existing ID.
func (a *Arena) Add(s *Shape) ID {
	if s.ID >= 0 && int(s.ID) < len(a.shapes) && a.shapes[s.ID] == s {
		return s.ID
	}
	s.ID = ID(len(a.shapes))
	a.shapes = append(a.shapes, s)
	return s.ID
}

// AddDerived adds shapes built from other shapes of the arena, such as split
// pieces or merges, and records them under key. When key is already
// recorded the shapes recorded first are kept and returned.
func (a *Arena) AddDerived(key string, shapes ...*Shape) []ID {
	if ids, ok := a.derived[key]; ok {
		return append([]ID(nil), ids...)
	}
	ids := make([]ID, len(shapes))
	for i, s := range shapes {
		ids[i] = a.Add(s)
	}
	if a.derived == nil {
		a.derived = make(map[string][]ID)
	}
	a.derived[key] = ids
	return append([]ID(nil), ids...)
}

// Derived returns the shapes recorded under key.
func (a *Arena) Derived(key string) ([]*Shape, bool) {
	ids, ok := a.derived[key]
	if !ok {
		return nil, false
	}
	out := make([]*Shape, len(ids))
	for i, id := range ids {
		out[i] = a.shapes[id]
	}
	return out, true
}

// Get returns the shape with the given ID, or nil if there is none.
func (a *Arena) Get(id ID) *Shape {
	if id < 0 || int(id) >= len(a.shapes) {
		return nil
	}
	return a.shapes[id]
}

// Len is the number of shapes in the arena.
func (a *Arena) Len() int { return len(a.shapes) }

// Shapes returns the shapes in ID order. The slice is a copy; the shapes are
// not.
func (a *Arena) Shapes() []*Shape {
	return append([]*Shape(nil), a.shapes...)
}

// ImageStatus is the review status of the page image a group belongs to.
type ImageStatus string

const (
	StatusAutoNew           ImageStatus = "auto_new"
	StatusAutoValidated     ImageStatus = "auto_validated"
	StatusTrainingNew       ImageStatus = "training_new"
	StatusTrainingValidated ImageStatus = "training_validated"
	StatusTrainingHeldOut   ImageStatus = "training_held_out"
	StatusTrainingTest      ImageStatus = "training_test"
)

// Group is an ordered run of shapes forming one word, in reading order.
type Group struct {
	ID        int64       `json:"id"`
	Document  string      `json:"document"`
	Page      int         `json:"page"`
	Paragraph int         `json:"paragraph"`
	Row       int         `json:"row"`
	Index     int         `json:"index"`
	Status    ImageStatus `json:"status,omitempty"`

	// Shapes lists the group's shapes in reading order.
	Shapes []ID `json:"shapes"`

	// RightToLeft is set for right-to-left scripts; Shapes is then ordered
	// right to left.
	RightToLeft bool `json:"right_to_left,omitempty"`
}

// Bounds returns the union of the bounds of the group's shapes.
func (g Group) Bounds(a *Arena) Bounds {
	var b Bounds
	for _, id := range g.Shapes {
		if s := a.Get(id); s != nil {
			b = b.Union(s.Bounds)
		}
	}
	return b
}

// StableKey derives a persistent shape key from where the shape was found.
// The same page detected twice yields the same keys, so stored splits can be
// matched to fresh detections. Keys are positive.
func StableKey(document string, page int, b Bounds) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%d\x00%d,%d,%d,%d", document, page, b.X1, b.Y1, b.X2, b.Y2)
	k := int64(h.Sum64() & math.MaxInt64)
	if k == 0 {
		k = 1
	}
	return k
}
