package shape

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/ocr-decoder/internal/model"
)

// createPage creates a white RGBA page with black boxes drawn on it.
func createPage(width, height int, boxes ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for _, r := range boxes {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestBoundsUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b Bounds
		want Bounds
	}{
		{"disjoint", Bounds{0, 0, 5, 5}, Bounds{10, 2, 12, 8}, Bounds{0, 0, 12, 8}},
		{"nested", Bounds{0, 0, 10, 10}, Bounds{2, 2, 4, 4}, Bounds{0, 0, 10, 10}},
		{"empty left", Bounds{}, Bounds{1, 1, 3, 3}, Bounds{1, 1, 3, 3}},
		{"empty right", Bounds{1, 1, 3, 3}, Bounds{}, Bounds{1, 1, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Union(tt.b)
			if got != tt.want {
				t.Errorf("Union() = %s, want %s", got, tt.want)
			}
			if !tt.a.Empty() && !got.Contains(tt.a) {
				t.Errorf("union %s does not contain %s", got, tt.a)
			}
			if !tt.b.Empty() && !got.Contains(tt.b) {
				t.Errorf("union %s does not contain %s", got, tt.b)
			}
		})
	}
}

func TestBoundsGapAndOverlap(t *testing.T) {
	a := Bounds{0, 0, 10, 10}

	if got := a.HorizontalGap(Bounds{13, 0, 20, 10}); got != 3 {
		t.Errorf("HorizontalGap() = %d, want 3", got)
	}
	if got := a.HorizontalGap(Bounds{5, 0, 20, 10}); got != 0 {
		t.Errorf("HorizontalGap() of overlapping boxes = %d, want 0", got)
	}
	if got := a.HorizontalOverlap(Bounds{6, 20, 14, 30}); got != 4 {
		t.Errorf("HorizontalOverlap() = %d, want 4", got)
	}
	if got := a.VerticalOverlap(Bounds{20, 8, 30, 30}); got != 2 {
		t.Errorf("VerticalOverlap() = %d, want 2", got)
	}
}

func TestFromImage(t *testing.T) {
	page := createPage(40, 30, image.Rect(10, 5, 15, 25))
	s := FromImage(page, Bounds{X1: 8, Y1: 5, X2: 17, Y2: 25})

	if s.Width() != 9 || s.Height() != 20 {
		t.Fatalf("size = %dx%d, want 9x20", s.Width(), s.Height())
	}
	if s.ID != NoID {
		t.Errorf("ID = %d, want NoID", s.ID)
	}
	// Column 2 of the shape is page column 10, inside the box.
	if ink := s.Ink(2, 0); ink != 255 {
		t.Errorf("Ink inside box = %d, want 255", ink)
	}
	if ink := s.Ink(0, 0); ink != 0 {
		t.Errorf("Ink outside box = %d, want 0", ink)
	}
	if ink := s.Ink(-1, 100); ink != 0 {
		t.Errorf("Ink off grid = %d, want 0", ink)
	}
}

func TestInkDensity(t *testing.T) {
	page := createPage(20, 20, image.Rect(0, 0, 10, 10))
	full := FromImage(page, Bounds{0, 0, 10, 10})
	half := FromImage(page, Bounds{0, 0, 20, 10})

	if d := full.InkDensity(); math.Abs(d-1) > 1e-9 {
		t.Errorf("InkDensity() of solid shape = %v, want 1", d)
	}
	if d := half.InkDensity(); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("InkDensity() of half-inked shape = %v, want 0.5", d)
	}
	if d := New(Bounds{}, nil).InkDensity(); d != 0 {
		t.Errorf("InkDensity() of empty shape = %v, want 0", d)
	}
}

func TestInkBySection(t *testing.T) {
	// Left half solid, right half blank.
	page := createPage(20, 20, image.Rect(0, 0, 10, 20))
	s := FromImage(page, Bounds{0, 0, 20, 20})

	grid := s.InkBySection(2, 2)
	if len(grid) != 2 || len(grid[0]) != 2 {
		t.Fatalf("grid shape = %dx%d, want 2x2", len(grid), len(grid[0]))
	}
	for r := 0; r < 2; r++ {
		if grid[0][r] != 1 {
			t.Errorf("left section %d = %v, want 1", r, grid[0][r])
		}
		if grid[1][r] != 0 {
			t.Errorf("right section %d = %v, want 0", r, grid[1][r])
		}
	}

	blank := New(Bounds{0, 0, 4, 4}, nil).InkBySection(3, 3)
	for _, col := range blank {
		for _, v := range col {
			if v != 0 {
				t.Fatalf("blank shape section = %v, want 0", v)
			}
		}
	}
}

func TestSplitAt(t *testing.T) {
	page := createPage(30, 10, image.Rect(0, 0, 30, 10))
	s := FromImage(page, Bounds{0, 0, 30, 10})
	s.Letter = "m"

	pieces := s.SplitAt([]int{20, 10, 0, 45})
	if len(pieces) != 3 {
		t.Fatalf("got %d pieces, want 3", len(pieces))
	}

	wantLetters := []string{"m|", "|m|", "|m"}
	for i, p := range pieces {
		if p.Width() != 10 || p.Height() != 10 {
			t.Errorf("piece %d size = %dx%d, want 10x10", i, p.Width(), p.Height())
		}
		if p.Bounds.X1 != i*10 {
			t.Errorf("piece %d X1 = %d, want %d", i, p.Bounds.X1, i*10)
		}
		if p.Letter != wantLetters[i] {
			t.Errorf("piece %d letter = %q, want %q", i, p.Letter, wantLetters[i])
		}
		if p.Ink(5, 5) != 255 {
			t.Errorf("piece %d lost its ink", i)
		}
	}

	if same := s.SplitAt(nil); len(same) != 1 || same[0] != s {
		t.Error("SplitAt(nil) should return the shape itself")
	}
}

func TestJoinLetters(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"a", "b", "ab"},
		{"a|", "|a", "a"},
		{"a|", "|a|", "a|"},
		{"|a|", "|a", "|a"},
		{"a|", "|b", "a||b"},
		{"xa|", "|a", "xa"},
		{"", "b", "b"},
		{"|", "|", "||"},
	}
	for _, tt := range tests {
		if got := JoinLetters(tt.a, tt.b); got != tt.want {
			t.Errorf("JoinLetters(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGuesses(t *testing.T) {
	s := New(Bounds{0, 0, 2, 2}, nil)
	if _, ok := s.BestGuess(); ok {
		t.Error("new shape should have no best guess")
	}

	s.SetGuesses([]model.Decision{{Outcome: "a", Probability: 0.7}, {Outcome: "o", Probability: 0.2}})
	best, ok := s.BestGuess()
	if !ok || best.Outcome != "a" {
		t.Errorf("BestGuess() = %v, %v", best, ok)
	}

	got := s.Guesses()
	got[0].Outcome = "x"
	if again, _ := s.BestGuess(); again.Outcome != "a" {
		t.Error("Guesses() must return a copy")
	}

	s.ClearGuesses()
	if len(s.Guesses()) != 0 {
		t.Error("ClearGuesses() left guesses behind")
	}
}

func TestArena(t *testing.T) {
	arena := NewArena()
	a := New(Bounds{0, 0, 1, 1}, nil)
	b := New(Bounds{1, 0, 2, 1}, nil)

	idA := arena.Add(a)
	idB := arena.Add(b)
	if idA != 0 || idB != 1 {
		t.Fatalf("ids = %d, %d, want 0, 1", idA, idB)
	}
	if again := arena.Add(a); again != idA || arena.Len() != 2 {
		t.Errorf("re-adding a shape should keep its id, got %d (len %d)", again, arena.Len())
	}
	if arena.Get(idB) != b {
		t.Error("Get() returned the wrong shape")
	}
	if arena.Get(5) != nil || arena.Get(NoID) != nil {
		t.Error("Get() of unknown id should be nil")
	}

	g := Group{Shapes: []ID{idA, idB}}
	if got := g.Bounds(arena); got != (Bounds{0, 0, 2, 1}) {
		t.Errorf("Group.Bounds() = %s", got)
	}
}

func TestStableKey(t *testing.T) {
	b := Bounds{X1: 3, Y1: 4, X2: 10, Y2: 20}
	k := StableKey("book", 2, b)
	if k <= 0 {
		t.Fatalf("StableKey() = %d, want positive", k)
	}
	if again := StableKey("book", 2, b); again != k {
		t.Errorf("StableKey() not stable: %d then %d", k, again)
	}
	for _, other := range []int64{
		StableKey("book", 3, b),
		StableKey("novel", 2, b),
		StableKey("book", 2, Bounds{X1: 3, Y1: 4, X2: 11, Y2: 20}),
	} {
		if other == k {
			t.Errorf("different positions share key %d", k)
		}
	}
}

func TestArenaDerived(t *testing.T) {
	arena := NewArena()
	base := arena.Add(New(Bounds{0, 0, 4, 4}, nil))

	if _, ok := arena.Derived("split/0/[2]"); ok {
		t.Fatal("Derived() found an unrecorded key")
	}
	left := New(Bounds{0, 0, 2, 4}, nil)
	right := New(Bounds{2, 0, 4, 4}, nil)
	ids := arena.AddDerived("split/0/[2]", left, right)
	if len(ids) != 2 || ids[0] == base || arena.Len() != 3 {
		t.Fatalf("AddDerived() = %v (len %d)", ids, arena.Len())
	}

	again := arena.AddDerived("split/0/[2]", New(Bounds{0, 0, 1, 4}, nil))
	if len(again) != 2 || again[0] != ids[0] || again[1] != ids[1] || arena.Len() != 3 {
		t.Errorf("recorded key was replaced: %v (len %d)", again, arena.Len())
	}

	got, ok := arena.Derived("split/0/[2]")
	if !ok || len(got) != 2 || got[0] != left || got[1] != right {
		t.Errorf("Derived() = %v, %v", got, ok)
	}
}

func TestShapeCopy(t *testing.T) {
	arena := NewArena()
	s := New(Bounds{0, 0, 3, 3}, nil)
	s.Key = 9
	s.Letter = "a"
	arena.Add(s)
	s.SetGuesses([]model.Decision{{Outcome: "a", Probability: 1}})

	c := s.Copy()
	if c.ID != NoID || c.Key != 9 || c.Letter != "a" || c.Bounds != s.Bounds || c.Pixels != s.Pixels {
		t.Errorf("Copy() = %+v", c)
	}
	if len(c.Guesses()) != 0 {
		t.Error("copy carries guesses")
	}
	c.SetGuesses([]model.Decision{{Outcome: "o", Probability: 1}})
	if best, _ := s.BestGuess(); best.Outcome != "a" {
		t.Error("guessing on the copy changed the original")
	}
}
