package board

import "testing"

func TestRectEdgesAndContainment(t *testing.T) {
	r := Rect{Left: 10, Top: 20, Width: 30, Height: 40}
	if r.Right() != 40 || r.Bottom() != 60 {
		t.Fatalf("Right/Bottom = %v/%v, want 40/60", r.Right(), r.Bottom())
	}

	tests := []struct {
		name     string
		p        Point
		closed   bool
		halfOpen bool
	}{
		{name: "inside", p: Point{X: 25, Y: 30}, closed: true, halfOpen: true},
		{name: "top left corner", p: Point{X: 10, Y: 20}, closed: true, halfOpen: true},
		{name: "right edge", p: Point{X: 40, Y: 30}, closed: true, halfOpen: false},
		{name: "bottom edge", p: Point{X: 25, Y: 60}, closed: true, halfOpen: false},
		{name: "outside", p: Point{X: 41, Y: 30}, closed: false, halfOpen: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Contains(tc.p); got != tc.closed {
				t.Fatalf("Contains(%v) = %v, want %v", tc.p, got, tc.closed)
			}
			if got := r.containsHalfOpen(tc.p); got != tc.halfOpen {
				t.Fatalf("containsHalfOpen(%v) = %v, want %v", tc.p, got, tc.halfOpen)
			}
		})
	}

	if d := (Point{X: 5, Y: 7}).Sub(Point{X: 2, Y: 3}); d != (Point{X: 3, Y: 4}) {
		t.Fatalf("Sub() = %v, want {3 4}", d)
	}
}
