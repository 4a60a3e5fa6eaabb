package board

import "testing"

func TestAutoScrollerNext(t *testing.T) {
	a := NewAutoScroller(0, 0)
	vp := Viewport{Rect: Rect{Left: 0, Top: 0, Width: 400, Height: 200}, ScrollLeft: 100, ScrollWidth: 1200, ClientWidth: 400}
	cases := []struct {
		name    string
		pointer Point
		scroll  float64
		want    float64
		moved   bool
	}{
		{name: "left zone", pointer: Point{X: 40, Y: 50}, scroll: 100, want: 80, moved: true},
		{name: "right zone", pointer: Point{X: 390, Y: 50}, scroll: 100, want: 120, moved: true},
		{name: "middle", pointer: Point{X: 200, Y: 50}, scroll: 100, want: 100},
		{name: "zone edge is outside", pointer: Point{X: 80, Y: 50}, scroll: 100, want: 100},
		{name: "outside vertical bounds", pointer: Point{X: 10, Y: 250}, scroll: 100, want: 100},
		{name: "clamp at zero", pointer: Point{X: 10, Y: 50}, scroll: 10, want: 0, moved: true},
		{name: "already at zero", pointer: Point{X: 10, Y: 50}, scroll: 0, want: 0},
		{name: "clamp at max", pointer: Point{X: 399, Y: 50}, scroll: 790, want: 800, moved: true},
		{name: "already at max", pointer: Point{X: 399, Y: 50}, scroll: 800, want: 800},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := vp
			v.ScrollLeft = tc.scroll
			got, moved := a.Next(tc.pointer, v)
			if got != tc.want || moved != tc.moved {
				t.Fatalf("Next() = %v, %t; want %v, %t", got, moved, tc.want, tc.moved)
			}
		})
	}
}

func TestViewportMaxScrollNeverNegative(t *testing.T) {
	if got := (Viewport{ScrollWidth: 100, ClientWidth: 300}).MaxScroll(); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
