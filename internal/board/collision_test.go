package board

import (
	"testing"

	"github.com/evanschultz/pitchside/internal/domain"
)

func sixStages() []domain.StageID {
	return domain.DefaultStages()
}

func TestResolveDropTargetFixtures(t *testing.T) {
	stages := sixStages()
	boardRect := Rect{Left: 100, Top: 50, Width: 600, Height: 400}
	cases := []struct {
		name       string
		pointerX   float64
		scrollLeft float64
		want       domain.StageID
	}{
		{name: "content start", pointerX: 100, scrollLeft: 0, want: domain.StageNew},
		{name: "content end", pointerX: 700, scrollLeft: 600, want: domain.StageUninterestedNoResponse},
		{name: "boundary rounds down to the right segment", pointerX: 300, scrollLeft: 0, want: domain.StageContacted},
		{name: "just before boundary", pointerX: 299.99, scrollLeft: 0, want: domain.StageNew},
		{name: "near the right edge while scrolled", pointerX: 690, scrollLeft: 600, want: domain.StageUninterestedNoResponse},
		{name: "scrolled column not visible", pointerX: 150, scrollLeft: 600, want: domain.StageWillJoin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveDropTarget(CollisionInput{
				Pointer:     Point{X: tc.pointerX, Y: 100},
				BoardRect:   boardRect,
				ScrollLeft:  tc.scrollLeft,
				ScrollWidth: 1200,
				Stages:      stages,
			})
			if !ok || got != tc.want {
				t.Fatalf("ResolveDropTarget() = %q, %t; want %q", got, ok, tc.want)
			}
		})
	}
}

func TestResolveDropTargetClampsOverflow(t *testing.T) {
	// pointerXInContent = 600 + 650 = 1250 exceeds the 1200 strip.
	got, ok := ResolveDropTarget(CollisionInput{
		Pointer:     Point{X: 650, Y: 10},
		BoardRect:   Rect{Left: 0, Top: 0, Width: 700, Height: 100},
		ScrollLeft:  600,
		ScrollWidth: 1200,
		Stages:      sixStages(),
	})
	if !ok || got != domain.StageUninterestedNoResponse {
		t.Fatalf("expected last stage, got %q ok=%t", got, ok)
	}
}

func TestResolveDropTargetFallsBackOutsideBoard(t *testing.T) {
	droppables := []Droppable{
		{Stage: domain.StageNew, Rect: Rect{Left: 0, Top: 0, Width: 100, Height: 100}},
		{Stage: domain.StageContacted, Rect: Rect{Left: 100, Top: 0, Width: 100, Height: 100}},
	}
	in := CollisionInput{
		Pointer:     Point{X: 150, Y: 150},
		BoardRect:   Rect{Left: 0, Top: 0, Width: 200, Height: 120},
		ScrollWidth: 1200,
		Stages:      sixStages(),
		Droppables:  droppables,
	}
	if _, ok := ResolveDropTarget(in); ok {
		t.Fatal("expected no target outside every droppable")
	}
	in.Droppables = append(in.Droppables, Droppable{Stage: domain.StageJoined, Rect: Rect{Left: 100, Top: 140, Width: 100, Height: 40}})
	got, ok := ResolveDropTarget(in)
	if !ok || got != domain.StageJoined {
		t.Fatalf("expected fallback hit on joined, got %q ok=%t", got, ok)
	}
}

func TestResolveDropTargetUnknownScrollWidthFallsBack(t *testing.T) {
	in := CollisionInput{
		Pointer:    Point{X: 100, Y: 10},
		BoardRect:  Rect{Width: 200, Height: 100},
		Stages:     sixStages(),
		Droppables: []Droppable{{Stage: domain.StageContacted, Rect: Rect{Left: 100, Width: 100, Height: 100}}},
	}
	got, ok := ResolveDropTarget(in)
	if !ok || got != domain.StageContacted {
		t.Fatalf("expected hit-test fallback, got %q ok=%t", got, ok)
	}
	if _, ok := ResolveDropTarget(CollisionInput{Pointer: Point{}, BoardRect: Rect{Width: 10, Height: 10}, ScrollWidth: 10}); ok {
		t.Fatal("expected no target without stages")
	}
}
