package staircase

import (
	"errors"
	"testing"
)

func TestSnapNearestWithFirstOccurrenceTies(t *testing.T) {
	g, err := NewLevelGrid([]float64{3, 1, 2})
	if err != nil {
		t.Fatalf("NewLevelGrid: %v", err)
	}
	tests := []struct {
		req   float64
		level float64
		idx   int
	}{
		{2.5, 3, 0},
		{1.5, 1, 1},
		{1.9, 2, 2},
		{-10, 1, 1},
		{99, 3, 0},
	}
	for _, tt := range tests {
		level, idx := g.Snap(tt.req)
		if level != tt.level || idx != tt.idx {
			t.Errorf("Snap(%g) = %g,%d; want %g,%d", tt.req, level, idx, tt.level, tt.idx)
		}
	}
	if g.Min() != 1 || g.Max() != 3 {
		t.Fatalf("unexpected extrema %g, %g", g.Min(), g.Max())
	}
}

func TestNewLevelGridEmpty(t *testing.T) {
	if _, err := NewLevelGrid(nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}
