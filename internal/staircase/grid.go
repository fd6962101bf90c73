package staircase

import (
	"fmt"
	"math"
)

// #region level-grid
// LevelGrid is the immutable set of candidate intensities. Order is preserved
// as given and need not be sorted.
type LevelGrid struct {
	levels []float64
	min    float64
	max    float64
}

// NewLevelGrid validates levels and returns a grid holding its own copy.
func NewLevelGrid(levels []float64) (LevelGrid, error) {
	if len(levels) == 0 {
		return LevelGrid{}, fmt.Errorf("%w: level grid is empty", ErrInvalidConfiguration)
	}
	seen := make(map[float64]struct{}, len(levels))
	g := LevelGrid{
		levels: append([]float64(nil), levels...),
		min:    math.Inf(1),
		max:    math.Inf(-1),
	}
	for i, l := range g.levels {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return LevelGrid{}, fmt.Errorf("%w: level %d is not finite", ErrInvalidConfiguration, i)
		}
		if _, dup := seen[l]; dup {
			return LevelGrid{}, fmt.Errorf("%w: duplicate level %g", ErrInvalidConfiguration, l)
		}
		seen[l] = struct{}{}
		g.min = math.Min(g.min, l)
		g.max = math.Max(g.max, l)
	}
	return g, nil
}

// #endregion level-grid

// #region accessors
func (g LevelGrid) Len() int         { return len(g.levels) }
func (g LevelGrid) Min() float64     { return g.min }
func (g LevelGrid) Max() float64     { return g.max }
func (g LevelGrid) At(i int) float64 { return g.levels[i] }

// Levels returns a copy of the grid in stored order.
func (g LevelGrid) Levels() []float64 {
	return append([]float64(nil), g.levels...)
}

// #endregion accessors

// #region snap
// Snap returns the grid level closest to requested and its index.
// Ties go to the level stored first.
func (g LevelGrid) Snap(requested float64) (float64, int) {
	best := 0
	bestDiff := math.Abs(g.levels[0] - requested)
	for i := 1; i < len(g.levels); i++ {
		if d := math.Abs(g.levels[i] - requested); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return g.levels[best], best
}

// #endregion snap
