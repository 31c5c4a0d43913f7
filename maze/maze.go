// Package maze builds the wall layout for a round from an integer seed.
//
// Layouts are perfect mazes carved with Wilson's loop-erased random walk, so
// every cell is reachable from every other one. The same seed always yields
// the same walls in the same order, which lets the server ship only the seed.
package maze

import (
	"errors"
	"math/rand/v2"

	"github.com/earthtowalt/hide-and-seek/geometry"
)

var (
	ErrNotBigEnoughDimension = errors.New("maze dimension is not big enough")
	ErrInvalidCellSize       = errors.New("maze cell size must be positive")
)

const minDimension = 2

// Generator produces Size×Size cell mazes where each cell is CellSize units wide.
type Generator struct {
	Size     int
	CellSize float64
}

// New validates the dimensions and returns a Generator.
func New(size int, cellSize float64) (*Generator, error) {
	if size < minDimension {
		return nil, ErrNotBigEnoughDimension
	}
	if cellSize <= 0 {
		return nil, ErrInvalidCellSize
	}
	return &Generator{Size: size, CellSize: cellSize}, nil
}

// Center returns the middle of the maze, where players spawn.
func (g *Generator) Center() geometry.Point {
	half := float64(g.Size) * g.CellSize / 2
	return geometry.Point{X: half, Y: half}
}

// Generate returns the walls for seed: the four outer walls first, then every
// interior wall in row-major cell order.
func (g *Generator) Generate(seed int64) []geometry.Segment {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	east, south := g.carve(rng)

	n := g.Size
	s := g.CellSize
	extent := float64(n) * s

	walls := []geometry.Segment{
		{X1: 0, Y1: 0, X2: extent, Y2: 0},
		{X1: extent, Y1: 0, X2: extent, Y2: extent},
		{X1: extent, Y1: extent, X2: 0, Y2: extent},
		{X1: 0, Y1: extent, X2: 0, Y2: 0},
	}

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			x0, y0 := float64(c)*s, float64(r)*s
			if c < n-1 && !east[i] {
				walls = append(walls, geometry.Segment{X1: x0 + s, Y1: y0, X2: x0 + s, Y2: y0 + s})
			}
			if r < n-1 && !south[i] {
				walls = append(walls, geometry.Segment{X1: x0, Y1: y0 + s, X2: x0 + s, Y2: y0 + s})
			}
		}
	}
	return walls
}

// carve runs Wilson's algorithm and reports, per cell index, whether the
// passage to the east and to the south neighbour is open.
func (g *Generator) carve(rng *rand.Rand) (east, south []bool) {
	n := g.Size
	cells := n * n
	east = make([]bool, cells)
	south = make([]bool, cells)
	inMaze := make([]bool, cells)
	next := make([]int, cells)

	inMaze[rng.IntN(cells)] = true

	for _, start := range rng.Perm(cells) {
		if inMaze[start] {
			continue
		}

		// Random walk until the maze is hit; overwriting next erases loops.
		cur := start
		for !inMaze[cur] {
			nb := g.neighbours(cur)
			next[cur] = nb[rng.IntN(len(nb))]
			cur = next[cur]
		}

		for cur = start; !inMaze[cur]; cur = next[cur] {
			inMaze[cur] = true
			g.open(east, south, cur, next[cur])
		}
	}
	return east, south
}

func (g *Generator) neighbours(i int) []int {
	n := g.Size
	r, c := i/n, i%n
	nb := make([]int, 0, 4)
	if r > 0 {
		nb = append(nb, i-n)
	}
	if r < n-1 {
		nb = append(nb, i+n)
	}
	if c > 0 {
		nb = append(nb, i-1)
	}
	if c < n-1 {
		nb = append(nb, i+1)
	}
	return nb
}

func (g *Generator) open(east, south []bool, a, b int) {
	if a > b {
		a, b = b, a
	}
	if b-a == 1 {
		east[a] = true
	} else {
		south[a] = true
	}
}
