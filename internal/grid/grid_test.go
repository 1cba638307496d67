package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGrid makes a w×h grid with all tiles passable except the listed
// blocked coordinates.
func buildGrid(t *testing.T, w, h int, blocked ...Pos) *Grid {
	t.Helper()
	ground := make([]int, w*h)
	collision := make([]int, w*h)
	for i := range ground {
		ground[i] = 1
	}
	for _, b := range blocked {
		collision[b.TY*w+b.TX] = 1
	}
	g, err := LoadFromTiledData(w, h, ground, collision)
	require.NoError(t, err)
	return g
}

func TestLoadFromTiledDataValidation(t *testing.T) {
	ground := make([]int, 4)
	collision := make([]int, 4)

	_, err := LoadFromTiledData(0, 2, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMap)

	_, err = LoadFromTiledData(2, 2, ground[:3], collision)
	assert.ErrorIs(t, err, ErrInvalidMap)

	_, err = LoadFromTiledData(2, 2, ground, collision[:3])
	assert.ErrorIs(t, err, ErrInvalidMap)

	bad := []int{0, 0, 2, 0}
	_, err = LoadFromTiledData(2, 2, ground, bad)
	assert.ErrorIs(t, err, ErrInvalidMap)

	g, err := LoadFromTiledData(2, 2, ground, collision)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Width)
	assert.Equal(t, 2, g.Height)
}

func TestIsBlockedOutOfBounds(t *testing.T) {
	g := buildGrid(t, 4, 4, Pos{TX: 1, TY: 1})

	assert.True(t, g.IsBlocked(1, 1))
	assert.False(t, g.IsBlocked(0, 0))
	assert.True(t, g.IsBlocked(-1, 0))
	assert.True(t, g.IsBlocked(0, 4))
	assert.True(t, g.IsBlocked(4, 0))
}

func TestCanMoveToNeighborsOnly(t *testing.T) {
	g := buildGrid(t, 5, 5)

	from := Pos{TX: 2, TY: 2}
	assert.True(t, g.CanMoveTo(from, Pos{TX: 2, TY: 1}))
	assert.True(t, g.CanMoveTo(from, Pos{TX: 3, TY: 3}))
	assert.False(t, g.CanMoveTo(from, from), "zero step is not a move")
	assert.False(t, g.CanMoveTo(from, Pos{TX: 2, TY: 4}), "two tiles away")
}

func TestCanMoveToDiagonalCornerCut(t *testing.T) {
	// Both orthogonal neighbors of the diagonal are walls: the corner may
	// not be cut.
	g := buildGrid(t, 4, 4, Pos{TX: 2, TY: 1}, Pos{TX: 1, TY: 2})
	from := Pos{TX: 1, TY: 1}
	to := Pos{TX: 2, TY: 2}
	assert.False(t, g.CanMoveTo(from, to))

	// One orthogonal open is enough.
	g2 := buildGrid(t, 4, 4, Pos{TX: 2, TY: 1})
	assert.True(t, g2.CanMoveTo(from, to))
}

func TestWorldTileConversion(t *testing.T) {
	p := WorldToTile(95.9, 32.0)
	assert.Equal(t, Pos{TX: 2, TY: 1}, p)

	x, y := TileCenter(Pos{TX: 2, TY: 1})
	assert.Equal(t, 80.0, x)
	assert.Equal(t, 48.0, y)

	// tile(center(p)) == p round trip
	assert.Equal(t, Pos{TX: 2, TY: 1}, WorldToTile(x, y))
}

func TestFirstPassable(t *testing.T) {
	g := buildGrid(t, 3, 3,
		Pos{TX: 0, TY: 0}, Pos{TX: 1, TY: 0}, Pos{TX: 2, TY: 0},
		Pos{TX: 0, TY: 1},
	)
	p, ok := g.FirstPassable()
	require.True(t, ok)
	assert.Equal(t, Pos{TX: 1, TY: 1}, p)
}

func TestFindPathStraightLine(t *testing.T) {
	g := buildGrid(t, 6, 6)
	path, ok := g.FindPath(Pos{TX: 0, TY: 0}, Pos{TX: 3, TY: 0}, 0)
	require.True(t, ok)
	assert.Equal(t, []Pos{{TX: 1, TY: 0}, {TX: 2, TY: 0}, {TX: 3, TY: 0}}, path)
}

func TestFindPathSameTile(t *testing.T) {
	g := buildGrid(t, 3, 3)
	path, ok := g.FindPath(Pos{TX: 1, TY: 1}, Pos{TX: 1, TY: 1}, 0)
	assert.True(t, ok)
	assert.Empty(t, path)
}

func TestFindPathAroundWall(t *testing.T) {
	// Vertical wall at tx=2 with a gap at ty=0.
	g := buildGrid(t, 5, 5,
		Pos{TX: 2, TY: 1}, Pos{TX: 2, TY: 2}, Pos{TX: 2, TY: 3}, Pos{TX: 2, TY: 4},
	)
	path, ok := g.FindPath(Pos{TX: 0, TY: 2}, Pos{TX: 4, TY: 2}, 0)
	require.True(t, ok)
	assert.Equal(t, Pos{TX: 4, TY: 2}, path[len(path)-1])
	for _, p := range path {
		assert.False(t, g.IsBlocked(p.TX, p.TY))
	}
}

func TestFindPathUnreachable(t *testing.T) {
	g := buildGrid(t, 5, 5,
		Pos{TX: 2, TY: 0}, Pos{TX: 2, TY: 1}, Pos{TX: 2, TY: 2}, Pos{TX: 2, TY: 3}, Pos{TX: 2, TY: 4},
	)
	_, ok := g.FindPath(Pos{TX: 0, TY: 0}, Pos{TX: 4, TY: 0}, 0)
	assert.False(t, ok)

	_, ok = g.FindPath(Pos{TX: 0, TY: 0}, Pos{TX: 2, TY: 2}, 0)
	assert.False(t, ok, "blocked destination")
}

func TestFindPathNodeBudget(t *testing.T) {
	g := buildGrid(t, 20, 20)
	_, ok := g.FindPath(Pos{TX: 0, TY: 0}, Pos{TX: 19, TY: 19}, 5)
	assert.False(t, ok, "budget too small to reach the goal")
}

func TestFindPathDeterministicTieBreak(t *testing.T) {
	g := buildGrid(t, 5, 5)
	a, ok := g.FindPath(Pos{TX: 2, TY: 2}, Pos{TX: 3, TY: 1}, 0)
	require.True(t, ok)
	b, ok := g.FindPath(Pos{TX: 2, TY: 2}, Pos{TX: 3, TY: 1}, 0)
	require.True(t, ok)
	assert.Equal(t, a, b)
	// Up expands before right, so the first step of the tie is up.
	assert.Equal(t, Pos{TX: 2, TY: 1}, a[0])
}
