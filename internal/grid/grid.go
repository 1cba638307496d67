// Package grid holds the immutable tile and collision grid for one map.
// A grid never changes for the lifetime of its room; all methods are safe
// for concurrent readers.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// TileSize is the width of one tile in world units (pixels).
const TileSize = 32

var ErrInvalidMap = errors.New("invalid map")

// Tile is one cell of the grid.
type Tile struct {
	Type     int
	Blocking bool
	IsDoor   bool
	ZoneID   string
}

// Pos is an integer tile coordinate.
type Pos struct {
	TX int `json:"tx"`
	TY int `json:"ty"`
}

// Grid is a 2-D tile array indexed [ty][tx].
type Grid struct {
	Width  int
	Height int
	tiles  [][]Tile
}

// LoadFromTiledData builds a grid from flat ground and collision layers in
// row-major order, as exported by the Tiled editor. Both layers must have
// exactly width*height entries and collision values must be 0 or 1.
func LoadFromTiledData(width, height int, ground, collision []int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrInvalidMap, width, height)
	}
	if len(ground) != width*height {
		return nil, fmt.Errorf("%w: ground layer has %d cells, want %d", ErrInvalidMap, len(ground), width*height)
	}
	if len(collision) != width*height {
		return nil, fmt.Errorf("%w: collision layer has %d cells, want %d", ErrInvalidMap, len(collision), width*height)
	}

	tiles := make([][]Tile, height)
	for ty := 0; ty < height; ty++ {
		row := make([]Tile, width)
		for tx := 0; tx < width; tx++ {
			c := collision[ty*width+tx]
			if c != 0 && c != 1 {
				return nil, fmt.Errorf("%w: collision[%d]=%d, want 0 or 1", ErrInvalidMap, ty*width+tx, c)
			}
			row[tx] = Tile{
				Type:     ground[ty*width+tx],
				Blocking: c == 1,
			}
		}
		tiles[ty] = row
	}
	return &Grid{Width: width, Height: height, tiles: tiles}, nil
}

// At returns the tile at (tx,ty). Out-of-bounds yields a blocking tile.
func (g *Grid) At(tx, ty int) Tile {
	if tx < 0 || ty < 0 || tx >= g.Width || ty >= g.Height {
		return Tile{Blocking: true}
	}
	return g.tiles[ty][tx]
}

// SetDoor marks a tile as a door. Called only during construction, before
// the grid is shared.
func (g *Grid) SetDoor(tx, ty int) {
	if tx >= 0 && ty >= 0 && tx < g.Width && ty < g.Height {
		g.tiles[ty][tx].IsDoor = true
	}
}

// SetZone assigns a zone id to a tile during construction.
func (g *Grid) SetZone(tx, ty int, zoneID string) {
	if tx >= 0 && ty >= 0 && tx < g.Width && ty < g.Height {
		g.tiles[ty][tx].ZoneID = zoneID
	}
}

// IsBlocked reports whether (tx,ty) is out of bounds or has collision.
func (g *Grid) IsBlocked(tx, ty int) bool {
	return g.At(tx, ty).Blocking
}

// InBounds reports whether the tile coordinate lies on the grid.
func (g *Grid) InBounds(tx, ty int) bool {
	return tx >= 0 && ty >= 0 && tx < g.Width && ty < g.Height
}

// CanMoveTo permits single-step moves between 4- or 8-neighbors. Diagonal
// steps additionally require at least one passable orthogonal neighbor so
// entities cannot cut corners through walls.
func (g *Grid) CanMoveTo(from, to Pos) bool {
	dx := to.TX - from.TX
	dy := to.TY - from.TY
	if dx == 0 && dy == 0 {
		return false
	}
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
		return false
	}
	if g.IsBlocked(to.TX, to.TY) {
		return false
	}
	if dx != 0 && dy != 0 {
		if g.IsBlocked(from.TX+dx, from.TY) && g.IsBlocked(from.TX, from.TY+dy) {
			return false
		}
	}
	return true
}

// WorldToTile converts world coordinates to the containing tile.
func WorldToTile(x, y float64) Pos {
	return Pos{TX: int(math.Floor(x / TileSize)), TY: int(math.Floor(y / TileSize))}
}

// TileCenter returns the world coordinate of a tile's center.
func TileCenter(p Pos) (float64, float64) {
	return float64(p.TX)*TileSize + TileSize/2, float64(p.TY)*TileSize + TileSize/2
}

// FirstPassable scans row-major for the first non-blocking tile. Used as a
// spawn fallback when the pack does not configure a spawn point.
func (g *Grid) FirstPassable() (Pos, bool) {
	for ty := 0; ty < g.Height; ty++ {
		for tx := 0; tx < g.Width; tx++ {
			if !g.tiles[ty][tx].Blocking {
				return Pos{TX: tx, TY: ty}, true
			}
		}
	}
	return Pos{}, false
}
