// Package pack loads an on-disk map pack: a manifest.json plus per-zone
// tilemap JSON files following the Tiled schema. Packs are loaded once at
// startup and never mutated afterwards.
package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tilemud/server/internal/grid"
)

// Manifest is the pack's top-level descriptor.
type Manifest struct {
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Zones     []ZoneEntry `json:"zones"`
	EntryZone string      `json:"entryZone"`
}

// ZoneEntry names one zone, its tilemap file, and its rectangle in world
// units. Rectangle order in the manifest is the lookup order for zoneAt.
type ZoneEntry struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	Bounds  Rect   `json:"bounds"`
	Meeting bool   `json:"meeting"` // zone doubles as a meeting room
}

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether the point lies inside the rectangle. The right
// and bottom edges are exclusive so adjacent zones do not overlap.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

// Object is an interactable placed by the tilemap's objects layer.
type Object struct {
	Name       string
	Type       string // "sign", "chest", "door", "npc", ...
	X, Y       float64
	Properties map[string]string
}

// Pack is a fully loaded map pack.
type Pack struct {
	Manifest Manifest
	Grid     *grid.Grid // entry zone tilemap; the room's authoritative grid
	Objects  []Object
	SpawnTX  int
	SpawnTY  int
	HasSpawn bool
}

// Tiled schema subset. Layer data is a flat row-major array of tile GIDs.
type tiledMap struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Layers []tiledLayer `json:"layers"`
}

type tiledLayer struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Data    []int         `json:"data"`
	Objects []tiledObject `json:"objects"`
}

type tiledObject struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Properties []tiledProperty `json:"properties"`
}

type tiledProperty struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Load reads manifest.json from dir and builds the pack. The entry zone's
// tilemap becomes the room grid; zone rectangles come from the manifest.
func Load(dir string) (*Pack, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Zones) == 0 {
		return nil, fmt.Errorf("pack %s: no zones", m.Name)
	}

	entry := m.Zones[0]
	if m.EntryZone != "" {
		found := false
		for _, z := range m.Zones {
			if z.ID == m.EntryZone {
				entry = z
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("pack %s: entryZone %q not in zones", m.Name, m.EntryZone)
		}
	}

	p := &Pack{Manifest: m}
	if err := p.loadTilemap(filepath.Join(dir, entry.File)); err != nil {
		return nil, fmt.Errorf("zone %s: %w", entry.ID, err)
	}

	// Stamp zone ids onto tiles for observation responses.
	for ty := 0; ty < p.Grid.Height; ty++ {
		for tx := 0; tx < p.Grid.Width; tx++ {
			cx, cy := grid.TileCenter(grid.Pos{TX: tx, TY: ty})
			for _, z := range m.Zones {
				if z.Bounds.Contains(cx, cy) {
					p.Grid.SetZone(tx, ty, z.ID)
					break
				}
			}
		}
	}
	return p, nil
}

func (p *Pack) loadTilemap(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tilemap: %w", err)
	}
	var tm tiledMap
	if err := json.Unmarshal(raw, &tm); err != nil {
		return fmt.Errorf("parse tilemap: %w", err)
	}

	var ground, collision []int
	var objects []tiledObject
	for _, layer := range tm.Layers {
		switch layer.Name {
		case "ground":
			ground = layer.Data
		case "collision":
			collision = layer.Data
		case "objects":
			objects = layer.Objects
		}
	}
	if ground == nil || collision == nil {
		return fmt.Errorf("%w: tilemap needs ground and collision layers", grid.ErrInvalidMap)
	}

	g, err := grid.LoadFromTiledData(tm.Width, tm.Height, ground, collision)
	if err != nil {
		return err
	}
	p.Grid = g

	for _, o := range objects {
		props := make(map[string]string, len(o.Properties))
		for _, prop := range o.Properties {
			props[prop.Name] = fmt.Sprintf("%v", prop.Value)
		}
		if o.Type == "spawn" {
			t := grid.WorldToTile(o.X, o.Y)
			p.SpawnTX, p.SpawnTY = t.TX, t.TY
			p.HasSpawn = true
			continue
		}
		if o.Type == "door" {
			t := grid.WorldToTile(o.X, o.Y)
			g.SetDoor(t.TX, t.TY)
		}
		p.Objects = append(p.Objects, Object{
			Name:       o.Name,
			Type:       o.Type,
			X:          o.X,
			Y:          o.Y,
			Properties: props,
		})
	}
	return nil
}

// MeetingZones returns the ids of zones flagged as meeting rooms.
func (p *Pack) MeetingZones() []string {
	var out []string
	for _, z := range p.Manifest.Zones {
		if z.Meeting {
			out = append(out, z.ID)
		}
	}
	return out
}
