package room

// EntityView is the transport-facing projection of an entity. Views are
// plain values so diffing is a field comparison, not reflection over
// change callbacks.
type EntityView struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	TX          int               `json:"tx"`
	TY          int               `json:"ty"`
	Facing      string            `json:"facing"`
	Status      string            `json:"status"`
	CurrentZone string            `json:"currentZone,omitempty"`
	Title       string            `json:"title,omitempty"`
	Department  string            `json:"department,omitempty"`
	TeamID      string            `json:"teamId,omitempty"`
	Affordances []string          `json:"affordances,omitempty"`
	State       map[string]string `json:"state,omitempty"`
}

// EntityPatch is a sparse per-entity field change.
type EntityPatch struct {
	ID    string         `json:"id"`
	Patch map[string]any `json:"patch"`
}

// StateDiff is the per-tick delta published to the realtime transport.
type StateDiff struct {
	RoomID  string        `json:"roomId"`
	Added   []EntityView  `json:"added,omitempty"`
	Removed []string      `json:"removed,omitempty"`
	Changed []EntityPatch `json:"changed,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d StateDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func viewOf(e *Entity) EntityView {
	v := EntityView{
		ID:          e.ID,
		Kind:        string(e.Kind),
		Name:        e.Name,
		X:           e.X,
		Y:           e.Y,
		TX:          e.TX,
		TY:          e.TY,
		Facing:      string(e.Facing),
		Status:      string(e.Status),
		CurrentZone: e.CurrentZone,
		Title:       e.Title,
		Department:  e.Department,
		TeamID:      e.TeamID,
	}
	if len(e.Affordances) > 0 {
		v.Affordances = append([]string(nil), e.Affordances...)
	}
	if len(e.State) > 0 {
		v.State = make(map[string]string, len(e.State))
		for k, val := range e.State {
			v.State[k] = val
		}
	}
	return v
}

// patchBetween computes the sparse field delta from prev to cur. Returns
// nil when nothing changed.
func patchBetween(prev, cur EntityView) map[string]any {
	p := make(map[string]any)
	if prev.X != cur.X || prev.Y != cur.Y {
		p["x"], p["y"] = cur.X, cur.Y
		p["tx"], p["ty"] = cur.TX, cur.TY
	}
	if prev.Facing != cur.Facing {
		p["facing"] = cur.Facing
	}
	if prev.Status != cur.Status {
		p["status"] = cur.Status
	}
	if prev.CurrentZone != cur.CurrentZone {
		p["currentZone"] = cur.CurrentZone
	}
	if prev.Title != cur.Title {
		p["title"] = cur.Title
	}
	if prev.Department != cur.Department {
		p["department"] = cur.Department
	}
	if prev.TeamID != cur.TeamID {
		p["teamId"] = cur.TeamID
	}
	if prev.Name != cur.Name {
		p["name"] = cur.Name
	}
	if !stateEqual(prev.State, cur.State) {
		p["state"] = cur.State
	}
	if len(p) == 0 {
		return nil
	}
	return p
}

func stateEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
