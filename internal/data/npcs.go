package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NpcTemplate is a server-defined NPC: where it stands, what actions it
// advertises, and which Lua hook answers "talk".
type NpcTemplate struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	TX      int      `yaml:"tx"`
	TY      int      `yaml:"ty"`
	Actions []string `yaml:"actions"`
	Script  string   `yaml:"script"`
	Wander  bool     `yaml:"wander"`
}

// NpcTable holds all NPC templates in file order.
type NpcTable struct {
	npcs []NpcTemplate
}

type npcListFile struct {
	Npcs []NpcTemplate `yaml:"npcs"`
}

// LoadNpcTable reads npc_list.yaml. A missing file is not an error; rooms
// simply spawn without NPCs.
func LoadNpcTable(path string) (*NpcTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &NpcTable{}, nil
		}
		return nil, fmt.Errorf("read npc list %s: %w", path, err)
	}
	var file npcListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse npc list: %w", err)
	}
	for i, n := range file.Npcs {
		if n.ID == "" {
			return nil, fmt.Errorf("npc list: npc %d has no id", i)
		}
	}
	return &NpcTable{npcs: file.Npcs}, nil
}

// All returns templates in file order.
func (t *NpcTable) All() []NpcTemplate {
	return t.npcs
}

// Count returns the number of loaded templates.
func (t *NpcTable) Count() int {
	return len(t.npcs)
}
