// Package data loads static game tables from YAML at startup, mirroring the
// pack directory split: skills and NPC templates are server data, maps are
// pack assets.
package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkillDef describes one installable skill and its actions. The json tags
// are the AIC skill/list wire shape.
type SkillDef struct {
	ID       string      `yaml:"id" json:"id"`
	Name     string      `yaml:"name" json:"name"`
	Category string      `yaml:"category" json:"category"`
	Actions  []ActionDef `yaml:"actions" json:"actions"`
}

// ActionDef is a single invocable action of a skill.
type ActionDef struct {
	ID         string     `yaml:"id" json:"id"`
	CooldownMs int64      `yaml:"cooldown_ms" json:"cooldownMs"`
	CastTimeMs int64      `yaml:"cast_time_ms" json:"castTimeMs"`
	RangeUnits float64    `yaml:"range_units" json:"rangeUnits"`
	Effect     *EffectDef `yaml:"effect" json:"effect,omitempty"`
}

// EffectDef is the timed effect an action applies to its target.
type EffectDef struct {
	Type            string  `yaml:"type" json:"type"`
	SpeedMultiplier float64 `yaml:"speed_multiplier" json:"speedMultiplier,omitempty"`
	DurationMs      int64   `yaml:"duration_ms" json:"durationMs"`
}

// SkillTable indexes skill definitions by id.
type SkillTable struct {
	skills map[string]*SkillDef
	order  []string
}

type skillListFile struct {
	Skills []SkillDef `yaml:"skills"`
}

// LoadSkillTable reads skill_list.yaml. Action ids must be unique across
// skills because cooldowns are tracked per action id.
func LoadSkillTable(path string) (*SkillTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill list %s: %w", path, err)
	}
	var file skillListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse skill list: %w", err)
	}

	t := &SkillTable{skills: make(map[string]*SkillDef, len(file.Skills))}
	seen := make(map[string]string)
	for i := range file.Skills {
		s := &file.Skills[i]
		if s.ID == "" {
			return nil, fmt.Errorf("skill list: skill %d has no id", i)
		}
		if _, dup := t.skills[s.ID]; dup {
			return nil, fmt.Errorf("skill list: duplicate skill id %q", s.ID)
		}
		for _, a := range s.Actions {
			if owner, dup := seen[a.ID]; dup {
				return nil, fmt.Errorf("skill list: action %q in both %q and %q", a.ID, owner, s.ID)
			}
			seen[a.ID] = s.ID
		}
		t.skills[s.ID] = s
		t.order = append(t.order, s.ID)
	}
	return t, nil
}

// Get returns a skill definition, or nil.
func (t *SkillTable) Get(id string) *SkillDef {
	return t.skills[id]
}

// All returns skills in file order.
func (t *SkillTable) All() []*SkillDef {
	out := make([]*SkillDef, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.skills[id])
	}
	return out
}

// Count returns the number of loaded skills.
func (t *SkillTable) Count() int {
	return len(t.skills)
}
