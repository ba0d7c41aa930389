// Package skillfile loads capability manifests authored as YAML, the format
// agents check into their repos next to the code that implements the skills.
package skillfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agora/internal/protocol"
)

type skillFile struct {
	Skills []skill `yaml:"skills"`
}

type skill struct {
	SkillID     string   `yaml:"skill_id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Actions     []action `yaml:"actions"`
}

type action struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Load reads a skills YAML file and returns the capability groups it
// declares. Structural validation (unique skill ids and so on) happens at
// registration, not here.
func Load(path string) ([]protocol.CapabilityGroup, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skills file %s: %w", path, err)
	}
	var f skillFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse skills file %s: %w", path, err)
	}

	groups := make([]protocol.CapabilityGroup, 0, len(f.Skills))
	for _, s := range f.Skills {
		g := protocol.CapabilityGroup{
			SkillID:     s.SkillID,
			Name:        s.Name,
			Description: s.Description,
		}
		for _, a := range s.Actions {
			g.Actions = append(g.Actions, protocol.Capability{
				Name:        a.Name,
				Description: a.Description,
				Tags:        a.Tags,
			})
		}
		groups = append(groups, g)
	}
	return groups, nil
}
