package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Dosada05/colosseum/models"
	"gopkg.in/yaml.v3"
)

// TournamentTemplate describes one family of automatically created
// tournaments. Name is a format string receiving the sequence number.
type TournamentTemplate struct {
	Name string                `yaml:"name"`
	Mode models.TournamentMode `yaml:"mode"`
	// Game is a game name; empty means the first active game.
	Game string `yaml:"game,omitempty"`
}

type Automation struct {
	Tournaments []TournamentTemplate `yaml:"tournaments"`
}

func DefaultAutomation() *Automation {
	return &Automation{Tournaments: []TournamentTemplate{
		{Name: "Automated Daily Tournament #%d", Mode: models.ModeTimed},
		{Name: "Automated Round Robin Tournament #%d", Mode: models.ModeRoundRobin},
		{Name: "Automated Double Round Robin Tournament #%d", Mode: models.ModeDoubleRoundRobin},
		{Name: "Automated Triple Round Robin Tournament #%d", Mode: models.ModeTripleRoundRobin},
	}}
}

// LoadAutomation reads templates from a YAML file. An empty path yields the
// defaults.
func LoadAutomation(path string) (*Automation, error) {
	if path == "" {
		return DefaultAutomation(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read automation file: %w", err)
	}
	return ParseAutomation(raw)
}

func ParseAutomation(raw []byte) (*Automation, error) {
	var a Automation
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to parse automation file: %w", err)
	}
	seen := make(map[models.TournamentMode]bool, len(a.Tournaments))
	for i, tpl := range a.Tournaments {
		if !tpl.Mode.Valid() {
			return nil, fmt.Errorf("automation template %d: unknown mode %q", i, tpl.Mode)
		}
		if seen[tpl.Mode] {
			return nil, fmt.Errorf("automation template %d: mode %s listed twice", i, tpl.Mode)
		}
		seen[tpl.Mode] = true
		if strings.Count(tpl.Name, "%d") != 1 {
			return nil, fmt.Errorf("automation template %d: name must contain exactly one %%d", i)
		}
	}
	return &a, nil
}
