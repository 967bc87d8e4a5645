package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the YAML layout of a scenario file.
type scenarioFile struct {
	Scenarios []scenarioEntry `yaml:"scenarios"`
}

type scenarioEntry struct {
	Name       string   `yaml:"name"`
	Setup      []string `yaml:"setup,omitempty"`
	Prompt     string   `yaml:"prompt"`
	Indicators []string `yaml:"indicators"`
	// Policy is "all" (default), "any" or "at-least:N".
	Policy string `yaml:"policy,omitempty"`
}

// LoadFile reads scenarios from a YAML file.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenarios, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Parse decodes scenarios from YAML.
func Parse(data []byte) ([]Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("no scenarios defined")
	}

	scenarios := make([]Scenario, 0, len(file.Scenarios))
	for i, entry := range file.Scenarios {
		if entry.Name == "" {
			return nil, fmt.Errorf("scenario %d: name is required", i+1)
		}
		if entry.Prompt == "" {
			return nil, fmt.Errorf("scenario %q: prompt is required", entry.Name)
		}
		if len(entry.Indicators) == 0 {
			return nil, fmt.Errorf("scenario %q: at least one indicator is required", entry.Name)
		}
		policy, err := ParsePolicy(entry.Policy)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", entry.Name, err)
		}
		scenarios = append(scenarios, Scenario{
			Name:       entry.Name,
			Setup:      entry.Setup,
			Prompt:     entry.Prompt,
			Indicators: entry.Indicators,
			Policy:     policy,
		})
	}
	return scenarios, nil
}
