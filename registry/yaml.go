package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// yamlTestFile mirrors the on-disk YAML test source schema.
type yamlTestFile struct {
	Name   string         `yaml:"name"`
	PICS   []string       `yaml:"PICS"`
	Config map[string]any `yaml:"config"`
	Tests  []yamlTestStep `yaml:"tests"`
}

type yamlTestStep struct {
	Label         string `yaml:"label"`
	Command       string `yaml:"command"`
	Verification  string `yaml:"verification"`
	Disabled      bool   `yaml:"disabled"`
	Commissioning bool   `yaml:"commissioning"`
}

// parseYAMLTest reads and validates a single YAML test source.
func parseYAMLTest(path string) (parsedTest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedTest{}, fmt.Errorf("failed to read test source: %w", err)
	}

	var file yamlTestFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return parsedTest{}, fmt.Errorf("invalid YAML test source %s: %w", path, err)
	}
	if file.Name == "" {
		return parsedTest{}, fmt.Errorf("YAML test source %s has no name", path)
	}

	steps := make([]types.StepDeclaration, 0, len(file.Tests))
	for _, s := range file.Tests {
		steps = append(steps, types.StepDeclaration{
			Label:         s.Label,
			Command:       s.Command,
			Verification:  s.Verification,
			Disabled:      s.Disabled,
			Commissioning: s.Commissioning,
		})
	}

	return parsedTest{
		Name:   file.Name,
		PICS:   file.PICS,
		Config: file.Config,
		Steps:  steps,
		Path:   path,
	}, nil
}
