package suite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Suite is an evaluation test suite loaded from a YAML file: a set of named
// DDL schemas and the cases to score against them.
type Suite struct {
	Schemas map[string]string `yaml:"schemas"`
	Cases   []Case            `yaml:"cases"`
}

// Case is one evaluation row: a question, the predicted SQL and the name of
// the schema it runs against.
type Case struct {
	ID       string `yaml:"id"`
	UseCase  string `yaml:"use_case"`
	Schema   string `yaml:"schema"`
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

// LoadFromFile reads a YAML suite file and returns a validated Suite.
func LoadFromFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite YAML: %w", err)
	}

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("validating suite: %w", err)
	}

	return &s, nil
}

func validate(s *Suite) error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite contains no cases")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.ID == "" {
			return fmt.Errorf("cases[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("cases[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true

		if c.SQL == "" {
			return fmt.Errorf("cases[%q]: sql is required", c.ID)
		}
		if c.Schema == "" {
			return fmt.Errorf("cases[%q]: schema is required", c.ID)
		}
		if _, ok := s.Schemas[c.Schema]; !ok {
			return fmt.Errorf("cases[%q]: unknown schema %q", c.ID, c.Schema)
		}
	}

	return nil
}
