// Package migrate applies one-off schema changes described by a YAML plan.
package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is a named list of statements applied in a single transaction.
// Verify optionally names a table whose columns are listed after commit.
type Plan struct {
	Name       string   `yaml:"name"`
	Statements []string `yaml:"statements"`
	Verify     string   `yaml:"verify,omitempty"`
}

func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}

	plan, err := ParsePlan(data)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes a plan and rejects unknown keys.
func ParsePlan(data []byte) (Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}

	plan.Name = strings.TrimSpace(plan.Name)
	plan.Verify = strings.TrimSpace(plan.Verify)

	stmts := plan.Statements[:0]
	for _, stmt := range plan.Statements {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	plan.Statements = stmts

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p Plan) Validate() error {
	if p.Name == "" {
		return errors.New("plan name is required")
	}
	if len(p.Statements) == 0 {
		return fmt.Errorf("plan %s has no statements", p.Name)
	}
	return nil
}
