package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw scenario documents into a Scenario.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a scenario document. JSON is detected by its leading brace,
// anything else is read as YAML.
func (p *Parser) Parse(data []byte) (*domain.Scenario, error) {
	var sc domain.Scenario
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse scenario: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse scenario: %w", err)
		}
	}
	if sc.ID == "" && sc.Name == "" {
		return nil, fmt.Errorf("scenario missing ID and name")
	}
	return &sc, nil
}
