package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/b2b-storefront/internal/domain/product"
)

var ErrInvalidConfig = errors.New("invalid flow config")

// Step is one stage of the cascading filter wizard.
type Step struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	NextStep    string `json:"nextStep,omitempty"`
}

// Facet is an extra filter offered once the flow reaches the product view.
type Facet struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// LineConfig describes one business line.
type LineConfig struct {
	DisplayName       string  `json:"displayName"`
	Icon              string  `json:"icon,omitempty"`
	Description       string  `json:"description,omitempty"`
	Steps             []Step  `json:"steps"`
	AdditionalFilters []Facet `json:"additionalFilters,omitempty"`
}

// Config is the versionable flow configuration: per-line steps and facets,
// plus the step id to product field table.
type Config struct {
	Lines  map[string]LineConfig `json:"lines"`
	Fields map[string]string     `json:"fields"`
}

func DefaultConfig() *Config {
	return &Config{
		Lines: map[string]LineConfig{
			"LLANTAS": {
				DisplayName: "Llantas",
				Icon:        "tire",
				Description: "Llantas para auto, camioneta, camión y moto",
				Steps: []Step{
					{ID: "categoria", DisplayName: "Categoría", NextStep: "aplicacion"},
					{ID: "aplicacion", DisplayName: "Aplicación", NextStep: "rin"},
					{ID: "rin", DisplayName: "Rin"},
				},
				AdditionalFilters: []Facet{
					{Key: product.FieldMarca, DisplayName: "Marca"},
					{Key: product.FieldAncho, DisplayName: "Ancho"},
					{Key: product.FieldSerie, DisplayName: "Serie"},
				},
			},
			"LUBRICANTES": {
				DisplayName: "Lubricantes",
				Icon:        "oil",
				Description: "Aceites y grasas para motor y transmisión",
				Steps: []Step{
					{ID: "categoria", DisplayName: "Categoría", NextStep: "clase"},
					{ID: "clase", DisplayName: "Clase", NextStep: "viscosidad"},
					{ID: "viscosidad", DisplayName: "Viscosidad"},
				},
				AdditionalFilters: []Facet{
					{Key: product.FieldMarca, DisplayName: "Marca"},
					{Key: product.FieldPresentacion, DisplayName: "Presentación"},
				},
			},
			"HERRAMIENTAS": {
				DisplayName: "Herramientas",
				Icon:        "wrench",
				Description: "Herramientas de taller",
				AdditionalFilters: []Facet{
					{Key: product.FieldMarca, DisplayName: "Marca"},
					{Key: product.FieldGrupo, DisplayName: "Grupo"},
				},
			},
		},
		Fields: map[string]string{
			"categoria":     product.FieldCategoria,
			"aplicacion":    product.FieldAplicacion,
			"subaplicacion": product.FieldSubaplicacion,
			"rin":           product.FieldRin,
			"clase":         product.FieldClase,
			"viscosidad":    product.FieldViscosidad,
			"grupo":         product.FieldGrupo,
			"subgrupo":      product.FieldSubgrupo,
		},
	}
}

// LoadConfig reads a JSON flow configuration. An empty path yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flow config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every line's steps form a linear chain ending in a
// step without nextStep, and that step ids never collide with facet keys.
func (c *Config) Validate() error {
	for line, lc := range c.Lines {
		seen := make(map[string]bool, len(lc.Steps))
		for i, step := range lc.Steps {
			if step.ID == "" {
				return fmt.Errorf("%w: line %s step %d has no id", ErrInvalidConfig, line, i)
			}
			if seen[step.ID] {
				return fmt.Errorf("%w: line %s repeats step %s", ErrInvalidConfig, line, step.ID)
			}
			seen[step.ID] = true

			last := i == len(lc.Steps)-1
			switch {
			case last && step.NextStep != "":
				return fmt.Errorf("%w: line %s last step %s has nextStep %s", ErrInvalidConfig, line, step.ID, step.NextStep)
			case !last && step.NextStep != lc.Steps[i+1].ID:
				return fmt.Errorf("%w: line %s step %s must chain to %s", ErrInvalidConfig, line, step.ID, lc.Steps[i+1].ID)
			}
		}
		for _, f := range lc.AdditionalFilters {
			if seen[f.Key] {
				return fmt.Errorf("%w: line %s facet %s collides with a step id", ErrInvalidConfig, line, f.Key)
			}
		}
	}
	return nil
}

// Steps returns the ordered steps for a line; unknown lines have none.
func (c *Config) Steps(line string) []Step {
	return c.Lines[line].Steps
}

// Facets returns the additional filters offered for a line.
func (c *Config) Facets(line string) []Facet {
	return c.Lines[line].AdditionalFilters
}

// FieldFor maps a step id to the product field it filters on.
func (c *Config) FieldFor(stepID string) string {
	if field, ok := c.Fields[stepID]; ok {
		return field
	}
	return "DMA_" + strings.ToUpper(stepID)
}

// LineDisplay returns the display config for a line, defaulting to the raw key.
func (c *Config) LineDisplay(line string) LineConfig {
	lc, ok := c.Lines[line]
	if !ok {
		return LineConfig{DisplayName: line}
	}
	if lc.DisplayName == "" {
		lc.DisplayName = line
	}
	return lc
}

func (c *Config) stepIndex(line, stepID string) int {
	for i, step := range c.Steps(line) {
		if step.ID == stepID {
			return i
		}
	}
	return -1
}

func (c *Config) isStep(line, key string) bool {
	return c.stepIndex(line, key) >= 0
}
