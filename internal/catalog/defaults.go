package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultsFile struct {
	Categories []struct {
		ID       string   `yaml:"id"`
		Name     string   `yaml:"name"`
		Swatches []Swatch `yaml:"swatches"`
	} `yaml:"categories"`
}

var defaultSwatches, defaultCategories = mustParseDefaults(defaultsYAML)

func mustParseDefaults(raw []byte) ([]Swatch, []Category) {
	swatches, categories, err := parseDefaults(raw)
	if err != nil {
		panic(err)
	}
	return swatches, categories
}

func parseDefaults(raw []byte) ([]Swatch, []Category, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("catalog: parse defaults: %w", err)
	}
	var swatches []Swatch
	var categories []Category
	for _, c := range file.Categories {
		categories = append(categories, Category{ID: c.ID, Name: c.Name})
		for _, s := range c.Swatches {
			s.Category = c.Name
			if s.Finish == "" {
				s.Finish = DeriveFinish(c.Name)
			}
			hex, err := NormalizeHex(s.Hex)
			if err != nil {
				return nil, nil, fmt.Errorf("catalog: default swatch %s: %w", s.ID, err)
			}
			s.Hex = hex
			swatches = append(swatches, s)
		}
	}
	return swatches, categories, nil
}

// Defaults returns copies of the built-in swatches and categories.
func Defaults() ([]Swatch, []Category) {
	swatches := make([]Swatch, len(defaultSwatches))
	copy(swatches, defaultSwatches)
	categories := make([]Category, len(defaultCategories))
	copy(categories, defaultCategories)
	return swatches, categories
}
