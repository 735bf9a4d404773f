package listing

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/autofinance/internal/domain"
)

//go:embed listings.yaml
var defaultInventory []byte

type catalogVehicle struct {
	Name       string  `yaml:"name"`
	Make       string  `yaml:"make"`
	Model      string  `yaml:"model"`
	Year       int     `yaml:"year"`
	Price      float64 `yaml:"price"`
	Mileage    int     `yaml:"mileage"`
	SourceURL  string  `yaml:"source_url"`
	SourceSite string  `yaml:"source_site"`
}

type inventory struct {
	Vehicles []catalogVehicle `yaml:"vehicles"`
}

// Catalog searches a static inventory in file order.
type Catalog struct {
	vehicles []domain.Vehicle
}

// DefaultCatalog returns the embedded inventory.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultInventory)
}

// LoadCatalog reads an inventory file, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listing catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML inventory. Entries without a positive price are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var inv inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse listing catalog: %w", err)
	}
	out := make([]domain.Vehicle, 0, len(inv.Vehicles))
	for i, v := range inv.Vehicles {
		if v.Price <= 0 {
			return nil, fmt.Errorf("parse listing catalog: vehicle %d has no price", i)
		}
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("%s %s %d", v.Make, v.Model, v.Year)
		}
		out = append(out, domain.Vehicle{
			Name:       name,
			Make:       v.Make,
			Model:      v.Model,
			Year:       v.Year,
			Price:      v.Price,
			Mileage:    v.Mileage,
			SourceURL:  v.SourceURL,
			SourceSite: v.SourceSite,
		})
	}
	return &Catalog{vehicles: out}, nil
}

// Search implements Searcher.
func (c *Catalog) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Vehicle
	for _, v := range c.vehicles {
		if criteria.Matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
