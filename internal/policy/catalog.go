// Package policy provides the lending policy source used by eligibility checks.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/autofinance/internal/domain"
)

//go:embed policies.yaml
var defaultCatalog []byte

// ErrInvalidCatalog reports a policy document that cannot be used.
var ErrInvalidCatalog = errors.New("invalid policy catalog")

// Policy is one candidate lending policy.
type Policy struct {
	Category           domain.EmploymentCategory `yaml:"category"`
	Description        string                    `yaml:"description"`
	InterestRate       float64                   `yaml:"interest_rate"`
	MaxTenureMonths    int                       `yaml:"max_tenure_months"`
	MaxDebtBurdenRatio float64                   `yaml:"max_debt_burden_ratio"`
	MinIncome          float64                   `yaml:"min_income"`
	MaxVehicleAgeYears int                       `yaml:"max_vehicle_age_years"`
	// OpenToAll makes the policy a candidate for every category whose
	// applicant clears MinIncome.
	OpenToAll bool `yaml:"open_to_all"`
}

// Source returns candidate policies in a deterministic order.
type Source interface {
	Lookup(ctx context.Context, category domain.EmploymentCategory, minIncome float64) ([]Policy, error)
}

type document struct {
	Policies []Policy `yaml:"policies"`
}

// Catalog is an in-memory, read-only Source.
type Catalog struct {
	policies []Policy
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from path, falling back to the embedded one when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Policies) == 0 {
		return nil, fmt.Errorf("%w: no policies", ErrInvalidCatalog)
	}
	for i, p := range doc.Policies {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("%w: policy %d: %v", ErrInvalidCatalog, i, err)
		}
		doc.Policies[i].Category, _ = domain.ParseEmploymentCategory(string(p.Category))
	}
	return &Catalog{policies: doc.Policies}, nil
}

func validate(p Policy) error {
	if _, ok := domain.ParseEmploymentCategory(string(p.Category)); !ok {
		return fmt.Errorf("unknown category %q", p.Category)
	}
	if p.InterestRate < 0 || p.InterestRate >= 1 {
		return fmt.Errorf("interest_rate %v out of range [0,1)", p.InterestRate)
	}
	if p.MaxTenureMonths <= 0 {
		return fmt.Errorf("max_tenure_months must be positive")
	}
	if p.MaxDebtBurdenRatio <= 0 || p.MaxDebtBurdenRatio > 1 {
		return fmt.Errorf("max_debt_burden_ratio %v out of range (0,1]", p.MaxDebtBurdenRatio)
	}
	if p.MinIncome < 0 || p.MaxVehicleAgeYears < 0 {
		return fmt.Errorf("negative threshold")
	}
	return nil
}

// Lookup returns the policies for category in catalog order, followed by any
// open policy of another category whose minimum income is within minIncome.
func (c *Catalog) Lookup(ctx context.Context, category domain.EmploymentCategory, minIncome float64) ([]Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Policy
	for _, p := range c.policies {
		if p.Category == category {
			out = append(out, p)
		}
	}
	for _, p := range c.policies {
		if p.Category != category && p.OpenToAll && p.MinIncome <= minIncome {
			out = append(out, p)
		}
	}
	return out, nil
}

// All returns a copy of every policy in catalog order.
func (c *Catalog) All() []Policy {
	return append([]Policy(nil), c.policies...)
}
