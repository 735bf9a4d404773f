// Package eligibility maps an applicant and vehicle to lending policy terms.
package eligibility

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/finance"
	"github.com/ashureev/autofinance/internal/policy"
)

// Evaluator selects the first qualifying policy from a Source.
type Evaluator struct {
	source policy.Source
	now    func() time.Time
}

// NewEvaluator returns an Evaluator. A nil clock defaults to time.Now.
func NewEvaluator(source policy.Source, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{source: source, now: now}
}

type candidateKey struct {
	rate        float64
	tenure      int
	description string
}

// Evaluate returns eligible terms from the first candidate, in source order,
// that satisfies both the income and vehicle age limits. A rejection is data,
// not an error: IsEligible is false and RejectionReason names the failing check
// of the closest candidate, which is the first one whose income limit is met.
// Errors are reserved for an incomplete profile and policy source failures.
func (e *Evaluator) Evaluate(ctx context.Context, profile domain.ApplicantProfile, vehicle domain.Vehicle) (domain.PolicyTerms, error) {
	if !profile.Complete() {
		return domain.PolicyTerms{}, fmt.Errorf("%w: profile needs income and employment category", finance.ErrInvalidInput)
	}
	income := profile.Income()

	found, err := e.source.Lookup(ctx, profile.EmploymentCategory, income)
	if err != nil {
		return domain.PolicyTerms{}, fmt.Errorf("lookup policies: %w", err)
	}
	candidates := dedupe(found)

	if len(candidates) == 0 {
		return domain.PolicyTerms{
			IsEligible:      false,
			RejectionReason: fmt.Sprintf("No lending policy is available for employment category %s.", profile.EmploymentCategory),
		}, nil
	}

	year := e.now().Year()
	for _, p := range candidates {
		if incomeReason(p, income) == "" && ageReason(p, vehicle, year) == "" {
			return domain.PolicyTerms{
				Description:        p.Description,
				InterestRateAnnual: p.InterestRate,
				MaxTenureMonths:    p.MaxTenureMonths,
				MaxDebtBurdenRatio: p.MaxDebtBurdenRatio,
				IsEligible:         true,
			}, nil
		}
	}

	// A candidate the income already satisfies fails only on age and is the closest fit.
	for _, p := range candidates {
		if incomeReason(p, income) == "" {
			return domain.PolicyTerms{IsEligible: false, RejectionReason: ageReason(p, vehicle, year)}, nil
		}
	}
	return domain.PolicyTerms{IsEligible: false, RejectionReason: incomeReason(candidates[0], income)}, nil
}

func dedupe(in []policy.Policy) []policy.Policy {
	seen := make(map[candidateKey]struct{}, len(in))
	out := make([]policy.Policy, 0, len(in))
	for _, p := range in {
		k := candidateKey{rate: p.InterestRate, tenure: p.MaxTenureMonths, description: p.Description}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

func incomeReason(p policy.Policy, income float64) string {
	if income >= p.MinIncome {
		return ""
	}
	return fmt.Sprintf("Minimum income requirement is %s EGP. Your income of %s EGP does not meet this threshold.",
		number(p.MinIncome), number(income))
}

func ageReason(p policy.Policy, v domain.Vehicle, currentYear int) string {
	if v.Year <= 0 {
		return fmt.Sprintf("Maximum vehicle age allowed is %d years. The model year of the selected vehicle is unknown.",
			p.MaxVehicleAgeYears)
	}
	age := currentYear - v.Year
	if age < 0 {
		age = 0
	}
	if age <= p.MaxVehicleAgeYears {
		return ""
	}
	return fmt.Sprintf("Maximum vehicle age allowed is %d years. The selected vehicle (%d) is %d years old.",
		p.MaxVehicleAgeYears, v.Year, age)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
