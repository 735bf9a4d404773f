package domain

import "strings"

// EmploymentCategory classifies how the applicant earns income.
type EmploymentCategory string

// Employment categories known to the policy catalog.
const (
	EmploymentSalaried     EmploymentCategory = "salaried"
	EmploymentSelfEmployed EmploymentCategory = "self_employed"
	EmploymentCorporate    EmploymentCategory = "corporate"
	EmploymentOther        EmploymentCategory = "other"
)

// ParseEmploymentCategory maps free-form names to a category. It accepts the
// canonical values plus common spellings ("self-employed", "SelfEmployed").
func ParseEmploymentCategory(s string) (EmploymentCategory, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "salaried", "employee", "employed":
		return EmploymentSalaried, true
	case "self_employed", "selfemployed", "freelancer", "business_owner":
		return EmploymentSelfEmployed, true
	case "corporate", "company":
		return EmploymentCorporate, true
	case "other":
		return EmploymentOther, true
	default:
		return "", false
	}
}

// ApplicantProfile holds income data gathered during Profiling.
type ApplicantProfile struct {
	MonthlyIncome      *float64           `json:"monthly_income,omitempty"`
	EmploymentCategory EmploymentCategory `json:"employment_category,omitempty"`
	ExistingDebt       float64            `json:"existing_debt"`
}

// ProfileUpdate carries newly extracted profile fields; nil means "not mentioned".
type ProfileUpdate struct {
	MonthlyIncome      *float64
	EmploymentCategory EmploymentCategory
	ExistingDebt       *float64
}

// IsEmpty reports whether the update carries no field.
func (u ProfileUpdate) IsEmpty() bool {
	return u.MonthlyIncome == nil && u.EmploymentCategory == "" && u.ExistingDebt == nil
}

// Merge applies u on top of p. Set fields are only ever replaced by new
// non-null values, and invalid values (non-positive income, negative debt) are ignored.
// It reports whether anything changed.
func (p *ApplicantProfile) Merge(u ProfileUpdate) bool {
	changed := false
	if u.MonthlyIncome != nil && *u.MonthlyIncome > 0 {
		if p.MonthlyIncome == nil || *p.MonthlyIncome != *u.MonthlyIncome {
			v := *u.MonthlyIncome
			p.MonthlyIncome = &v
			changed = true
		}
	}
	if u.EmploymentCategory != "" && u.EmploymentCategory != p.EmploymentCategory {
		p.EmploymentCategory = u.EmploymentCategory
		changed = true
	}
	if u.ExistingDebt != nil && *u.ExistingDebt >= 0 && *u.ExistingDebt != p.ExistingDebt {
		p.ExistingDebt = *u.ExistingDebt
		changed = true
	}
	return changed
}

// Complete reports whether both income and employment are known.
func (p ApplicantProfile) Complete() bool {
	return p.MonthlyIncome != nil && p.EmploymentCategory != ""
}

// Income returns the monthly income or 0 when unknown.
func (p ApplicantProfile) Income() float64 {
	if p.MonthlyIncome == nil {
		return 0
	}
	return *p.MonthlyIncome
}

// Clone returns a deep copy.
func (p ApplicantProfile) Clone() ApplicantProfile {
	out := p
	if p.MonthlyIncome != nil {
		v := *p.MonthlyIncome
		out.MonthlyIncome = &v
	}
	return out
}
