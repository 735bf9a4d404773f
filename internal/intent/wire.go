package intent

import (
	"errors"
	"fmt"
	"math"

	"github.com/ashureev/autofinance/internal/domain"
)

var errShapeMismatch = errors.New("classification shape mismatch")

// fromWire decodes the loosely typed document produced by remote classifiers.
// Any type mismatch yields Unclear rather than an error.
func fromWire(m map[string]any) Classification {
	c, err := decodeWire(m)
	if err != nil {
		return Classification{Intent: Unclear}
	}
	return c
}

func decodeWire(m map[string]any) (Classification, error) {
	if m == nil {
		return Classification{}, errShapeMismatch
	}
	var c Classification

	s, ok := m["intent"].(string)
	if !ok || !Intent(s).Valid() {
		return Classification{}, fmt.Errorf("%w: intent %v", errShapeMismatch, m["intent"])
	}
	c.Intent = Intent(s)

	c.Confidence = 1
	if v, present := m["confidence"]; present && v != nil {
		f, ok := v.(float64)
		if !ok || f < 0 || f > 1 {
			return Classification{}, fmt.Errorf("%w: confidence %v", errShapeMismatch, v)
		}
		c.Confidence = f
	}

	var crit domain.SearchCriteria
	var err error
	if crit.Make, err = optString(m, "make"); err != nil {
		return Classification{}, err
	}
	if crit.Model, err = optString(m, "model"); err != nil {
		return Classification{}, err
	}
	if crit.YearMin, err = optInt(m, "year_min"); err != nil {
		return Classification{}, err
	}
	if crit.YearMax, err = optInt(m, "year_max"); err != nil {
		return Classification{}, err
	}
	if crit.PriceCap, err = optFloat(m, "price_cap"); err != nil {
		return Classification{}, err
	}
	if !crit.IsEmpty() {
		c.Fields.Criteria = &crit
	}

	sel, err := optInt(m, "selection")
	if err != nil {
		return Classification{}, err
	}
	if sel != nil {
		c.Fields.Selection = *sel
	}

	if c.Fields.Profile.MonthlyIncome, err = optFloat(m, "monthly_income"); err != nil {
		return Classification{}, err
	}
	if c.Fields.Profile.ExistingDebt, err = optFloat(m, "existing_debt"); err != nil {
		return Classification{}, err
	}
	emp, err := optString(m, "employment_category")
	if err != nil {
		return Classification{}, err
	}
	if emp != "" {
		cat, ok := domain.ParseEmploymentCategory(emp)
		if !ok {
			return Classification{}, fmt.Errorf("%w: employment_category %q", errShapeMismatch, emp)
		}
		c.Fields.Profile.EmploymentCategory = cat
	}

	for key, dst := range map[string]*string{
		"full_name":      &c.Fields.Contact.FullName,
		"email":          &c.Fields.Contact.Email,
		"phone":          &c.Fields.Contact.Phone,
		"national_id":    &c.Fields.Contact.NationalID,
		"application_id": &c.Fields.ApplicationID,
	} {
		if *dst, err = optString(m, key); err != nil {
			return Classification{}, err
		}
	}
	return c, nil
}

func optString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", errShapeMismatch, key, v)
	}
	return s, nil
}

func optFloat(m map[string]any, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s is %T", errShapeMismatch, key, v)
	}
	return &f, nil
}

func optInt(m map[string]any, key string) (*int, error) {
	f, err := optFloat(m, key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%w: %s is not an integer", errShapeMismatch, key)
	}
	n := int(*f)
	return &n, nil
}

// toWire encodes a classification in the document shape fromWire reads.
func toWire(c Classification) map[string]any {
	m := map[string]any{
		"intent":     string(c.Intent),
		"confidence": c.Confidence,
	}
	if cr := c.Fields.Criteria; cr != nil {
		putString(m, "make", cr.Make)
		putString(m, "model", cr.Model)
		if cr.YearMin != nil {
			m["year_min"] = float64(*cr.YearMin)
		}
		if cr.YearMax != nil {
			m["year_max"] = float64(*cr.YearMax)
		}
		if cr.PriceCap != nil {
			m["price_cap"] = *cr.PriceCap
		}
	}
	if c.Fields.Selection != 0 {
		m["selection"] = float64(c.Fields.Selection)
	}
	if p := c.Fields.Profile; !p.IsEmpty() {
		if p.MonthlyIncome != nil {
			m["monthly_income"] = *p.MonthlyIncome
		}
		if p.ExistingDebt != nil {
			m["existing_debt"] = *p.ExistingDebt
		}
		putString(m, "employment_category", string(p.EmploymentCategory))
	}
	putString(m, "full_name", c.Fields.Contact.FullName)
	putString(m, "email", c.Fields.Contact.Email)
	putString(m, "phone", c.Fields.Contact.Phone)
	putString(m, "national_id", c.Fields.Contact.NationalID)
	putString(m, "application_id", c.Fields.ApplicationID)
	return m
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
