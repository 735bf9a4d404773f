package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxListings bounds the number of candidate listings kept in a session.
const MaxListings = 5

// Vehicle is a single marketplace listing.
type Vehicle struct {
	Name       string  `json:"name"`
	Make       string  `json:"make,omitempty"`
	Model      string  `json:"model,omitempty"`
	Year       int     `json:"year,omitempty"`
	Price      float64 `json:"price"`
	Mileage    int     `json:"mileage,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	SourceSite string  `json:"source_site,omitempty"`
}

// Summary renders a one-line description used in replies and application records.
func (v Vehicle) Summary() string {
	var b strings.Builder
	b.WriteString(v.Name)
	if v.Year > 0 && !strings.Contains(v.Name, strconv.Itoa(v.Year)) {
		fmt.Fprintf(&b, " (%d)", v.Year)
	}
	fmt.Fprintf(&b, " - %s EGP", FormatAmount(v.Price))
	if v.Mileage > 0 {
		fmt.Fprintf(&b, ", %d km", v.Mileage)
	}
	return b.String()
}

// SearchCriteria is the structured search request extracted from user input.
// Every field is optional.
type SearchCriteria struct {
	Make     string   `json:"make,omitempty"`
	Model    string   `json:"model,omitempty"`
	YearMin  *int     `json:"year_min,omitempty"`
	YearMax  *int     `json:"year_max,omitempty"`
	PriceCap *float64 `json:"price_cap,omitempty"`
}

// IsEmpty reports whether no criterion is set.
func (c SearchCriteria) IsEmpty() bool {
	return c.Make == "" && c.Model == "" && c.YearMin == nil && c.YearMax == nil && c.PriceCap == nil
}

// Clone returns a deep copy.
func (c SearchCriteria) Clone() SearchCriteria {
	out := SearchCriteria{Make: c.Make, Model: c.Model}
	if c.YearMin != nil {
		v := *c.YearMin
		out.YearMin = &v
	}
	if c.YearMax != nil {
		v := *c.YearMax
		out.YearMax = &v
	}
	if c.PriceCap != nil {
		v := *c.PriceCap
		out.PriceCap = &v
	}
	return out
}

// Matches reports whether v satisfies every criterion that is set.
func (c SearchCriteria) Matches(v Vehicle) bool {
	if c.Make != "" && !strings.EqualFold(c.Make, v.Make) && !containsFold(v.Name, c.Make) {
		return false
	}
	if c.Model != "" && !strings.EqualFold(c.Model, v.Model) && !containsFold(v.Name, c.Model) {
		return false
	}
	if c.YearMin != nil && v.Year > 0 && v.Year < *c.YearMin {
		return false
	}
	if c.YearMax != nil && v.Year > 0 && v.Year > *c.YearMax {
		return false
	}
	if c.PriceCap != nil && v.Price > *c.PriceCap {
		return false
	}
	return true
}

// Describe renders the criteria for a confirmation prompt.
func (c SearchCriteria) Describe() string {
	var parts []string
	if c.Make != "" {
		parts = append(parts, "make: "+c.Make)
	}
	if c.Model != "" {
		parts = append(parts, "model: "+c.Model)
	}
	switch {
	case c.YearMin != nil && c.YearMax != nil && *c.YearMin == *c.YearMax:
		parts = append(parts, fmt.Sprintf("year: %d", *c.YearMin))
	case c.YearMin != nil && c.YearMax != nil:
		parts = append(parts, fmt.Sprintf("years: %d-%d", *c.YearMin, *c.YearMax))
	case c.YearMin != nil:
		parts = append(parts, fmt.Sprintf("from year: %d", *c.YearMin))
	case c.YearMax != nil:
		parts = append(parts, fmt.Sprintf("up to year: %d", *c.YearMax))
	}
	if c.PriceCap != nil {
		parts = append(parts, "max price: "+FormatAmount(*c.PriceCap)+" EGP")
	}
	if len(parts) == 0 {
		return "any vehicle"
	}
	return strings.Join(parts, ", ")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// FormatAmount renders a monetary amount with thousands separators and two decimals,
// dropping ".00" for whole amounts.
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "00" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
