package intent

import (
	"testing"

	"github.com/ashureev/autofinance/internal/domain"
)

func TestFromWireShapeMismatch(t *testing.T) {
	tests := map[string]map[string]any{
		"nil":             nil,
		"missing intent":  {"confidence": 0.9},
		"unknown intent":  {"intent": "buy_boat"},
		"intent not text": {"intent": 4.0},
		"bad confidence":  {"intent": "search", "confidence": "high"},
		"price as text":   {"intent": "search", "price_cap": "cheap"},
		"fractional year": {"intent": "search", "year_min": 2021.5},
		"bad employment":  {"intent": "provide_profile", "employment_category": "astronaut"},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			if got := fromWire(m); got.Intent != Unclear {
				t.Fatalf("fromWire() intent = %s, want unclear", got.Intent)
			}
		})
	}
}

func TestWireRoundTrip(t *testing.T) {
	year := 2021
	price := 900000.0
	income := 18000.0
	in := Classification{
		Intent:     Search,
		Confidence: 0.8,
		Fields: Fields{
			Criteria: &domain.SearchCriteria{Make: "Kia", YearMin: &year, PriceCap: &price},
			Profile:  domain.ProfileUpdate{MonthlyIncome: &income, EmploymentCategory: domain.EmploymentCorporate},
			Contact:  domain.CustomerContact{Email: "a@b.co"},
		},
	}
	got := fromWire(toWire(in))
	if got.Intent != Search || got.Confidence != 0.8 {
		t.Fatalf("got %+v", got)
	}
	if got.Fields.Criteria == nil || got.Fields.Criteria.Make != "Kia" || *got.Fields.Criteria.YearMin != 2021 || *got.Fields.Criteria.PriceCap != price {
		t.Fatalf("criteria = %+v", got.Fields.Criteria)
	}
	if *got.Fields.Profile.MonthlyIncome != income || got.Fields.Profile.EmploymentCategory != domain.EmploymentCorporate {
		t.Fatalf("profile = %+v", got.Fields.Profile)
	}
	if got.Fields.Contact.Email != "a@b.co" {
		t.Fatalf("contact = %+v", got.Fields.Contact)
	}
}

func TestParseModelOutput(t *testing.T) {
	got := parseModelOutput("```json\n{\"intent\": \"select_vehicle\", \"confidence\": 0.9, \"selection\": 2}\n```")
	if got.Intent != SelectVehicle || got.Fields.Selection != 2 {
		t.Fatalf("got %+v", got)
	}
	if got := parseModelOutput("I am not sure"); got.Intent != Unclear {
		t.Fatalf("prose output intent = %s", got.Intent)
	}
}
