package intent

import (
	"testing"

	"github.com/ashureev/autofinance/internal/domain"
)

func TestExtractCriteria(t *testing.T) {
	c := ExtractCriteria("Find a 2022 Toyota Corolla under 500000")
	if c == nil {
		t.Fatal("expected criteria")
	}
	if c.Make != "Toyota" || c.Model != "Corolla" {
		t.Fatalf("make/model = %q/%q", c.Make, c.Model)
	}
	if c.YearMin == nil || *c.YearMin != 2022 || c.YearMax != nil {
		t.Fatalf("years = %v/%v", c.YearMin, c.YearMax)
	}
	if c.PriceCap == nil || *c.PriceCap != 500000 {
		t.Fatalf("price cap = %v", c.PriceCap)
	}
}

func TestExtractCriteriaRangesAndUnits(t *testing.T) {
	c := ExtractCriteria("Hyundai Tucson between 2021 and 2019 under 1.5 million")
	if c == nil || c.YearMin == nil || c.YearMax == nil {
		t.Fatalf("criteria = %+v", c)
	}
	if *c.YearMin != 2019 || *c.YearMax != 2021 {
		t.Fatalf("years = %d-%d", *c.YearMin, *c.YearMax)
	}
	if c.PriceCap == nil || *c.PriceCap != 1500000 {
		t.Fatalf("price cap = %v", c.PriceCap)
	}

	c = ExtractCriteria("any car under 800k")
	if c == nil || c.PriceCap == nil || *c.PriceCap != 800000 || c.Make != "" {
		t.Fatalf("criteria = %+v", c)
	}

	c = ExtractCriteria("a sportage")
	if c == nil || c.Make != "Kia" || c.Model != "Sportage" {
		t.Fatalf("model should imply make: %+v", c)
	}
}

func TestExtractCriteriaIgnoresNonSearchText(t *testing.T) {
	for _, in := range []string{"hello", "I earn 30k", "yes", "my phone is 01012345678"} {
		if c := ExtractCriteria(in); c != nil {
			t.Errorf("ExtractCriteria(%q) = %+v, want nil", in, c)
		}
	}
}

func TestExtractProfile(t *testing.T) {
	u := ExtractProfile("I'm self-employed and earn 25,000 EGP a month")
	if u.MonthlyIncome == nil || *u.MonthlyIncome != 25000 {
		t.Fatalf("income = %v", u.MonthlyIncome)
	}
	if u.EmploymentCategory != domain.EmploymentSelfEmployed {
		t.Fatalf("employment = %q", u.EmploymentCategory)
	}

	u = ExtractProfile("salary 30k, I have a car loan of 2000")
	if u.MonthlyIncome == nil || *u.MonthlyIncome != 30000 {
		t.Fatalf("income = %v", u.MonthlyIncome)
	}
	if u.ExistingDebt == nil || *u.ExistingDebt != 2000 {
		t.Fatalf("debt = %v", u.ExistingDebt)
	}
	if u.EmploymentCategory != domain.EmploymentSalaried {
		t.Fatalf("employment = %q", u.EmploymentCategory)
	}

	u = ExtractProfile("I work for a company, no debts")
	if u.EmploymentCategory != domain.EmploymentCorporate || u.ExistingDebt == nil || *u.ExistingDebt != 0 {
		t.Fatalf("profile = %+v", u)
	}

	u = ExtractProfile("I have been driving since 2015")
	if u.MonthlyIncome != nil {
		t.Fatalf("year read as income: %v", *u.MonthlyIncome)
	}
}

func TestExtractContact(t *testing.T) {
	c := ExtractContact("My name is Mona Adel, mona.adel@example.com, 01012345678", false)
	want := domain.CustomerContact{FullName: "Mona Adel", Email: "mona.adel@example.com", Phone: "01012345678"}
	if c != want {
		t.Fatalf("ExtractContact() = %+v, want %+v", c, want)
	}

	c = ExtractContact("call me on +20 1012345678, national id 29001011234567", false)
	if c.Phone != "01012345678" || c.NationalID != "29001011234567" {
		t.Fatalf("ExtractContact() = %+v", c)
	}

	if c := ExtractContact("Omar Said", true); c.FullName != "Omar Said" {
		t.Fatalf("bare name = %q", c.FullName)
	}
	if c := ExtractContact("Omar Said", false); c.FullName != "" {
		t.Fatalf("bare name accepted when disabled: %q", c.FullName)
	}
}
