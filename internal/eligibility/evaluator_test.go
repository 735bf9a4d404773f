package eligibility

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/finance"
	"github.com/ashureev/autofinance/internal/policy"
)

type fakeSource struct {
	policies []policy.Policy
	err      error
	calls    int
}

func (f *fakeSource) Lookup(_ context.Context, _ domain.EmploymentCategory, _ float64) ([]policy.Policy, error) {
	f.calls++
	return f.policies, f.err
}

func fixedClock() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

func profile(income float64, cat domain.EmploymentCategory) domain.ApplicantProfile {
	return domain.ApplicantProfile{MonthlyIncome: &income, EmploymentCategory: cat}
}

func TestEvaluateIncomeShortfall(t *testing.T) {
	catalog, err := policy.Default()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator(catalog, fixedClock)

	terms, err := e.Evaluate(context.Background(), profile(3000, domain.EmploymentSelfEmployed), domain.Vehicle{Name: "Kia Cerato", Year: 2022, Price: 300000})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if terms.IsEligible {
		t.Fatal("expected ineligible")
	}
	if !strings.Contains(terms.RejectionReason, "10000") || !strings.Contains(terms.RejectionReason, "3000") {
		t.Fatalf("RejectionReason = %q, want both 10000 and 3000", terms.RejectionReason)
	}
}

func TestEvaluateVehicleAge(t *testing.T) {
	catalog, err := policy.Default()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator(catalog, fixedClock)

	terms, err := e.Evaluate(context.Background(), profile(20000, domain.EmploymentOther), domain.Vehicle{Name: "Old Lancer", Year: 2015, Price: 150000})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if terms.IsEligible {
		t.Fatal("expected ineligible")
	}
	want := "Maximum vehicle age allowed is 7 years. The selected vehicle (2015) is 11 years old."
	if terms.RejectionReason != want {
		t.Fatalf("RejectionReason = %q, want %q", terms.RejectionReason, want)
	}
}

func TestEvaluateFirstQualifyingInSourceOrder(t *testing.T) {
	src := &fakeSource{policies: []policy.Policy{
		{Description: "too demanding", InterestRate: 0.10, MaxTenureMonths: 60, MaxDebtBurdenRatio: 0.5, MinIncome: 90000, MaxVehicleAgeYears: 10},
		{Description: "first fit", InterestRate: 0.19, MaxTenureMonths: 60, MaxDebtBurdenRatio: 0.5, MinIncome: 5000, MaxVehicleAgeYears: 10},
		{Description: "cheaper later", InterestRate: 0.12, MaxTenureMonths: 60, MaxDebtBurdenRatio: 0.5, MinIncome: 5000, MaxVehicleAgeYears: 10},
	}}
	e := NewEvaluator(src, fixedClock)

	for i := 0; i < 5; i++ {
		terms, err := e.Evaluate(context.Background(), profile(8000, domain.EmploymentSalaried), domain.Vehicle{Year: 2024, Price: 400000})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !terms.IsEligible || terms.Description != "first fit" || terms.InterestRateAnnual != 0.19 {
			t.Fatalf("run %d: terms = %+v, want first fit", i, terms)
		}
	}
}

func TestEvaluateReportsClosestCandidate(t *testing.T) {
	src := &fakeSource{policies: []policy.Policy{
		{Description: "income too high", InterestRate: 0.10, MaxTenureMonths: 60, MaxDebtBurdenRatio: 0.5, MinIncome: 50000, MaxVehicleAgeYears: 15},
		{Description: "age too strict", InterestRate: 0.20, MaxTenureMonths: 48, MaxDebtBurdenRatio: 0.5, MinIncome: 5000, MaxVehicleAgeYears: 5},
	}}
	e := NewEvaluator(src, fixedClock)

	terms, err := e.Evaluate(context.Background(), profile(8000, domain.EmploymentSalaried), domain.Vehicle{Year: 2018, Price: 300000})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if terms.IsEligible {
		t.Fatal("expected ineligible")
	}
	want := "Maximum vehicle age allowed is 5 years. The selected vehicle (2018) is 8 years old."
	if terms.RejectionReason != want {
		t.Fatalf("RejectionReason = %q, want %q", terms.RejectionReason, want)
	}
}

func TestEvaluateDeduplicatesCandidates(t *testing.T) {
	dup := policy.Policy{Description: "same", InterestRate: 0.2, MaxTenureMonths: 60, MinIncome: 50000, MaxVehicleAgeYears: 10}
	got := dedupe([]policy.Policy{dup, dup, {Description: "other", InterestRate: 0.2, MaxTenureMonths: 60}})
	if len(got) != 2 {
		t.Fatalf("dedupe() kept %d candidates, want 2", len(got))
	}
}

func TestEvaluateNoCandidates(t *testing.T) {
	e := NewEvaluator(&fakeSource{}, fixedClock)
	terms, err := e.Evaluate(context.Background(), profile(8000, domain.EmploymentOther), domain.Vehicle{Year: 2024})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if terms.IsEligible || !strings.Contains(terms.RejectionReason, "other") {
		t.Fatalf("terms = %+v", terms)
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEvaluator(&fakeSource{}, fixedClock)
	_, err := e.Evaluate(context.Background(), domain.ApplicantProfile{}, domain.Vehicle{})
	if !errors.Is(err, finance.ErrInvalidInput) {
		t.Fatalf("incomplete profile: error = %v, want ErrInvalidInput", err)
	}

	boom := errors.New("policy index offline")
	e = NewEvaluator(&fakeSource{err: boom}, fixedClock)
	_, err = e.Evaluate(context.Background(), profile(8000, domain.EmploymentSalaried), domain.Vehicle{Year: 2024})
	if !errors.Is(err, boom) {
		t.Fatalf("source failure: error = %v, want wrapped source error", err)
	}
}
