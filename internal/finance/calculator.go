// Package finance implements loan amortization and affordability math.
//
// Monetary values are carried as float64 at the API boundary but every result
// is computed in integer cents and rounded half-to-even, so totals are exact
// sums of the rounded installment.
package finance

import (
	"errors"
	"fmt"
	"math"

	"github.com/ashureev/autofinance/internal/domain"
)

// ErrInvalidInput reports malformed numeric arguments.
var ErrInvalidInput = errors.New("invalid calculator input")

// Amortization is the repayment schedule summary for a loan.
type Amortization struct {
	MonthlyInstallment float64 `json:"monthly_installment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalPayment       float64 `json:"total_payment"`
}

// Affordability is the debt burden classification for an installment.
type Affordability struct {
	DebtBurdenRatio float64 `json:"debt_burden_ratio"`
	IsAffordable    bool    `json:"is_affordable"`
}

// Amortize computes the fixed monthly installment of an annuity loan.
// annualRate is a fraction (0.18 for 18% a year), never a percentage.
func Amortize(principal, annualRate float64, tenureMonths int) (Amortization, error) {
	switch {
	case !finite(principal) || principal <= 0:
		return Amortization{}, fmt.Errorf("%w: principal must be positive, got %v", ErrInvalidInput, principal)
	case !finite(annualRate) || annualRate < 0:
		return Amortization{}, fmt.Errorf("%w: annual rate must be >= 0, got %v", ErrInvalidInput, annualRate)
	case tenureMonths <= 0:
		return Amortization{}, fmt.Errorf("%w: tenure must be positive, got %d", ErrInvalidInput, tenureMonths)
	}

	principalCents := toCents(principal)
	n := float64(tenureMonths)

	if annualRate == 0 {
		return Amortization{
			MonthlyInstallment: fromCents(toCents(principal / n)),
			TotalInterest:      0,
			TotalPayment:       fromCents(principalCents),
		}, nil
	}

	r := annualRate / 12
	growth := math.Pow(1+r, n)
	installment := principal * r * growth / (growth - 1)
	if !finite(installment) {
		return Amortization{}, fmt.Errorf("%w: installment overflow", ErrInvalidInput)
	}

	installmentCents := toCents(installment)
	totalCents := installmentCents * int64(tenureMonths)
	return Amortization{
		MonthlyInstallment: fromCents(installmentCents),
		TotalInterest:      fromCents(totalCents - principalCents),
		TotalPayment:       fromCents(totalCents),
	}, nil
}

// CheckAffordability classifies an installment against a debt burden cap.
// A non-positive income is maximally unaffordable rather than an error.
func CheckAffordability(monthlyInstallment, monthlyIncome, existingDebt, maxDebtBurdenRatio float64) (Affordability, error) {
	switch {
	case !finite(monthlyInstallment) || monthlyInstallment < 0:
		return Affordability{}, fmt.Errorf("%w: installment must be >= 0, got %v", ErrInvalidInput, monthlyInstallment)
	case !finite(existingDebt) || existingDebt < 0:
		return Affordability{}, fmt.Errorf("%w: existing debt must be >= 0, got %v", ErrInvalidInput, existingDebt)
	case !finite(maxDebtBurdenRatio) || maxDebtBurdenRatio < 0:
		return Affordability{}, fmt.Errorf("%w: max debt burden ratio must be >= 0, got %v", ErrInvalidInput, maxDebtBurdenRatio)
	case math.IsNaN(monthlyIncome):
		return Affordability{}, fmt.Errorf("%w: income is NaN", ErrInvalidInput)
	}

	if monthlyIncome <= 0 {
		return Affordability{DebtBurdenRatio: 1, IsAffordable: false}, nil
	}

	obligations := monthlyInstallment + existingDebt
	ratio := obligations / monthlyIncome
	// Compare in cents so a ratio that equals the cap exactly is not lost to float error.
	affordable := toCents(obligations) <= toCents(maxDebtBurdenRatio*monthlyIncome)
	return Affordability{
		DebtBurdenRatio: math.RoundToEven(ratio*1e4) / 1e4,
		IsAffordable:    affordable,
	}, nil
}

// FinancedAmount splits a price into down payment and loan principal.
func FinancedAmount(price, downPaymentRatio float64) (principal, downPayment float64, err error) {
	if !finite(price) || price <= 0 {
		return 0, 0, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidInput, price)
	}
	if !finite(downPaymentRatio) || downPaymentRatio < 0 || downPaymentRatio >= 1 {
		return 0, 0, fmt.Errorf("%w: down payment ratio must be in [0,1), got %v", ErrInvalidInput, downPaymentRatio)
	}
	priceCents := toCents(price)
	downCents := toCents(price * downPaymentRatio)
	return fromCents(priceCents - downCents), fromCents(downCents), nil
}

// QuoteInput gathers everything needed to price a vehicle loan.
type QuoteInput struct {
	VehiclePrice     float64
	DownPaymentRatio float64
	Terms            domain.PolicyTerms
	TenureMonths     int
	Profile          domain.ApplicantProfile
}

// BuildQuote runs the financed amount, amortization, and affordability steps.
func BuildQuote(in QuoteInput) (domain.Quote, error) {
	if !in.Terms.IsEligible {
		return domain.Quote{}, fmt.Errorf("%w: cannot quote without eligible terms", ErrInvalidInput)
	}
	principal, down, err := FinancedAmount(in.VehiclePrice, in.DownPaymentRatio)
	if err != nil {
		return domain.Quote{}, err
	}
	am, err := Amortize(principal, in.Terms.InterestRateAnnual, in.TenureMonths)
	if err != nil {
		return domain.Quote{}, err
	}
	aff, err := CheckAffordability(am.MonthlyInstallment, in.Profile.Income(), in.Profile.ExistingDebt, in.Terms.MaxDebtBurdenRatio)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		VehiclePrice:       fromCents(toCents(in.VehiclePrice)),
		DownPayment:        down,
		Principal:          principal,
		InterestRateAnnual: in.Terms.InterestRateAnnual,
		TenureMonths:       in.TenureMonths,
		MonthlyInstallment: am.MonthlyInstallment,
		TotalInterest:      am.TotalInterest,
		TotalPayment:       am.TotalPayment,
		DebtBurdenRatio:    aff.DebtBurdenRatio,
		IsAffordable:       aff.IsAffordable,
	}, nil
}

// Tenure caps the requested tenure at the policy maximum.
func Tenure(policyMax, preferred int) int {
	if policyMax <= 0 {
		return preferred
	}
	if preferred <= 0 || preferred > policyMax {
		return policyMax
	}
	return preferred
}

func toCents(v float64) int64 {
	return int64(math.RoundToEven(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
