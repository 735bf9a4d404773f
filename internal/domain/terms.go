package domain

// PolicyTerms is the outcome of an eligibility evaluation.
type PolicyTerms struct {
	Description        string  `json:"description,omitempty"`
	InterestRateAnnual float64 `json:"interest_rate_annual"`
	MaxTenureMonths    int     `json:"max_tenure_months"`
	MaxDebtBurdenRatio float64 `json:"max_debt_burden_ratio"`
	IsEligible         bool    `json:"is_eligible"`
	RejectionReason    string  `json:"rejection_reason,omitempty"`
}

// Quote is a computed loan offer for the selected vehicle.
type Quote struct {
	VehiclePrice       float64 `json:"vehicle_price"`
	DownPayment        float64 `json:"down_payment"`
	Principal          float64 `json:"principal"`
	InterestRateAnnual float64 `json:"interest_rate_annual"`
	TenureMonths       int     `json:"tenure_months"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalPayment       float64 `json:"total_payment"`
	DebtBurdenRatio    float64 `json:"debt_burden_ratio"`
	IsAffordable       bool    `json:"is_affordable"`
}
