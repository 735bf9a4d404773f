package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/finance"
)

type quoteFlags struct {
	price   float64
	down    float64
	rate    float64
	tenure  int
	income  float64
	debt    float64
	maxDBR  float64
	jsonOut bool
}

// quoteResult is the JSON shape of `autofinctl quote --json`.
type quoteResult struct {
	Principal          float64 `json:"principal"`
	DownPayment        float64 `json:"down_payment"`
	InterestRateAnnual float64 `json:"interest_rate_annual"`
	TenureMonths       int     `json:"tenure_months"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalPayment       float64 `json:"total_payment"`
	DebtBurdenRatio    float64 `json:"debt_burden_ratio"`
	IsAffordable       bool    `json:"is_affordable"`
}

func newQuoteCmd() *cobra.Command {
	var f quoteFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute an amortized loan quote and its affordability",
		Example: "  autofinctl quote --price 450000 --rate 0.18 --tenure 60 --income 30000\n" +
			"  autofinctl quote --price 450000 --down 0.3 --rate 0.2 --tenure 48 --income 25000 --debt 2000 --json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := computeQuote(f)
			if err != nil {
				return err
			}
			if f.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printQuote(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Float64Var(&f.price, "price", 0, "vehicle price")
	cmd.Flags().Float64Var(&f.down, "down", 0.20, "down payment as a fraction of the price")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "annual interest rate as a fraction (0.18 for 18%)")
	cmd.Flags().IntVar(&f.tenure, "tenure", 60, "loan tenure in months")
	cmd.Flags().Float64Var(&f.income, "income", 0, "applicant monthly income")
	cmd.Flags().Float64Var(&f.debt, "debt", 0, "existing monthly debt payments")
	cmd.Flags().Float64Var(&f.maxDBR, "max-dbr", 0.5, "maximum debt burden ratio")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("income")
	return cmd
}

func computeQuote(f quoteFlags) (quoteResult, error) {
	principal, downPayment, err := finance.FinancedAmount(f.price, f.down)
	if err != nil {
		return quoteResult{}, err
	}
	am, err := finance.Amortize(principal, f.rate, f.tenure)
	if err != nil {
		return quoteResult{}, err
	}
	aff, err := finance.CheckAffordability(am.MonthlyInstallment, f.income, f.debt, f.maxDBR)
	if err != nil {
		return quoteResult{}, err
	}
	return quoteResult{
		Principal:          principal,
		DownPayment:        downPayment,
		InterestRateAnnual: f.rate,
		TenureMonths:       f.tenure,
		MonthlyInstallment: am.MonthlyInstallment,
		TotalInterest:      am.TotalInterest,
		TotalPayment:       am.TotalPayment,
		DebtBurdenRatio:    aff.DebtBurdenRatio,
		IsAffordable:       aff.IsAffordable,
	}, nil
}

func printQuote(w io.Writer, r quoteResult) {
	fmt.Fprintln(w, "--- Loan Quote ---")
	fmt.Fprintf(w, "Financed amount:     %s\n", domain.FormatAmount(r.Principal))
	fmt.Fprintf(w, "Down payment:        %s\n", domain.FormatAmount(r.DownPayment))
	fmt.Fprintf(w, "Rate:                %.2f%% / year over %d months\n", r.InterestRateAnnual*100, r.TenureMonths)
	fmt.Fprintf(w, "Monthly installment: %s\n", domain.FormatAmount(r.MonthlyInstallment))
	fmt.Fprintf(w, "Total interest:      %s\n", domain.FormatAmount(r.TotalInterest))
	fmt.Fprintf(w, "Total payment:       %s\n", domain.FormatAmount(r.TotalPayment))
	verdict := "affordable"
	if !r.IsAffordable {
		verdict = "NOT affordable"
	}
	fmt.Fprintf(w, "Debt burden ratio:   %.1f%% (%s)\n", r.DebtBurdenRatio*100, verdict)
}
