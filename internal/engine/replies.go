package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/autofinance/internal/domain"
)

const (
	welcomeMessage = "Welcome to AutoFinance. I can search Egyptian marketplaces for a car, " +
		"check your loan eligibility, and submit a pre-approval request.\n" +
		"Tell me what car you're looking for (for example \"a 2022 Toyota Corolla under 500,000\"), " +
		"or share your application ID to check its status."
	resetMessage            = "Let's start over. What car are you looking for?"
	askVehicleMessage       = "What car are you looking for? You can mention the make, model, year, and budget."
	searchAgainMessage      = "Tell me a different make, model, year, or budget and I'll search again."
	searchCancelledMessage  = "No problem. Tell me what car you'd like to search for instead."
	noVehiclesMessage       = "No vehicles available. Please search again."
	differentVehicleMessage = "Okay, let's pick a different vehicle."
	clarifyQuoteMessage     = "Please reply \"yes\" to proceed with this quote or \"no\" to choose a different vehicle."
	askApplicationIDMessage = "Please share your application ID so I can look up its status."
)

func searchConfirmMessage(c domain.SearchCriteria) string {
	return fmt.Sprintf("I'll search for %s. Shall I go ahead? (yes/no)", c.Describe())
}

func clarifySearchMessage(c domain.SearchCriteria) string {
	return fmt.Sprintf("Please reply \"yes\" to search for %s, or \"no\" to change your criteria.", c.Describe())
}

func noResultsMessage(c domain.SearchCriteria) string {
	return fmt.Sprintf("I couldn't find any vehicles for %s. %s", c.Describe(), searchAgainMessage)
}

func foundMessage(n int, c domain.SearchCriteria) string {
	noun := "vehicles"
	if n == 1 {
		noun = "vehicle"
	}
	return fmt.Sprintf("I found %d %s for %s.", n, noun, c.Describe())
}

func listingsMessage(options []string) string {
	var b strings.Builder
	for i, o := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, o)
	}
	b.WriteString("Reply with the number of the vehicle you'd like to finance, or 0 to search again.")
	return b.String()
}

func selectionRangeMessage(n int) string {
	if n == 1 {
		return "Please enter 1 to choose the listed vehicle."
	}
	return fmt.Sprintf("Please enter a number from 1 to %d.", n)
}

func selectedMessage(v domain.Vehicle) string {
	return "You selected " + v.Summary() + "."
}

func askProfileMessage(p domain.ApplicantProfile) string {
	var missing []string
	if p.MonthlyIncome == nil {
		missing = append(missing, "your monthly income")
	}
	if p.EmploymentCategory == "" {
		missing = append(missing, "your employment type (salaried, self-employed, corporate, or other)")
	}
	return "To check your eligibility I need " + strings.Join(missing, " and ") + "."
}

func profileNotedMessage(p domain.ApplicantProfile) string {
	var parts []string
	if p.MonthlyIncome != nil {
		parts = append(parts, "monthly income "+domain.FormatAmount(*p.MonthlyIncome)+" EGP")
	}
	if p.EmploymentCategory != "" {
		parts = append(parts, "employment "+employmentLabel(p.EmploymentCategory))
	}
	if p.ExistingDebt > 0 {
		parts = append(parts, "existing monthly debt "+domain.FormatAmount(p.ExistingDebt)+" EGP")
	}
	return "Noted: " + strings.Join(parts, ", ") + "."
}

func ineligibleMessage(terms domain.PolicyTerms) string {
	return "Unfortunately this vehicle isn't eligible for financing. " + terms.RejectionReason
}

func quoteSummaryMessage(v domain.Vehicle, q domain.Quote, terms domain.PolicyTerms) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pre-approval estimate for %s\n", v.Summary())
	writeQuoteLines(&b, q)
	fmt.Fprintf(&b, "Debt burden ratio: %s%% (limit %s%%)\n", percent(q.DebtBurdenRatio), percent(terms.MaxDebtBurdenRatio))
	if !q.IsAffordable {
		b.WriteString("Note: this exceeds the debt burden limit, so approval will need manual review.\n")
	}
	b.WriteString("Final approval is subject to document verification.\n")
	b.WriteString("Would you like to proceed with this request? (yes/no)")
	return b.String()
}

func unaffordableMessage(q domain.Quote, p domain.ApplicantProfile, terms domain.PolicyTerms) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Affordability concern: with your income of %s EGP, the monthly installment of %s EGP",
		domain.FormatAmount(p.Income()), domain.FormatAmount(q.MonthlyInstallment))
	if p.ExistingDebt > 0 {
		fmt.Fprintf(&b, " plus existing debt of %s EGP", domain.FormatAmount(p.ExistingDebt))
	}
	fmt.Fprintf(&b, " is %s%% of your income. The policy allows at most %s%%.\n",
		percent(q.DebtBurdenRatio), percent(terms.MaxDebtBurdenRatio))
	writeQuoteLines(&b, q)
	b.WriteString("Reply \"continue anyway\" to proceed with this quote, or \"different vehicle\" to pick another car.")
	return b.String()
}

func writeQuoteLines(b *strings.Builder, q domain.Quote) {
	fmt.Fprintf(b, "Price: %s EGP, down payment: %s EGP, financed: %s EGP\n",
		domain.FormatAmount(q.VehiclePrice), domain.FormatAmount(q.DownPayment), domain.FormatAmount(q.Principal))
	fmt.Fprintf(b, "Interest rate: %s%% per year over %d months\n", percent(q.InterestRateAnnual), q.TenureMonths)
	fmt.Fprintf(b, "Monthly installment: %s EGP\n", domain.FormatAmount(q.MonthlyInstallment))
	fmt.Fprintf(b, "Total interest: %s EGP, total payable: %s EGP\n",
		domain.FormatAmount(q.TotalInterest), domain.FormatAmount(q.TotalPayment))
}

func askContactMessage(c domain.CustomerContact) string {
	missing := c.Missing()
	if len(missing) == 3 {
		return "Great! To submit your application, please share your full name, email, and phone number."
	}
	return "Thanks. I still need your " + strings.Join(missing, " and ") + "."
}

func submittedMessage(id string, c domain.CustomerContact) string {
	return fmt.Sprintf("Thank you, %s. Your application has been submitted.\nApplication ID: %s\n"+
		"Our team will review it and contact you at %s. Keep this ID to check your status.",
		c.FullName, id, c.Email)
}

func closingMessage(id string) string {
	return fmt.Sprintf("Thank you for using AutoFinance! Your application ID is %s.", id)
}

func completedReminderMessage(id string) string {
	return fmt.Sprintf("Your application %s has been submitted. Ask for its status any time, "+
		"or say \"start over\" to begin a new request.", id)
}

func applicationNotFoundMessage(id string) string {
	return fmt.Sprintf("I couldn't find an application with ID %s. Please check the ID and try again.", id)
}

func applicationStatusMessage(app domain.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application %s\nStatus: %s\n", app.ID, statusLabel(app.Status))
	fmt.Fprintf(&b, "Vehicle: %s\n", app.Vehicle.Summary())
	fmt.Fprintf(&b, "Monthly installment: %s EGP over %d months\n",
		domain.FormatAmount(app.Quote.MonthlyInstallment), app.Quote.TenureMonths)
	fmt.Fprintf(&b, "Submitted: %s", app.CreatedAt.Format("2006-01-02"))
	return b.String()
}

func statusLabel(s domain.ApplicationStatus) string {
	switch s {
	case domain.StatusPendingReview:
		return "Pending review"
	case domain.StatusUnderReview:
		return "Under review"
	case domain.StatusApproved:
		return "Approved"
	case domain.StatusRejected:
		return "Rejected"
	case domain.StatusDocumentsRequired:
		return "Documents required"
	default:
		return string(s)
	}
}

func employmentLabel(c domain.EmploymentCategory) string {
	return strings.ReplaceAll(string(c), "_", "-")
}

func percent(ratio float64) string {
	return strconv.FormatFloat(math.Round(ratio*1000)/10, 'f', -1, 64)
}
