package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ashureev/autofinance/internal/domain"
)

var makes = []string{
	"hyundai", "toyota", "honda", "bmw", "mercedes", "kia", "nissan", "mazda", "ford",
	"chevrolet", "volkswagen", "audi", "peugeot", "renault", "skoda", "mg", "chery", "mitsubishi",
}

type modelInfo struct {
	name string
	make string
}

var models = map[string]modelInfo{
	"tucson":   {"Tucson", "Hyundai"},
	"elantra":  {"Elantra", "Hyundai"},
	"accent":   {"Accent", "Hyundai"},
	"corolla":  {"Corolla", "Toyota"},
	"camry":    {"Camry", "Toyota"},
	"rav4":     {"RAV4", "Toyota"},
	"civic":    {"Civic", "Honda"},
	"accord":   {"Accord", "Honda"},
	"crv":      {"CR-V", "Honda"},
	"cr-v":     {"CR-V", "Honda"},
	"sportage": {"Sportage", "Kia"},
	"cerato":   {"Cerato", "Kia"},
	"sunny":    {"Sunny", "Nissan"},
	"sentra":   {"Sentra", "Nissan"},
	"octavia":  {"Octavia", "Skoda"},
	"lancer":   {"Lancer", "Mitsubishi"},
}

// modelKeys is sorted so extraction does not depend on map iteration order.
var modelKeys = func() []string {
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

var makePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(makes))
	for i, m := range makes {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(m) + `\b`)
	}
	return out
}()

var specialMakeNames = map[string]string{"bmw": "BMW", "mg": "MG"}

var (
	yearPattern        = regexp.MustCompile(`\b(19[89]\d|20[0-3]\d)\b`)
	millionPattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:million|mil\b|m\b|مليون)`)
	thousandPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:k\b|thousand|ألف)`)
	groupedPattern     = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b`)
	plainNumberPattern = regexp.MustCompile(`\b\d{4,}(?:\.\d+)?\b`)
	priceKeyword       = regexp.MustCompile(`\b(?:under|below|less than|up to|max(?:imum)?|budget|within|price|cost|around|about)\b`)

	currencyPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:egp|جنيه|pounds?|le)\b`)
	incomeKeyword   = regexp.MustCompile(`(?:income|salary|earn(?:ing)?s?|make|راتب)\D{0,20}?(\d+(?:\.\d+)?)\s*(k\b|thousand|ألف)?`)
	debtPattern     = regexp.MustCompile(`(?:debts?|loans?|obligations?|installments?)\D{0,12}?(\d+(?:\.\d+)?)\s*(k\b|thousand|ألف)?`)
	noDebtPattern   = regexp.MustCompile(`\bno\s+(?:other\s+|existing\s+)?(?:debts?|loans?|obligations?|installments?)\b`)

	emailPattern      = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	phonePattern      = regexp.MustCompile(`(?:\+20\s?|0020|\b0)1\d{9}\b`)
	nationalIDPattern = regexp.MustCompile(`\b\d{14}\b`)
	namePattern       = regexp.MustCompile(`(?i)(?:my name is|name is|name:|this is|اسمي)\s*([\p{L} '.-]{3,50})`)
	nameStop          = regexp.MustCompile(`(?i)\s+(?:and|my|email|phone|mobile|number)\b.*$`)
	bareNamePattern   = regexp.MustCompile(`^[\p{L}][\p{L}'.-]*(?:\s+[\p{L}][\p{L}'.-]*){1,3}$`)
)

// ExtractCriteria pulls search criteria from free text. It returns nil unless
// the text names a make, model, or year, or states a price with a price word.
func ExtractCriteria(raw string) *domain.SearchCriteria {
	msg := normalize(raw)
	var c domain.SearchCriteria

	for i, p := range makePatterns {
		if p.MatchString(msg) {
			c.Make = titleMake(makes[i])
			break
		}
	}
	for _, key := range modelKeys {
		if strings.Contains(msg, key) {
			info := models[key]
			c.Model = info.name
			if c.Make == "" {
				c.Make = info.make
			}
			break
		}
	}

	years := yearPattern.FindAllString(msg, -1)
	switch len(years) {
	case 0:
	case 1:
		y, _ := strconv.Atoi(years[0])
		c.YearMin = &y
	default:
		a, _ := strconv.Atoi(years[0])
		b, _ := strconv.Atoi(years[1])
		if a > b {
			a, b = b, a
		}
		c.YearMin, c.YearMax = &a, &b
	}

	withoutYears := yearPattern.ReplaceAllString(msg, " ")
	price, hasPrice := extractPrice(withoutYears)
	namesVehicle := c.Make != "" || c.Model != "" || c.YearMin != nil
	if hasPrice && (namesVehicle || priceKeyword.MatchString(msg)) {
		c.PriceCap = &price
	}

	if c.IsEmpty() || (!namesVehicle && c.PriceCap == nil) {
		return nil
	}
	return &c
}

func titleMake(m string) string {
	if s, ok := specialMakeNames[m]; ok {
		return s
	}
	return strings.ToUpper(m[:1]) + m[1:]
}

func extractPrice(msg string) (float64, bool) {
	if m := millionPattern.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 1_000_000, true
		}
	}
	if m := thousandPattern.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 1000, true
		}
	}
	if m := groupedPattern.FindString(msg); m != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64); err == nil {
			return v, true
		}
	}
	if m := plainNumberPattern.FindString(msg); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Income bounds outside of which an extracted number is not treated as monthly income.
const (
	minPlausibleIncome = 1000
	maxPlausibleIncome = 500000
)

// ExtractProfile pulls monthly income, employment category, and existing debt.
func ExtractProfile(raw string) domain.ProfileUpdate {
	msg := strings.ReplaceAll(normalize(raw), ",", "")
	var u domain.ProfileUpdate

	if noDebtPattern.MatchString(msg) {
		zero := 0.0
		u.ExistingDebt = &zero
		msg = noDebtPattern.ReplaceAllString(msg, " ")
	} else if m := debtPattern.FindStringSubmatchIndex(msg); m != nil {
		if v, ok := scaled(msg[m[2]:m[3]], groupOrEmpty(msg, m, 2)); ok {
			u.ExistingDebt = &v
		}
		msg = msg[:m[0]] + " " + msg[m[1]:]
	}

	if v, ok := extractIncome(msg); ok {
		u.MonthlyIncome = &v
	}
	if cat, ok := ExtractEmployment(msg); ok {
		u.EmploymentCategory = cat
	}
	return u
}

func groupOrEmpty(s string, idx []int, group int) string {
	start, end := idx[2*group], idx[2*group+1]
	if start < 0 {
		return ""
	}
	return s[start:end]
}

func scaled(number, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	if suffix != "" {
		v *= 1000
	}
	return v, true
}

func extractIncome(msg string) (float64, bool) {
	candidates := []func() (float64, bool){
		func() (float64, bool) {
			m := incomeKeyword.FindStringSubmatch(msg)
			if m == nil {
				return 0, false
			}
			return scaled(m[1], m[2])
		},
		func() (float64, bool) {
			m := thousandPattern.FindStringSubmatch(msg)
			if m == nil {
				return 0, false
			}
			return scaled(m[1], "k")
		},
		func() (float64, bool) {
			m := currencyPattern.FindStringSubmatch(msg)
			if m == nil {
				return 0, false
			}
			return scaled(m[1], "")
		},
		func() (float64, bool) {
			for _, m := range plainNumberPattern.FindAllString(msg, -1) {
				if yearPattern.MatchString(m) {
					continue
				}
				return scaled(m, "")
			}
			return 0, false
		},
	}
	for _, try := range candidates {
		if v, ok := try(); ok && v >= minPlausibleIncome && v <= maxPlausibleIncome {
			return v, true
		}
	}
	return 0, false
}

type employmentMatcher struct {
	category domain.EmploymentCategory
	words    *regexp.Regexp
	arabic   []string
}

// Checked in order: self-employed before salaried so "self-employed" never reads as "employed".
var employmentMatchers = []employmentMatcher{
	{domain.EmploymentSelfEmployed, regexp.MustCompile(`\b(?:self-employed|self employed|freelancer?|freelance|business owner|own business)\b`), []string{"عمل حر"}},
	{domain.EmploymentCorporate, regexp.MustCompile(`\b(?:corporate|company)\b`), []string{"شركة"}},
	{domain.EmploymentOther, regexp.MustCompile(`\b(?:retired|pension|pensioner|other)\b`), []string{"متقاعد", "أخرى"}},
	{domain.EmploymentSalaried, regexp.MustCompile(`\b(?:salaried|employee|employed|salary|wage)\b`), []string{"موظف"}},
}

// ExtractEmployment finds an employment category keyword in raw.
func ExtractEmployment(raw string) (domain.EmploymentCategory, bool) {
	msg := normalize(raw)
	for _, m := range employmentMatchers {
		if m.words.MatchString(msg) {
			return m.category, true
		}
		for _, kw := range m.arabic {
			if strings.Contains(msg, kw) {
				return m.category, true
			}
		}
	}
	return "", false
}

// ExtractContact pulls contact details. When bareName is set, a message made
// of two to four words and nothing else is read as a full name.
func ExtractContact(raw string, bareName bool) domain.CustomerContact {
	var c domain.CustomerContact
	text := strings.TrimSpace(raw)

	c.Email = strings.ToLower(emailPattern.FindString(text))
	rest := emailPattern.ReplaceAllString(text, " ")

	if p := phonePattern.FindString(rest); p != "" {
		p = strings.ReplaceAll(p, " ", "")
		switch {
		case strings.HasPrefix(p, "+20"):
			p = "0" + strings.TrimPrefix(p, "+20")
		case strings.HasPrefix(p, "0020"):
			p = "0" + strings.TrimPrefix(p, "0020")
		}
		c.Phone = p
	}
	c.NationalID = nationalIDPattern.FindString(rest)

	if m := namePattern.FindStringSubmatch(rest); m != nil {
		c.FullName = cleanName(m[1])
	} else if bareName && bareNamePattern.MatchString(text) {
		c.FullName = cleanName(text)
	}
	return c
}

func cleanName(s string) string {
	s = nameStop.ReplaceAllString(s, "")
	s = strings.Trim(s, " .,'-")
	return strings.Join(strings.Fields(s), " ")
}
