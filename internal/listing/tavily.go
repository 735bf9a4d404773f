package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

var marketplaceDomains = []string{"hatla2ee.com", "dubizzle.com.eg"}

var errTavilyStatus = errors.New("tavily search returned non-2xx status")

// TavilyConfig configures the Tavily marketplace client.
type TavilyConfig struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// Tavily searches Egyptian car marketplaces through the Tavily web search API.
type Tavily struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// NewTavily returns a Tavily client.
func NewTavily(cfg TavilyConfig) (*Tavily, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tavily api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultTavilyURL
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > domain.MaxListings {
		cfg.MaxResults = domain.MaxListings
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Tavily{apiKey: cfg.APIKey, endpoint: cfg.Endpoint, maxResults: cfg.MaxResults, client: cfg.HTTPClient}, nil
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Vehicle, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:          BuildQuery(criteria),
		SearchDepth:    "advanced",
		MaxResults:     t.maxResults * 2,
		IncludeDomains: marketplaceDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d %s", errTavilyStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	var out []domain.Vehicle
	for _, r := range decoded.Results {
		text := r.Title + " " + r.Content
		price, ok := ParsePrice(text)
		if !ok {
			continue
		}
		v := domain.Vehicle{
			Name:       r.Title,
			Make:       criteria.Make,
			Model:      criteria.Model,
			Year:       ParseYear(text),
			Price:      price,
			Mileage:    ParseMileage(text),
			SourceURL:  r.URL,
			SourceSite: sourceSite(r.URL),
		}
		if v.Name == "" {
			v.Name = strings.TrimSpace(criteria.Make + " " + criteria.Model)
		}
		if !criteria.Matches(v) {
			continue
		}
		out = append(out, v)
		if len(out) >= t.maxResults {
			break
		}
	}
	return out, nil
}

// BuildQuery renders criteria as a marketplace-restricted web query.
func BuildQuery(c domain.SearchCriteria) string {
	var parts []string
	if c.Make != "" {
		parts = append(parts, c.Make)
	}
	if c.Model != "" {
		parts = append(parts, c.Model)
	}
	switch {
	case c.YearMin != nil && c.YearMax != nil && *c.YearMin == *c.YearMax:
		parts = append(parts, strconv.Itoa(*c.YearMin))
	case c.YearMin != nil && c.YearMax != nil:
		parts = append(parts, fmt.Sprintf("%d-%d", *c.YearMin, *c.YearMax))
	case c.YearMin != nil:
		parts = append(parts, fmt.Sprintf("%d+", *c.YearMin))
	case c.YearMax != nil:
		parts = append(parts, strconv.Itoa(*c.YearMax))
	}
	parts = append(parts, "price in Egypt")
	return strings.Join(parts, " ") + " site:hatla2ee.com OR site:dubizzle.com.eg"
}

var (
	priceWithCurrency = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*(?:EGP|جنيه|ج\.م)`)
	currencyThenPrice = regexp.MustCompile(`(?i)(?:EGP|جنيه)\s*(\d{1,3}(?:,\d{3})+|\d+)`)
	priceInMillions   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:million|مليون)`)
	bareLargeNumber   = regexp.MustCompile(`\d{4,}`)
	listingYear       = regexp.MustCompile(`\b(20[0-3]\d)\b`)
	mileageKM         = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+)\s*(?:km|كم|kilometers?)`)
	mileageThousands  = regexp.MustCompile(`(?i)(\d+)\s*(?:ألف|thousand)\s*(?:km|كم)`)
)

// Plausible listing price bounds for numbers without a currency marker.
const (
	minBarePrice = 50_000
	maxBarePrice = 10_000_000
)

// ParsePrice extracts a listing price in EGP.
func ParsePrice(text string) (float64, bool) {
	if m := priceInMillions.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v * 1_000_000, true
		}
	}
	for _, p := range []*regexp.Regexp{priceWithCurrency, currencyThenPrice} {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && v > 0 {
				return v, true
			}
		}
	}
	for _, n := range bareLargeNumber.FindAllString(strings.ReplaceAll(text, ",", ""), -1) {
		v, err := strconv.ParseFloat(n, 64)
		if err == nil && v >= minBarePrice && v <= maxBarePrice {
			return v, true
		}
	}
	return 0, false
}

// ParseYear returns the first model year in text, or 0.
func ParseYear(text string) int {
	if m := listingYear.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return 0
}

// ParseMileage returns the odometer reading in km, or 0.
func ParseMileage(text string) int {
	if m := mileageThousands.FindStringSubmatch(text); m != nil {
		v, _ := strconv.Atoi(m[1])
		return v * 1000
	}
	if m := mileageKM.FindStringSubmatch(text); m != nil {
		v, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		return v
	}
	return 0
}

func sourceSite(url string) string {
	switch {
	case strings.Contains(strings.ToLower(url), "hatla2ee"):
		return "Hatla2ee"
	case strings.Contains(strings.ToLower(url), "dubizzle"):
		return "Dubizzle"
	default:
		return ""
	}
}
