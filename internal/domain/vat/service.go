package vat

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/types"
	"invoicer/pkg/logger"
)

// Config configures the VAT service. Nil Rates or Rules use the built-in defaults.
type Config struct {
	HomeCountry string
	Rates       map[string]CountryRates
	Rules       []Rule
}

// ConfigFromFile loads rates and rules from path over the defaults.
// An empty path returns the defaults.
func ConfigFromFile(homeCountry, path string) (Config, error) {
	cfg := Config{HomeCountry: homeCountry}
	if path == "" {
		return cfg, nil
	}

	file, err := LoadRuleFile(path)
	if err != nil {
		return Config{}, err
	}

	if len(file.Rates) > 0 {
		cfg.Rates = DefaultRates()
		for _, r := range file.Rates {
			r.Country = strings.ToUpper(r.Country)
			cfg.Rates[r.Country] = r
		}
	}
	if len(file.Rules) > 0 {
		cfg.Rules = file.Rules
	}
	return cfg, nil
}

// Service determines treatments and computes tax.
type Service struct {
	home  CountryRates
	rates map[string]CountryRates
	rules []compiledRule
}

// NewService compiles the rules and checks the home country is known.
func NewService(cfg Config) (*Service, error) {
	rates := cfg.Rates
	if rates == nil {
		rates = DefaultRates()
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	home, ok := rates[strings.ToUpper(cfg.HomeCountry)]
	if !ok {
		return nil, fmt.Errorf("home country %q has no VAT rates", cfg.HomeCountry)
	}

	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	return &Service{home: home, rates: rates, rules: compiled}, nil
}

// HomeCountry returns the seller country.
func (s *Service) HomeCountry() string {
	return s.home.Country
}

// Rates returns the rate table entry of country.
func (s *Service) Rates(country string) (CountryRates, error) {
	r, ok := s.rates[strings.ToUpper(strings.TrimSpace(country))]
	if !ok {
		return CountryRates{}, apperror.NewNotFound("vat rates", country)
	}
	return r, nil
}

// Customer is the tax-relevant part of the buyer.
type Customer struct {
	Country string `json:"country"`
	VATID   string `json:"vatId,omitempty"`
}

// Determine returns the treatment of a sale to customer and the name of the
// rule that decided it. With no matching rule the sale is standard-rated.
func (s *Service) Determine(ctx context.Context, customer Customer) (Treatment, string, error) {
	country := strings.ToUpper(strings.TrimSpace(customer.Country))
	facts := Facts{
		SellerCountry:   s.home.Country,
		CustomerCountry: country,
		CustomerVATID:   strings.TrimSpace(customer.VATID),
		SellerInEU:      s.home.EU,
		CustomerInEU:    s.rates[country].EU,
	}

	for _, r := range s.rules {
		matched, err := r.matches(facts)
		if err != nil {
			return "", "", apperror.NewInternal(err)
		}
		if matched {
			logger.Debug(ctx, "vat rule matched", "rule", r.Name, "treatment", r.Treatment, "customer_country", country)
			return r.Treatment, r.Name, nil
		}
	}
	return TreatmentStandard, "", nil
}

// Line is a net amount to be taxed.
type Line struct {
	Net      types.Money `json:"net"`
	Category Category    `json:"category"`
}

// QuotedLine is a taxed line.
type QuotedLine struct {
	Net      types.Money     `json:"net"`
	Category Category        `json:"category"`
	Rate     decimal.Decimal `json:"rate"`
	VAT      types.Money     `json:"vat"`
	Gross    types.Money     `json:"gross"`
}

// Quote is the tax breakdown of a sale.
type Quote struct {
	Treatment  Treatment    `json:"treatment"`
	Rule       string       `json:"rule,omitempty"`
	Lines      []QuotedLine `json:"lines"`
	NetTotal   types.Money  `json:"netTotal"`
	VATTotal   types.Money  `json:"vatTotal"`
	GrossTotal types.Money  `json:"grossTotal"`
}

// RateFor returns the percent rate of category under treatment.
func (s *Service) RateFor(treatment Treatment, category Category) decimal.Decimal {
	if treatment != TreatmentStandard {
		return decimal.Zero
	}
	return s.home.Rate(category)
}

// Quote taxes lines for customer. VAT is rounded per line.
func (s *Service) Quote(ctx context.Context, customer Customer, lines []Line) (Quote, error) {
	treatment, rule, err := s.Determine(ctx, customer)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Treatment:  treatment,
		Rule:       rule,
		Lines:      make([]QuotedLine, 0, len(lines)),
		NetTotal:   types.Zero(),
		VATTotal:   types.Zero(),
		GrossTotal: types.Zero(),
	}

	for i, l := range lines {
		category := l.Category
		if category == "" {
			category = CategoryStandard
		}
		if !category.IsValid() {
			return Quote{}, apperror.NewValidation("invalid VAT category").
				WithDetail("line", i+1).
				WithDetail("value", category)
		}

		rate := s.RateFor(treatment, category)
		net := types.RoundMoney(l.Net)
		vat := types.Percent(net, rate)
		ql := QuotedLine{Net: net, Category: category, Rate: rate, VAT: vat, Gross: net.Add(vat)}

		q.Lines = append(q.Lines, ql)
		q.NetTotal = q.NetTotal.Add(ql.Net)
		q.VATTotal = q.VATTotal.Add(ql.VAT)
		q.GrossTotal = q.GrossTotal.Add(ql.Gross)
	}

	return q, nil
}
