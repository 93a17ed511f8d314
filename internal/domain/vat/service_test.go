package vat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/types"
)

func newDE(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{HomeCountry: "de"})
	require.NoError(t, err)
	return svc
}

func TestDetermine(t *testing.T) {
	svc := newDE(t)

	tests := []struct {
		name     string
		customer Customer
		want     Treatment
		rule     string
	}{
		{"domestic private", Customer{Country: "DE"}, TreatmentStandard, ""},
		{"domestic business", Customer{Country: "DE", VATID: "DE123456789"}, TreatmentStandard, ""},
		{"eu private", Customer{Country: "FR"}, TreatmentStandard, ""},
		{"eu business", Customer{Country: "fr", VATID: "FR12345678901"}, TreatmentReverseCharge, "intra-eu-reverse-charge"},
		{"outside eu", Customer{Country: "US"}, TreatmentExport, "export"},
		{"unknown country", Customer{Country: "JP"}, TreatmentExport, "export"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule, err := svc.Determine(context.Background(), tt.customer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestQuote_Standard(t *testing.T) {
	svc := newDE(t)

	q, err := svc.Quote(context.Background(), Customer{Country: "DE"}, []Line{
		{Net: types.MustMoney("100.00"), Category: CategoryStandard},
		{Net: types.MustMoney("10.05"), Category: CategoryReduced},
		{Net: types.MustMoney("5.00"), Category: CategoryExempt},
		{Net: types.MustMoney("1.00")},
	})
	require.NoError(t, err)

	assert.Equal(t, TreatmentStandard, q.Treatment)
	require.Len(t, q.Lines, 4)
	assert.True(t, q.Lines[0].VAT.Equal(types.MustMoney("19.00")))
	// 10.05 * 7% = 0.7035
	assert.True(t, q.Lines[1].VAT.Equal(types.MustMoney("0.70")))
	assert.True(t, q.Lines[2].VAT.IsZero())
	assert.Equal(t, CategoryStandard, q.Lines[3].Category)

	assert.True(t, q.NetTotal.Equal(types.MustMoney("116.05")), q.NetTotal.String())
	assert.True(t, q.VATTotal.Equal(types.MustMoney("19.89")), q.VATTotal.String())
	assert.True(t, q.GrossTotal.Equal(q.NetTotal.Add(q.VATTotal)))
}

func TestQuote_ReverseChargeIsZeroRated(t *testing.T) {
	svc := newDE(t)

	q, err := svc.Quote(context.Background(), Customer{Country: "NL", VATID: "NL123456789B01"}, []Line{
		{Net: types.MustMoney("250"), Category: CategoryStandard},
	})
	require.NoError(t, err)
	assert.Equal(t, TreatmentReverseCharge, q.Treatment)
	assert.True(t, q.VATTotal.IsZero())
	assert.True(t, q.GrossTotal.Equal(types.MustMoney("250")))
}

func TestQuote_InvalidCategory(t *testing.T) {
	_, err := newDE(t).Quote(context.Background(), Customer{Country: "DE"}, []Line{{Net: decimal.NewFromInt(1), Category: "luxury"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestNewService_Errors(t *testing.T) {
	_, err := NewService(Config{HomeCountry: "XX"})
	assert.Error(t, err)

	_, err = NewService(Config{HomeCountry: "DE", Rules: []Rule{{Name: "bad", Condition: `customer_country`, Treatment: TreatmentExempt}}})
	assert.ErrorContains(t, err, "must be bool")

	_, err = NewService(Config{HomeCountry: "DE", Rules: []Rule{{Name: "typo", Condition: `customer_countyr == "FR"`, Treatment: TreatmentExempt}}})
	assert.Error(t, err)

	_, err = NewService(Config{HomeCountry: "DE", Rules: []Rule{{Name: "t", Condition: `true`, Treatment: "free"}}})
	assert.ErrorContains(t, err, "unknown treatment")
}

func TestRates(t *testing.T) {
	svc := newDE(t)

	fr, err := svc.Rates("fr")
	require.NoError(t, err)
	assert.True(t, fr.Reduced.Equal(decimal.RequireFromString("5.5")))
	assert.True(t, fr.EU)

	_, err = svc.Rates("ZZ")
	assert.True(t, apperror.IsNotFound(err))
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rates:
  - country: de
    standard: 16
    reduced: "5"
    eu: true
rules:
  - name: charity
    condition: customer_vat_id.startsWith("CH-")
    treatment: exempt
`), 0o600))

	cfg, err := ConfigFromFile("DE", path)
	require.NoError(t, err)

	svc, err := NewService(cfg)
	require.NoError(t, err)

	de, err := svc.Rates("DE")
	require.NoError(t, err)
	assert.True(t, de.Standard.Equal(decimal.NewFromInt(16)))

	got, rule, err := svc.Determine(context.Background(), Customer{Country: "DE", VATID: "CH-42"})
	require.NoError(t, err)
	assert.Equal(t, TreatmentExempt, got)
	assert.Equal(t, "charity", rule)

	// rules from the file replace the defaults
	got, _, err = svc.Determine(context.Background(), Customer{Country: "US"})
	require.NoError(t, err)
	assert.Equal(t, TreatmentStandard, got)
}
