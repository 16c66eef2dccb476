package roi

import (
	"testing"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prototypeRates() RateTable {
	return RateTable{
		Currency: "USD",
		Rates: map[domain.OffenseKind]Rate{
			domain.OffenseLicenseHoarding: {PerUnit: 10, Unit: "Mbps"},
			domain.OffenseSpectrumWaste:   {PerUnit: 20, Unit: "MHz"},
			domain.OffenseZombiePort:      {PerUnit: 5, Unit: "W"},
		},
	}
}

func TestPrice(t *testing.T) {
	table := prototypeRates()
	table.Rates[domain.OffenseZombiePort] = Rate{PerUnit: 0}

	tests := []struct {
		name      string
		kind      domain.OffenseKind
		magnitude float64
		want      *float64
	}{
		{"license", domain.OffenseLicenseHoarding, 340, ptr(3400)},
		{"spectrum", domain.OffenseSpectrumWaste, 28, ptr(560)},
		{"zero magnitude is priced", domain.OffenseSpectrumWaste, 0, ptr(0)},
		{"zero rate is unpriced", domain.OffenseZombiePort, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := Price(tt.kind, tt.magnitude, table)
			if tt.want == nil {
				assert.ErrorIs(t, err, domain.ErrUnpricedOffense)
				assert.False(t, est.Priced())
				assert.Nil(t, est.Amount)
				return
			}
			require.NoError(t, err)
			require.True(t, est.Priced())
			assert.InDelta(t, *tt.want, *est.Amount, 1e-9)
			assert.Equal(t, "USD", est.Currency)
		})
	}

	delete(table.Rates, domain.OffenseLicenseHoarding)
	est, err := Price(domain.OffenseLicenseHoarding, 1, table)
	assert.ErrorIs(t, err, domain.ErrUnpricedOffense)
	assert.Nil(t, est.Amount)
}

func TestPriceCase_SumsPricedChargesOnly(t *testing.T) {
	table := prototypeRates()
	delete(table.Rates, domain.OffenseZombiePort)
	book, err := NewRateBook(table)
	require.NoError(t, err)

	c := &domain.RICOCase{
		Charges: []domain.Charge{
			{ResourceID: "R1", Kind: domain.OffenseLicenseHoarding, Latest: domain.Offense{Magnitude: 340}},
			{ResourceID: "R2", Kind: domain.OffenseSpectrumWaste, Latest: domain.Offense{Magnitude: 28}},
			{ResourceID: "R3", Kind: domain.OffenseZombiePort, Latest: domain.Offense{Magnitude: 10}},
		},
	}
	at := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, NewQuantifier(book).PriceCase(c, at))

	require.NotNil(t, c.Pricing)
	assert.InDelta(t, 3960, c.Pricing.TotalSavings, 1e-9)
	assert.Equal(t, 2, c.Pricing.PricedCount)
	assert.Equal(t, 1, c.Pricing.UnpricedCount)
	assert.Equal(t, at, c.Pricing.PricedAt)
	require.NotNil(t, c.Charges[2].Estimate)
	assert.Nil(t, c.Charges[2].Estimate.Amount)
}

func TestPriceCase_CountsOffensesNotCharges(t *testing.T) {
	table := prototypeRates()
	delete(table.Rates, domain.OffenseSpectrumWaste)
	book, err := NewRateBook(table)
	require.NoError(t, err)

	c := &domain.RICOCase{
		Charges: []domain.Charge{
			{ResourceID: "R1", Kind: domain.OffenseLicenseHoarding, OffenseIDs: []string{"o1", "o2", "o3"},
				Latest: domain.Offense{Magnitude: 100}},
			{ResourceID: "R2", Kind: domain.OffenseSpectrumWaste, OffenseIDs: []string{"o4", "o5"},
				Latest: domain.Offense{Magnitude: 28}},
		},
	}
	require.NoError(t, NewQuantifier(book).PriceCase(c, time.Time{}))

	assert.InDelta(t, 1000, c.Pricing.TotalSavings, 1e-9, "latest magnitude only, not one amount per offense")
	assert.Equal(t, 3, c.Pricing.PricedCount)
	assert.Equal(t, 2, c.Pricing.UnpricedCount)
}

func TestRateBook_ReplaceKeepsPreviousOnInvalid(t *testing.T) {
	book, err := NewRateBook(prototypeRates())
	require.NoError(t, err)

	bad := prototypeRates()
	bad.Rates[domain.OffenseSpectrumWaste] = Rate{PerUnit: -1}
	assert.ErrorIs(t, book.Replace(bad), domain.ErrConfiguration)

	wrongUnit := prototypeRates()
	wrongUnit.Rates[domain.OffenseSpectrumWaste] = Rate{PerUnit: 1, Unit: "Mbps"}
	assert.ErrorIs(t, book.Replace(wrongUnit), domain.ErrConfiguration)

	assert.ErrorIs(t, book.Replace(RateTable{}), domain.ErrConfiguration)

	current, err := book.Current()
	require.NoError(t, err)
	assert.Equal(t, 20.0, current.Rates[domain.OffenseSpectrumWaste].PerUnit)

	updated := prototypeRates()
	updated.Rates[domain.OffenseSpectrumWaste] = Rate{PerUnit: 25}
	require.NoError(t, book.Replace(updated))
	current, _ = book.Current()
	assert.Equal(t, 25.0, current.Rates[domain.OffenseSpectrumWaste].PerUnit)

	updated.Rates[domain.OffenseSpectrumWaste] = Rate{PerUnit: 99}
	current, _ = book.Current()
	assert.Equal(t, 25.0, current.Rates[domain.OffenseSpectrumWaste].PerUnit, "book keeps its own copy")
}

func TestRateBook_EmptyIsConfigurationError(t *testing.T) {
	_, err := (&RateBook{}).Current()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func ptr(v float64) *float64 { return &v }
