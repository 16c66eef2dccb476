package roi

import (
	"fmt"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

// Price converts one offense magnitude into a monetary estimate. Missing and zero rates yield an
// estimate without amount together with ErrUnpricedOffense; the caller decides how to report it.
func Price(kind domain.OffenseKind, magnitude float64, table RateTable) (domain.Estimate, error) {
	est := domain.Estimate{
		Kind:      kind,
		Magnitude: magnitude,
		Unit:      kind.Unit(),
		Currency:  table.Currency,
	}
	rate, ok := table.Rates[kind]
	if !ok || rate.PerUnit == 0 {
		return est, fmt.Errorf("%w: no rate for %s", domain.ErrUnpricedOffense, kind)
	}
	amount := magnitude * rate.PerUnit
	est.Rate = rate.PerUnit
	est.Amount = &amount
	return est, nil
}

// Quantifier annotates RICO cases with financial estimates taken from the rate book.
type Quantifier struct {
	book *RateBook
}

func NewQuantifier(book *RateBook) *Quantifier {
	return &Quantifier{book: book}
}

// Table returns the rate table the next pricing would use.
func (q *Quantifier) Table() (RateTable, error) {
	if q.book == nil {
		return RateTable{}, fmt.Errorf("%w: no rate book", domain.ErrConfiguration)
	}
	return q.book.Current()
}

// PriceCase estimates every charge of the case against one snapshot of the rate table. A charge is
// priced on its latest magnitude, since repeated offenses of one kind describe the same waste.
// Only priced charges contribute to the total. Priced and unpriced tallies count offenses.
func (q *Quantifier) PriceCase(c *domain.RICOCase, at time.Time) error {
	table, err := q.Table()
	if err != nil {
		return err
	}

	pricing := &domain.Pricing{Currency: table.Currency, PricedAt: at}
	for i := range c.Charges {
		ch := &c.Charges[i]
		est, _ := Price(ch.Kind, ch.Latest.Magnitude, table)
		ch.Estimate = &est
		offenses := max(len(ch.OffenseIDs), 1)
		if est.Priced() {
			pricing.PricedCount += offenses
			pricing.TotalSavings += *est.Amount
		} else {
			pricing.UnpricedCount += offenses
		}
	}
	c.Pricing = pricing
	return nil
}
