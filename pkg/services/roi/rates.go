package roi

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

// Rate is the currency value of one unit of offense magnitude.
type Rate struct {
	PerUnit float64
	Unit    string
}

// RateTable maps offense kinds to rates. A kind without an entry is unpriced, not an error.
type RateTable struct {
	Currency string
	Rates    map[domain.OffenseKind]Rate
}

func (t RateTable) Validate() error {
	if t.Currency == "" {
		return fmt.Errorf("%w: rate table currency is required", domain.ErrConfiguration)
	}
	for kind, rate := range t.Rates {
		if _, err := domain.ParseOffenseKind(string(kind)); err != nil {
			return fmt.Errorf("%w: rate table: %v", domain.ErrConfiguration, err)
		}
		if rate.PerUnit < 0 || math.IsNaN(rate.PerUnit) || math.IsInf(rate.PerUnit, 0) {
			return fmt.Errorf("%w: rate for %s must be a finite non-negative number", domain.ErrConfiguration, kind)
		}
		if rate.Unit != "" && rate.Unit != kind.Unit() {
			return fmt.Errorf("%w: rate for %s is per %s, offenses are measured in %s",
				domain.ErrConfiguration, kind, rate.Unit, kind.Unit())
		}
	}
	return nil
}

func (t RateTable) clone() RateTable {
	rates := make(map[domain.OffenseKind]Rate, len(t.Rates))
	for k, v := range t.Rates {
		rates[k] = v
	}
	return RateTable{Currency: t.Currency, Rates: rates}
}

// RateBook holds the current rate table and swaps it atomically on reload.
type RateBook struct {
	current atomic.Pointer[RateTable]
}

func NewRateBook(table RateTable) (*RateBook, error) {
	b := &RateBook{}
	if err := b.Replace(table); err != nil {
		return nil, err
	}
	return b, nil
}

// Replace installs a new table. An invalid table leaves the previous one in place.
func (b *RateBook) Replace(table RateTable) error {
	if err := table.Validate(); err != nil {
		return err
	}
	t := table.clone()
	b.current.Store(&t)
	return nil
}

// Current returns the table in effect, or an error when none was ever installed.
func (b *RateBook) Current() (RateTable, error) {
	t := b.current.Load()
	if t == nil {
		return RateTable{}, fmt.Errorf("%w: no rate table loaded", domain.ErrConfiguration)
	}
	return *t, nil
}
