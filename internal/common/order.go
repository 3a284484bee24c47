package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order is a single resting entry in a ladder. Price and Volume arrive
// pre-validated (tick size, precision) from the market-data layer; the book
// does not re-check them. Identity is the ID alone.
type Order struct {
	ID     string          // Unique within one ladder side
	Price  decimal.Decimal // Resting price
	Volume decimal.Decimal // Remaining quantity, never negative
	Side   Side            // Order side
}

// Exposure is the price-weighted size of the order.
func (o Order) Exposure() decimal.Decimal {
	return o.Price.Mul(o.Volume)
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order(%s, %s, %v, %s)",
		o.Price,
		o.Volume,
		o.Side,
		o.ID,
	)
}
