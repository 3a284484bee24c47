package book

import (
	"errors"

	"github.com/shopspring/decimal"

	"hati/internal/common"
)

var (
	ErrPriceMismatch = errors.New("order price does not match level price")
	ErrOrderNotFound = errors.New("order not found")
)

// Level holds every resting order at one exact price, in arrival (FIFO)
// order. A level never outlives its last order: the owning ladder drops it
// the moment it empties.
type Level struct {
	price  decimal.Decimal
	orders []*common.Order
}

func NewLevel(price decimal.Decimal) *Level {
	return &Level{price: price}
}

// Add appends the order to the back of the time-priority queue. The order
// must be priced at this level.
func (l *Level) Add(order *common.Order) error {
	if !order.Price.Equal(l.price) {
		return ErrPriceMismatch
	}
	l.orders = append(l.orders, order)
	return nil
}

// Update replaces the volume of the resting order with the same ID. The
// order keeps its position in the queue; a volume change at an unchanged
// price (partial fill, re-quote) does not reset time priority.
func (l *Level) Update(order *common.Order) error {
	for _, resting := range l.orders {
		if resting.ID == order.ID {
			resting.Volume = order.Volume
			return nil
		}
	}
	return ErrOrderNotFound
}

// Delete removes the order with the given ID, reporting whether it was
// present.
func (l *Level) Delete(id string) bool {
	for i, resting := range l.orders {
		if resting.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Level) Price() decimal.Decimal {
	return l.price
}

// Volume is the summed remaining quantity of every order at this price.
func (l *Level) Volume() decimal.Decimal {
	total := decimal.Zero
	for _, order := range l.orders {
		total = total.Add(order.Volume)
	}
	return total
}

// Exposure is the price-weighted volume of the level. All orders share one
// price, so this is Volume() scaled by it.
func (l *Level) Exposure() decimal.Decimal {
	return l.price.Mul(l.Volume())
}

// Orders returns the resting orders in time priority. The slice is shared
// with the level; callers must not mutate it.
func (l *Level) Orders() []*common.Order {
	return l.orders
}

func (l *Level) Len() int {
	return len(l.orders)
}
