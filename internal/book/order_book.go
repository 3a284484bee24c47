package book

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hati/internal/common"
)

var (
	ErrCrossedBook      = errors.New("book is crossed")
	ErrInvalidDeltaType = errors.New("invalid delta type")
)

// OrderBook composes a bid and an ask ladder for one instrument. All logic
// lives in the ladders; the book routes by side and answers the queries
// that need both sides at once (spread, midpoint, snapshots).
type OrderBook struct {
	instrument string
	bids       *Ladder
	asks       *Ladder
}

func New(instrument string) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       NewLadder(common.Buy),
		asks:       NewLadder(common.Sell),
	}
}

func (b *OrderBook) SetLogger(log zerolog.Logger) {
	log = log.With().Str("instrument", b.instrument).Logger()
	b.bids.SetLogger(log)
	b.asks.SetLogger(log)
}

func (b *OrderBook) Instrument() string {
	return b.instrument
}

func (b *OrderBook) Bids() *Ladder {
	return b.bids
}

func (b *OrderBook) Asks() *Ladder {
	return b.asks
}

func (b *OrderBook) ladder(side common.Side) *Ladder {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) Add(order common.Order) {
	b.ladder(order.Side).Add(order)
}

func (b *OrderBook) Update(order common.Order) {
	b.ladder(order.Side).Update(order)
}

func (b *OrderBook) Delete(order common.Order) {
	b.ladder(order.Side).Delete(order)
}

// ApplyDelta applies one change event to the side it names.
func (b *OrderBook) ApplyDelta(delta common.Delta) error {
	switch delta.Type {
	case common.AddDelta:
		b.Add(delta.Order)
	case common.UpdateDelta:
		b.Update(delta.Order)
	case common.DeleteDelta:
		b.Delete(delta.Order)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidDeltaType, delta.Type)
	}
	return nil
}

// ApplyDeltas applies a batch in order, stopping at the first bad delta.
func (b *OrderBook) ApplyDeltas(deltas []common.Delta) error {
	for _, delta := range deltas {
		if err := b.ApplyDelta(delta); err != nil {
			return err
		}
	}
	return nil
}

func (b *OrderBook) BestBidPrice() (decimal.Decimal, bool) {
	top, ok := b.bids.Top()
	if !ok {
		return decimal.Zero, false
	}
	return top.Price(), true
}

func (b *OrderBook) BestAskPrice() (decimal.Decimal, bool) {
	top, ok := b.asks.Top()
	if !ok {
		return decimal.Zero, false
	}
	return top.Price(), true
}

func (b *OrderBook) BestBidVolume() (decimal.Decimal, bool) {
	top, ok := b.bids.Top()
	if !ok {
		return decimal.Zero, false
	}
	return top.Volume(), true
}

func (b *OrderBook) BestAskVolume() (decimal.Decimal, bool) {
	top, ok := b.asks.Top()
	if !ok {
		return decimal.Zero, false
	}
	return top.Volume(), true
}

// Spread is best ask minus best bid; ok is false unless both sides have
// liquidity.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, bidOk := b.BestBidPrice()
	ask, askOk := b.BestAskPrice()
	if !bidOk || !askOk {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Midpoint is the arithmetic middle of the best bid and ask.
func (b *OrderBook) Midpoint() (decimal.Decimal, bool) {
	bid, bidOk := b.BestBidPrice()
	ask, askOk := b.BestAskPrice()
	if !bidOk || !askOk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// LevelSnapshot is one aggregated price level in a point-in-time copy of
// the book.
type LevelSnapshot struct {
	Price    decimal.Decimal
	Volume   decimal.Decimal
	Exposure decimal.Decimal
}

// BookSnapshot is a detached copy of up to depth levels per side, both
// sides best-first. Safe to hand to consumers after the book moves on.
type BookSnapshot struct {
	Instrument string
	Bids       []LevelSnapshot
	Asks       []LevelSnapshot
	Timestamp  time.Time
}

func (b *OrderBook) Snapshot(depth int) BookSnapshot {
	return BookSnapshot{
		Instrument: b.instrument,
		Bids:       snapshotLevels(b.bids, depth),
		Asks:       snapshotLevels(b.asks, depth),
		Timestamp:  time.Now(),
	}
}

func snapshotLevels(ld *Ladder, depth int) []LevelSnapshot {
	levels := ld.Depth(depth)
	out := make([]LevelSnapshot, len(levels))
	for i, level := range levels {
		out[i] = LevelSnapshot{
			Price:    level.Price(),
			Volume:   level.Volume(),
			Exposure: level.Exposure(),
		}
	}
	return out
}

// CheckIntegrity verifies both ladders' structural invariants and that the
// book is not crossed (best bid strictly below best ask).
func (b *OrderBook) CheckIntegrity() error {
	if err := b.bids.checkIntegrity(); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := b.asks.checkIntegrity(); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	bid, bidOk := b.BestBidPrice()
	ask, askOk := b.BestAskPrice()
	if bidOk && askOk && bid.GreaterThanOrEqual(ask) {
		return fmt.Errorf("%w: bid %s >= ask %s", ErrCrossedBook, bid, ask)
	}
	return nil
}

// String renders the book as a three-column table, asks on top, prices
// descending down the page. Empty book renders as an empty string.
func (b *OrderBook) String() string {
	askLevels := b.asks.Depth(0)
	bidLevels := b.bids.Depth(0)
	if len(askLevels) == 0 && len(bidLevels) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %-10s %-10s\n", "bids", "price", "asks"))
	sb.WriteString(fmt.Sprintf("%-10s %-10s %-10s\n", "------", "-------", "------"))
	// Asks print worst first so the page reads top-down in falling price.
	for i := len(askLevels) - 1; i >= 0; i-- {
		level := askLevels[i]
		sb.WriteString(fmt.Sprintf(
			"%-10s %-10s [%s]\n", "", level.Price(), level.Volume(),
		))
	}
	for _, level := range bidLevels {
		sb.WriteString(fmt.Sprintf(
			"%-10s %-10s\n",
			fmt.Sprintf("[%s]", level.Volume()),
			level.Price(),
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}
