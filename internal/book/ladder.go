package book

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"hati/internal/common"
)

var (
	ErrNotEnoughLiquidity = errors.New("not enough liquidity")
	ErrInvalidDepthType   = errors.New("invalid depth type")
)

type Levels = btree.BTreeG[*Level]

// Ladder is one side of an order book: a price-sorted sequence of levels
// plus an order-id index pointing into it. Storage is always
// price-ascending; which end is "best" is derived from the side (highest
// price for bids, lowest for asks).
//
// Ladders are not safe for concurrent use. The owner serializes access, one
// writer per instrument; see the feed package.
type Ladder struct {
	side common.Side

	// Levels keyed by price. The tree owns the levels; index holds
	// non-owning references for O(1) order lookup and is maintained
	// alongside every structural change.
	levels *Levels
	index  map[string]*Level

	log   zerolog.Logger
	stats Stats
}

// Stats counts ladder mutations, including the two tolerated anomaly paths:
// updates for unknown ids applied as adds, and deletes for unknown ids
// dropped. Upstream feed gaps show up here without making the ladder fatal
// on them.
type Stats struct {
	Adds         uint64
	Updates      uint64
	Deletes      uint64
	ImpliedAdds  uint64
	StaleDeletes uint64
}

func NewLadder(side common.Side) *Ladder {
	// Sorted ascending regardless of side.
	levels := btree.NewBTreeG(func(a, b *Level) bool {
		return a.price.LessThan(b.price)
	})
	return &Ladder{
		side:   side,
		levels: levels,
		index:  make(map[string]*Level),
		log:    zerolog.Nop(),
	}
}

func (ld *Ladder) SetLogger(log zerolog.Logger) {
	ld.log = log.With().Stringer("side", ld.side).Logger()
}

func (ld *Ladder) Side() common.Side {
	return ld.side
}

func (ld *Ladder) Stats() Stats {
	return ld.stats
}

// Len is the number of price levels currently in the ladder.
func (ld *Ladder) Len() int {
	return ld.levels.Len()
}

// Add rests the order in the level at its price, creating the level if this
// is the first order there.
func (ld *Ladder) Add(order common.Order) {
	ld.stats.Adds++
	ld.insert(&order)
}

// Update applies a volume or price change to a resting order. An update for
// an id the ladder has never seen is applied as an add: feeds occasionally
// drop or misorder the initial add, and converging on upstream state beats
// failing the whole stream. A price change is a reprice, delete then re-add,
// which resets the order's time priority at the new level.
func (ld *Ladder) Update(order common.Order) {
	level, ok := ld.index[order.ID]
	if !ok {
		ld.stats.ImpliedAdds++
		ld.log.Debug().
			Str("order_id", order.ID).
			Msg("update for unknown order id, applying as add")
		ld.insert(&order)
		return
	}
	ld.stats.Updates++

	if order.Price.Equal(level.price) {
		// Volume-only change, position in the level preserved.
		if err := level.Update(&order); err != nil {
			// Index said the order is here; the invariant is broken.
			ld.log.Error().
				Err(err).
				Str("order_id", order.ID).
				Msg("index points at level missing the order")
		}
		return
	}

	// Reprice.
	ld.remove(order.ID, level)
	ld.insert(&order)
}

// Delete removes the resting order with the delta's id. Deletes for unknown
// ids are dropped: duplicate and stale delete messages are routine in
// replayed or conflated feeds.
func (ld *Ladder) Delete(order common.Order) {
	level, ok := ld.index[order.ID]
	if !ok {
		ld.stats.StaleDeletes++
		ld.log.Warn().
			Str("order_id", order.ID).
			Msg("delete for unknown order id, ignoring")
		return
	}
	ld.stats.Deletes++
	ld.remove(order.ID, level)
}

func (ld *Ladder) insert(order *common.Order) {
	// Comparator only reads the price, so probe with a bare level.
	level, ok := ld.levels.GetMut(&Level{price: order.Price})
	if !ok {
		level = NewLevel(order.Price)
		ld.levels.Set(level)
	}
	// Price equality holds by construction, the error cannot fire.
	_ = level.Add(order)
	ld.index[order.ID] = level
}

func (ld *Ladder) remove(id string, level *Level) {
	level.Delete(id)
	delete(ld.index, id)
	if level.Len() == 0 {
		ld.levels.Delete(level)
	}
}

// Top returns the best level: highest price for a bid ladder, lowest for an
// ask ladder. ok is false when the ladder is empty.
func (ld *Ladder) Top() (*Level, bool) {
	if ld.side == common.Buy {
		return ld.levels.Max()
	}
	return ld.levels.Min()
}

// Depth returns up to n levels in display order, best first: descending
// prices for bids, ascending for asks. n <= 0 returns every level.
func (ld *Ladder) Depth(n int) []*Level {
	if n <= 0 {
		n = ld.levels.Len()
	}
	out := make([]*Level, 0, n)
	ld.scanBestFirst(func(level *Level) bool {
		out = append(out, level)
		return len(out) < n
	})
	return out
}

// Prices returns every level price in storage (ascending) order.
func (ld *Ladder) Prices() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, ld.levels.Len())
	ld.levels.Scan(func(level *Level) bool {
		out = append(out, level.price)
		return true
	})
	return out
}

// Volumes returns every level volume in storage order, parallel to Prices.
func (ld *Ladder) Volumes() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, ld.levels.Len())
	ld.levels.Scan(func(level *Level) bool {
		out = append(out, level.Volume())
		return true
	})
	return out
}

// Exposures returns every level exposure in storage order, parallel to
// Prices.
func (ld *Ladder) Exposures() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, ld.levels.Len())
	ld.levels.Scan(func(level *Level) bool {
		out = append(out, level.Exposure())
		return true
	})
	return out
}

// DepthAtPrice returns the cumulative volume or exposure of every level
// marketable against a hypothetical incoming order at the given price: for
// asks the levels priced at or below it, for bids the levels priced at or
// above it.
func (ld *Ladder) DepthAtPrice(price decimal.Decimal, depthType common.DepthType) (decimal.Decimal, error) {
	measure, err := levelMeasure(depthType)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	ld.scanBestFirst(func(level *Level) bool {
		if !ld.marketable(level.price, price) {
			return false
		}
		total = total.Add(measure(level))
		return true
	})
	return total, nil
}

// VolumeFillPrice returns the volume-weighted average price at which an
// incoming order of the given volume would consume the ladder. With
// partialOK false a request larger than the resting liquidity returns
// ErrNotEnoughLiquidity; with partialOK true the average covers whatever
// was available.
func (ld *Ladder) VolumeFillPrice(volume decimal.Decimal, partialOK bool) (decimal.Decimal, error) {
	return ld.fillPrice(volume, common.VolumeDepth, partialOK)
}

// ExposureFillPrice is VolumeFillPrice with the request measured in
// exposure (price x volume) instead of raw volume.
func (ld *Ladder) ExposureFillPrice(exposure decimal.Decimal, partialOK bool) (decimal.Decimal, error) {
	return ld.fillPrice(exposure, common.ExposureDepth, partialOK)
}

// fillPrice sweeps levels best-first and orders FIFO within each level,
// consuming until the target is met, then returns the value-weighted
// average price over the consumed amounts. All accumulation stays in
// decimal so repeated partial consumption cannot drift.
func (ld *Ladder) fillPrice(target decimal.Decimal, depthType common.DepthType, partialOK bool) (decimal.Decimal, error) {
	measure, err := orderMeasure(depthType)
	if err != nil {
		return decimal.Zero, err
	}

	remaining := target
	weighted := decimal.Zero // sum of amount * price over consumed pairs
	consumed := decimal.Zero // sum of amounts
	ld.scanBestFirst(func(level *Level) bool {
		for _, order := range level.orders {
			amount := measure(order)
			if amount.GreaterThanOrEqual(remaining) {
				// This order alone covers what is left; take only
				// the required amount and stop the sweep.
				weighted = weighted.Add(remaining.Mul(level.price))
				consumed = consumed.Add(remaining)
				remaining = decimal.Zero
				return false
			}
			weighted = weighted.Add(amount.Mul(level.price))
			consumed = consumed.Add(amount)
			remaining = remaining.Sub(amount)
		}
		return true
	})

	if remaining.IsPositive() && !partialOK {
		return decimal.Zero, ErrNotEnoughLiquidity
	}
	if consumed.IsZero() {
		// Empty ladder, or a partial fill that consumed nothing. Either
		// way there is no price to report and nothing to divide by.
		return decimal.Zero, ErrNotEnoughLiquidity
	}
	return weighted.Div(consumed), nil
}

// scanBestFirst visits levels in marketable order: descending prices for a
// bid ladder, ascending for an ask ladder. All side-relative traversal goes
// through here so display order, depth-at-price and fill sweeps cannot
// disagree on direction.
func (ld *Ladder) scanBestFirst(iter func(level *Level) bool) {
	if ld.side == common.Buy {
		ld.levels.Reverse(iter)
		return
	}
	ld.levels.Scan(iter)
}

// marketable reports whether a resting level at levelPrice would trade
// against an incoming order priced at limit on the opposite side.
func (ld *Ladder) marketable(levelPrice, limit decimal.Decimal) bool {
	if ld.side == common.Buy {
		return levelPrice.GreaterThanOrEqual(limit)
	}
	return levelPrice.LessThanOrEqual(limit)
}

func levelMeasure(depthType common.DepthType) (func(*Level) decimal.Decimal, error) {
	switch depthType {
	case common.VolumeDepth:
		return (*Level).Volume, nil
	case common.ExposureDepth:
		return (*Level).Exposure, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidDepthType, depthType)
}

func orderMeasure(depthType common.DepthType) (func(*common.Order) decimal.Decimal, error) {
	switch depthType {
	case common.VolumeDepth:
		return func(o *common.Order) decimal.Decimal { return o.Volume }, nil
	case common.ExposureDepth:
		return func(o *common.Order) decimal.Decimal { return o.Exposure() }, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidDepthType, depthType)
}

// checkIntegrity walks the whole structure verifying the invariants the
// mutation paths rely on: strictly ascending level prices, no empty levels,
// and an index that agrees with the tree in both directions.
func (ld *Ladder) checkIntegrity() error {
	var prev *Level
	var walkErr error
	inTree := make(map[*Level]bool, ld.levels.Len())
	ld.levels.Scan(func(level *Level) bool {
		inTree[level] = true
		if level.Len() == 0 {
			walkErr = fmt.Errorf("empty level at price %s", level.price)
			return false
		}
		if prev != nil && !prev.price.LessThan(level.price) {
			walkErr = fmt.Errorf(
				"levels out of order: %s before %s", prev.price, level.price,
			)
			return false
		}
		for _, order := range level.orders {
			if !order.Price.Equal(level.price) {
				walkErr = fmt.Errorf(
					"order %s priced %s resting in level %s",
					order.ID, order.Price, level.price,
				)
				return false
			}
		}
		prev = level
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	for id, level := range ld.index {
		if !inTree[level] {
			return fmt.Errorf("index entry %s points at a level not in the ladder", id)
		}
		found := false
		for _, order := range level.orders {
			if order.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("index entry %s missing from its level", id)
		}
	}
	return nil
}
