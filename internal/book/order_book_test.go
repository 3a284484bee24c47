package book_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hati/internal/book"
	. "hati/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func newSampleBook() *book.OrderBook {
	b := book.New("AUD/USD")
	b.Add(newOrder("s1", "0.900", "20", Sell))
	b.Add(newOrder("s2", "0.887", "10", Sell))
	b.Add(newOrder("s3", "0.886", "5", Sell))
	b.Add(newOrder("b1", "0.830", "4", Buy))
	b.Add(newOrder("b2", "0.820", "1", Buy))
	return b
}

func addDelta(id, price, volume string, side Side) Delta {
	return Delta{
		Type:      AddDelta,
		Order:     newOrder(id, price, volume, side),
		Timestamp: time.Now(),
	}
}

// --- Tests ------------------------------------------------------------------

func TestOrderBook_EmptyBook(t *testing.T) {
	b := book.New("AUD/USD")

	_, ok := b.BestBidPrice()
	assert.False(t, ok)
	_, ok = b.BestAskPrice()
	assert.False(t, ok)
	_, ok = b.BestBidVolume()
	assert.False(t, ok)
	_, ok = b.BestAskVolume()
	assert.False(t, ok)
	_, ok = b.Spread()
	assert.False(t, ok)
	_, ok = b.Midpoint()
	assert.False(t, ok)
	assert.Equal(t, "", b.String())
	assert.NoError(t, b.CheckIntegrity())
}

func TestOrderBook_AddBothSides(t *testing.T) {
	b := book.New("AUD/USD")
	b.Add(newOrder("1", "10", "5", Buy))
	b.Add(newOrder("2", "11", "6", Sell))

	bid, ok := b.BestBidPrice()
	assert.True(t, ok)
	assertDecimal(t, "10", bid)

	ask, ok := b.BestAskPrice()
	assert.True(t, ok)
	assertDecimal(t, "11", ask)

	bidVol, ok := b.BestBidVolume()
	assert.True(t, ok)
	assertDecimal(t, "5", bidVol)

	askVol, ok := b.BestAskVolume()
	assert.True(t, ok)
	assertDecimal(t, "6", askVol)

	spread, ok := b.Spread()
	assert.True(t, ok)
	assertDecimal(t, "1", spread)

	mid, ok := b.Midpoint()
	assert.True(t, ok)
	assertDecimal(t, "10.5", mid)
}

func TestOrderBook_Midpoint(t *testing.T) {
	b := newSampleBook()

	mid, ok := b.Midpoint()
	assert.True(t, ok)
	assertDecimal(t, "0.858", mid)
}

func TestOrderBook_ApplyDelta_UpdateUnknownActsAsAdd(t *testing.T) {
	b := book.New("AUD/USD")

	err := b.ApplyDelta(Delta{
		Type:      UpdateDelta,
		Order:     newOrder("4a25c3f6", "0.5814", "672.45", Sell),
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)

	ask, ok := b.BestAskPrice()
	assert.True(t, ok)
	assertDecimal(t, "0.5814", ask)
	assert.Equal(t, uint64(1), b.Asks().Stats().ImpliedAdds)
}

func TestOrderBook_ApplyDeltas(t *testing.T) {
	b := book.New("AUD/USD")

	deltas := []Delta{
		addDelta("1", "10", "5", Buy),
		addDelta("2", "11", "6", Sell),
		{
			Type:      UpdateDelta,
			Order:     newOrder("1", "10", "3", Buy),
			Timestamp: time.Now(),
		},
		{
			Type:      DeleteDelta,
			Order:     newOrder("2", "11", "6", Sell),
			Timestamp: time.Now(),
		},
	}
	assert.NoError(t, b.ApplyDeltas(deltas))

	bidVol, ok := b.BestBidVolume()
	assert.True(t, ok)
	assertDecimal(t, "3", bidVol)
	_, ok = b.BestAskPrice()
	assert.False(t, ok)
}

func TestOrderBook_ApplyDelta_InvalidType(t *testing.T) {
	b := book.New("AUD/USD")

	err := b.ApplyDelta(Delta{
		Type:  DeltaType(42),
		Order: newOrder("1", "10", "5", Buy),
	})
	assert.ErrorIs(t, err, book.ErrInvalidDeltaType)
}

func TestOrderBook_Snapshot(t *testing.T) {
	b := newSampleBook()

	snap := b.Snapshot(2)
	assert.Equal(t, "AUD/USD", snap.Instrument)

	// Both sides best-first, capped at the requested depth.
	assert.Len(t, snap.Bids, 2)
	assert.Len(t, snap.Asks, 2)
	assertDecimal(t, "0.830", snap.Bids[0].Price)
	assertDecimal(t, "0.820", snap.Bids[1].Price)
	assertDecimal(t, "0.886", snap.Asks[0].Price)
	assertDecimal(t, "0.887", snap.Asks[1].Price)
	assertDecimal(t, "4.43", snap.Asks[0].Exposure)

	// Depth 0 means everything.
	full := b.Snapshot(0)
	assert.Len(t, full.Asks, 3)
}

func TestOrderBook_CheckIntegrity_Crossed(t *testing.T) {
	b := book.New("AUD/USD")
	b.Add(newOrder("1", "10", "5", Sell))
	assert.NoError(t, b.CheckIntegrity())

	b.Add(newOrder("2", "20", "5", Buy))
	assert.ErrorIs(t, b.CheckIntegrity(), book.ErrCrossedBook)
}

func TestOrderBook_CheckIntegrity_AfterMutation(t *testing.T) {
	b := newSampleBook()
	assert.NoError(t, b.CheckIntegrity())

	b.Update(newOrder("s3", "0.885", "5", Sell))
	b.Delete(newOrder("b2", "0.820", "1", Buy))
	b.Delete(newOrder("b2", "0.820", "1", Buy)) // duplicate, ignored
	assert.NoError(t, b.CheckIntegrity())
}

func TestOrderBook_String(t *testing.T) {
	b := newSampleBook()

	out := b.String()
	assert.Contains(t, out, "price")
	assert.Contains(t, out, "0.9")
	assert.Contains(t, out, "[4]")
}
