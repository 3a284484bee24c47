package book_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"hati/internal/book"
	. "hati/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newOrder(id, price, volume string, side Side) Order {
	return Order{
		ID:     id,
		Price:  d(price),
		Volume: d(volume),
		Side:   side,
	}
}

// assertDecimal compares by numeric value, not representation.
func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "got %s, want %s", got, want)
}

// --- Tests ------------------------------------------------------------------

func TestLevelAdd(t *testing.T) {
	level := book.NewLevel(d("10"))

	order := newOrder("1", "10", "100", Buy)
	assert.NoError(t, level.Add(&order))

	assert.Equal(t, 1, level.Len())
	assertDecimal(t, "100", level.Volume())
	assertDecimal(t, "10", level.Price())
}

func TestLevelAdd_PriceMismatch(t *testing.T) {
	level := book.NewLevel(d("10"))

	order := newOrder("1", "11", "100", Buy)
	assert.ErrorIs(t, level.Add(&order), book.ErrPriceMismatch)
	assert.Equal(t, 0, level.Len())
}

func TestLevelUpdate_PreservesTimePriority(t *testing.T) {
	level := book.NewLevel(d("10"))
	first := newOrder("1", "10", "100", Buy)
	second := newOrder("2", "10", "40", Buy)
	assert.NoError(t, level.Add(&first))
	assert.NoError(t, level.Add(&second))

	update := newOrder("1", "10", "50", Buy)
	assert.NoError(t, level.Update(&update))

	// Volume replaced in place, queue position unchanged.
	orders := level.Orders()
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, "2", orders[1].ID)
	assertDecimal(t, "50", orders[0].Volume)
	assertDecimal(t, "90", level.Volume())
}

func TestLevelUpdate_UnknownOrder(t *testing.T) {
	level := book.NewLevel(d("10"))

	update := newOrder("missing", "10", "50", Buy)
	assert.ErrorIs(t, level.Update(&update), book.ErrOrderNotFound)
}

func TestLevelDelete(t *testing.T) {
	level := book.NewLevel(d("100"))
	first := newOrder("1", "100", "50", Buy)
	second := newOrder("2", "100", "50", Buy)
	assert.NoError(t, level.Add(&first))
	assert.NoError(t, level.Add(&second))

	assert.True(t, level.Delete("2"))
	assertDecimal(t, "50", level.Volume())
	assert.Equal(t, 1, level.Len())

	// Deleting again reports absence without mutating.
	assert.False(t, level.Delete("2"))
	assert.Equal(t, 1, level.Len())
}

func TestLevelVolume_ZeroVolumeOrder(t *testing.T) {
	level := book.NewLevel(d("10"))
	order := newOrder("1", "10", "0", Buy)
	assert.NoError(t, level.Add(&order))

	assertDecimal(t, "0", level.Volume())
}

func TestLevelExposure(t *testing.T) {
	level := book.NewLevel(d("10"))
	first := newOrder("1", "10", "5", Sell)
	second := newOrder("2", "10", "2", Sell)
	assert.NoError(t, level.Add(&first))
	assert.NoError(t, level.Add(&second))

	assertDecimal(t, "70", level.Exposure())
	assertDecimal(t, "7", level.Volume())
}
