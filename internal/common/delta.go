package common

import (
	"fmt"
	"time"
)

type DeltaType int

const (
	AddDelta DeltaType = iota
	UpdateDelta
	DeleteDelta
)

func (d DeltaType) String() string {
	switch d {
	case AddDelta:
		return "ADD"
	case UpdateDelta:
		return "UPDATE"
	case DeleteDelta:
		return "DELETE"
	}
	return "UNKNOWN"
}

// Delta is one order-book change event as emitted by market-data
// normalization. Deltas for a given instrument must be applied in the order
// they occurred at the source.
type Delta struct {
	Type      DeltaType
	Order     Order
	Timestamp time.Time
}

func (d Delta) String() string {
	return fmt.Sprintf(
		"Delta(%v, %s, ts=%d)",
		d.Type,
		d.Order,
		d.Timestamp.UnixNano(),
	)
}
