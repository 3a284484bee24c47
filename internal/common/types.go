package common

// Side marks which half of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// DepthType selects the unit a depth or fill-price query is measured in:
// raw quantity, or price-weighted quantity (exposure).
type DepthType int

const (
	VolumeDepth DepthType = iota
	ExposureDepth
)

func (d DepthType) String() string {
	switch d {
	case VolumeDepth:
		return "volume"
	case ExposureDepth:
		return "exposure"
	}
	return "unknown"
}
