package domain

// Tier is the trust colour derived from a pin's confirmation count.
type Tier string

const (
	TierGray   Tier = "gray"
	TierBlue   Tier = "blue"
	TierYellow Tier = "yellow"
	TierOrange Tier = "orange"
	TierRed    Tier = "red"
)

var tierHex = map[Tier]string{
	TierGray:   "#9e9e9e",
	TierBlue:   "#1976d2",
	TierYellow: "#fbc02d",
	TierOrange: "#fb8c00",
	TierRed:    "#e53935",
}

// TierFor maps a confirmation count to its tier. Never cache the result:
// counts change with every confirmation.
func TierFor(count int) Tier {
	switch {
	case count <= 0:
		return TierGray
	case count == 1:
		return TierBlue
	case count == 2:
		return TierYellow
	case count <= 5:
		return TierOrange
	default:
		return TierRed
	}
}

// Hex returns the display colour used by the admin view.
func (t Tier) Hex() string {
	if h, ok := tierHex[t]; ok {
		return h
	}
	return tierHex[TierGray]
}
