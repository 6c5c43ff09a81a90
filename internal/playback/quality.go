package playback

import "strconv"

type Quality int

const (
	Quality360  Quality = 360
	Quality540  Quality = 540
	Quality720  Quality = 720
	Quality1080 Quality = 1080
)

// qualityTiers is ordered from best to worst.
var qualityTiers = []Quality{Quality1080, Quality720, Quality540, Quality360}

func (q Quality) String() string {
	return strconv.Itoa(int(q)) + "p"
}

// MaxQuality maps a native vertical resolution onto the best selectable tier.
func MaxQuality(height int) Quality {
	for _, tier := range qualityTiers {
		if height >= int(tier) {
			return tier
		}
	}
	return Quality360
}

// AvailableQualities lists every tier at or below max, best first.
func AvailableQualities(max Quality) []Quality {
	out := make([]Quality, 0, len(qualityTiers))
	for _, tier := range qualityTiers {
		if tier <= max {
			out = append(out, tier)
		}
	}
	return out
}
