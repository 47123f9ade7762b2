package models

// Badge is the reputation tier unlocked by a user's XP.
type Badge struct {
	Name  string `json:"name"`
	MinXP int    `json:"min_xp"`
}

// BadgeTiers lists the tiers in ascending XP order.
var BadgeTiers = []Badge{
	{Name: "newcomer", MinXP: 0},
	{Name: "whisperer", MinXP: 25},
	{Name: "storyteller", MinXP: 100},
	{Name: "luminary", MinXP: 250},
	{Name: "oracle", MinXP: 500},
	{Name: "legend", MinXP: 1000},
}

// BadgeFor returns the highest tier xp has reached. Negative balances (only
// possible with a downvote penalty configured) stay at the first tier.
func BadgeFor(xp int) Badge {
	badge := BadgeTiers[0]
	for _, tier := range BadgeTiers[1:] {
		if xp < tier.MinXP {
			break
		}
		badge = tier
	}
	return badge
}

// NextBadge returns the tier after the one xp has reached, or nil at the top.
func NextBadge(xp int) *Badge {
	for _, tier := range BadgeTiers {
		if xp < tier.MinXP {
			next := tier
			return &next
		}
	}
	return nil
}
