package rating

type Tier string

const (
	TierIron        Tier = "Iron"
	TierBronze      Tier = "Bronze"
	TierSilver      Tier = "Silver"
	TierGold        Tier = "Gold"
	TierPlatinum    Tier = "Platinum"
	TierDiamond     Tier = "Diamond"
	TierMaster      Tier = "Master"
	TierGrandmaster Tier = "Grandmaster"
)

// TierFor maps an Elo rating onto its display tier.
func TierFor(elo int) Tier {
	switch {
	case elo >= 2400:
		return TierGrandmaster
	case elo >= 2200:
		return TierMaster
	case elo >= 2000:
		return TierDiamond
	case elo >= 1800:
		return TierPlatinum
	case elo >= 1600:
		return TierGold
	case elo >= 1400:
		return TierSilver
	case elo >= 1200:
		return TierBronze
	default:
		return TierIron
	}
}
