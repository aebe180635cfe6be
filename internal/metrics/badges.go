package metrics

import "sort"

// Badge positions a product on the volume / margin matrix.
type Badge string

const (
	// BadgeHero sells in volume at a healthy margin.
	BadgeHero Badge = "Hero"

	// BadgeTrafficDriver sells in volume at a thin or negative margin.
	BadgeTrafficDriver Badge = "Traffic Driver"

	// BadgeRisk earns a good margin on too little volume to rely on.
	BadgeRisk Badge = "Risk"

	// BadgeKillList neither sells nor earns.
	BadgeKillList Badge = "Kill List"
)

// assignBadges ranks products by kept quantity and by net margin (ties by
// SKU). A product is high volume or high margin when it ranks in the top
// half; high margin also requires a positive margin.
func assignBadges(products []ProductBucket) {
	n := len(products)
	if n == 0 {
		return
	}
	half := (n + 1) / 2

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	volumeRank := make([]int, n)
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := products[order[a]], products[order[b]]
		if pa.QuantityKept != pb.QuantityKept {
			return pa.QuantityKept > pb.QuantityKept
		}
		return pa.SKU < pb.SKU
	})
	for rank, idx := range order {
		volumeRank[idx] = rank
	}

	marginRank := make([]int, n)
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := products[order[a]], products[order[b]]
		if !pa.Margin.Equal(pb.Margin) {
			return pa.Margin.GreaterThan(pb.Margin)
		}
		return pa.SKU < pb.SKU
	})
	for rank, idx := range order {
		marginRank[idx] = rank
	}

	for i := range products {
		highVolume := volumeRank[i] < half
		highMargin := marginRank[i] < half && products[i].Margin.IsPositive()

		switch {
		case highVolume && highMargin:
			products[i].Badge = BadgeHero
		case highVolume:
			products[i].Badge = BadgeTrafficDriver
		case highMargin:
			products[i].Badge = BadgeRisk
		default:
			products[i].Badge = BadgeKillList
		}
	}
}
