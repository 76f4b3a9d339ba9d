package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
)

func card(id, name, price string, volatility float64, rarity model.Rarity) model.Item {
	return model.Item{
		ID:         id,
		Name:       name,
		Rarity:     rarity,
		BasePrice:  decimal.RequireFromString(price),
		Volatility: volatility,
	}
}

// Curated returns the hand-tuned catalog: well-known cards with base prices
// near their real-world market value. Ids are fixed; changing one changes
// every price generated for that card.
func Curated() []model.Item {
	return []model.Item{
		// Power Nine
		card("0e2749a9-c857-4b59", "Black Lotus", "35000.00", 0.15, model.RarityMythic),
		card("1a3d5f8e-9b2c-7d4e", "Mox Sapphire", "8500.00", 0.12, model.RarityMythic),
		card("2b4e6f9d-0c3d-8e5f", "Mox Ruby", "8000.00", 0.12, model.RarityMythic),
		card("3c5f7g0e-1d4e-9f6g", "Ancestral Recall", "12000.00", 0.13, model.RarityMythic),
		card("4d6g8h1f-2e5f-0g7h", "Time Walk", "10000.00", 0.13, model.RarityMythic),

		// Dual lands
		card("5e7h9i2g-3f6g-1h8i", "Underground Sea", "4500.00", 0.10, model.RarityRare),
		card("6f8i0j3h-4g7h-2i9j", "Volcanic Island", "4200.00", 0.10, model.RarityRare),
		card("7g9j1k4i-5h8i-3j0k", "Tropical Island", "3800.00", 0.10, model.RarityRare),
		card("8h0k2l5j-6i9j-4k1l", "Tundra", "3500.00", 0.09, model.RarityRare),
		card("9i1l3m6k-7j0k-5l2m", "Bayou", "3200.00", 0.09, model.RarityRare),

		// Modern staples
		card("a1b2c3d4-e5f6-g7h8", "Ragavan, Nimble Pilferer", "75.00", 0.15, model.RarityMythic),
		card("b2c3d4e5-f6g7-h8i9", "Force of Negation", "65.00", 0.12, model.RarityRare),
		card("c3d4e5f6-g7h8-i9j0", "Wrenn and Six", "85.00", 0.14, model.RarityMythic),
		card("d4e5f6g7-h8i9-j0k1", "Scalding Tarn", "95.00", 0.10, model.RarityRare),
		card("e5f6g7h8-i9j0-k1l2", "Misty Rainforest", "90.00", 0.10, model.RarityRare),
		card("f6g7h8i9-j0k1-l2m3", "Liliana of the Veil", "120.00", 0.13, model.RarityMythic),
		card("g7h8i9j0-k1l2-m3n4", "Tarmogoyf", "55.00", 0.11, model.RarityMythic),
		card("h8i9j0k1-l2m3-n4o5", "Snapcaster Mage", "65.00", 0.11, model.RarityRare),

		// Standard
		card("i9j0k1l2-m3n4-o5p6", "Sheoldred, the Apocalypse", "45.00", 0.18, model.RarityMythic),
		card("j0k1l2m3-n4o5-p6q7", "The One Ring", "40.00", 0.20, model.RarityMythic),
		card("k1l2m3n4-o5p6-q7r8", "Orcish Bowmasters", "35.00", 0.17, model.RarityRare),
		card("l2m3n4o5-p6q7-r8s9", "Fable of the Mirror-Breaker", "28.00", 0.16, model.RarityRare),
		card("m3n4o5p6-q7r8-s9t0", "Ledger Shredder", "22.00", 0.14, model.RarityRare),
		card("n4o5p6q7-r8s9-t0u1", "Meathook Massacre", "25.00", 0.15, model.RarityMythic),
		card("o5p6q7r8-s9t0-u1v2", "Wandering Emperor", "20.00", 0.14, model.RarityMythic),
		card("p6q7r8s9-t0u1-v2w3", "Boseiju, Who Endures", "30.00", 0.13, model.RarityRare),

		// Commons and uncommons
		card("q7r8s9t0-u1v2-w3x4", "Lightning Bolt", "2.50", 0.08, model.RarityCommon),
		card("r8s9t0u1-v2w3-x4y5", "Brainstorm", "1.50", 0.07, model.RarityCommon),
		card("s9t0u1v2-w3x4-y5z6", "Counterspell", "1.25", 0.06, model.RarityCommon),
		card("t0u1v2w3-x4y5-z6a7", "Swords to Plowshares", "3.50", 0.07, model.RarityUncommon),
		card("u1v2w3x4-y5z6-a7b8", "Path to Exile", "4.00", 0.08, model.RarityUncommon),
		card("v2w3x4y5-z6a7-b8c9", "Fatal Push", "3.00", 0.09, model.RarityUncommon),
		card("w3x4y5z6-a7b8-c9d0", "Sol Ring", "2.50", 0.06, model.RarityUncommon),
		card("x4y5z6a7-b8c9-d0e1", "Birds of Paradise", "8.00", 0.09, model.RarityRare),
		card("y5z6a7b8-c9d0-e1f2", "Noble Hierarch", "12.00", 0.10, model.RarityRare),
		card("z6a7b8c9-d0e1-f2g3", "Thoughtseize", "15.00", 0.10, model.RarityRare),

		// Eternal and artifact staples
		card("a7b8c9d0-e1f2-g3h4", "Teferi, Time Raveler", "18.00", 0.12, model.RarityRare),
		card("b8c9d0e1-f2g3-h4i5", "Ugin, the Spirit Dragon", "35.00", 0.14, model.RarityMythic),
		card("c9d0e1f2-g3h4-i5j6", "Karn Liberated", "28.00", 0.13, model.RarityMythic),
		card("d0e1f2g3-h4i5-j6k7", "Wurmcoil Engine", "22.00", 0.11, model.RarityMythic),
		card("e1f2g3h4-i5j6-k7l8", "Aether Vial", "5.00", 0.08, model.RarityUncommon),
		card("f2g3h4i5-j6k7-l8m9", "Chalice of the Void", "45.00", 0.15, model.RarityRare),
		card("g3h4i5j6-k7l8-m9n0", "Mana Crypt", "180.00", 0.14, model.RarityMythic),
		card("h4i5j6k7-l8m9-n0o1", "Chrome Mox", "120.00", 0.13, model.RarityRare),
		card("i5j6k7l8-m9n0-o1p2", "Mox Opal", "95.00", 0.15, model.RarityMythic),
		card("j6k7l8m9-n0o1-p2q3", "Arcbound Ravager", "25.00", 0.11, model.RarityRare),
	}
}

// Fallback is the minimal set used when no snapshot can be loaded. It spans
// both rarity extremes so every code path stays exercised.
func Fallback() []model.Item {
	return []model.Item{
		card("q7r8s9t0-u1v2-w3x4", "Lightning Bolt", "2.50", 0.08, model.RarityCommon),
		card("5e7h9i2g-3f6g-1h8i", "Underground Sea", "4500.00", 0.10, model.RarityRare),
		card("0e2749a9-c857-4b59", "Black Lotus", "35000.00", 0.15, model.RarityMythic),
	}
}
