package catalog

// SeedProducts is the demo range used by MemStore and local development.
func SeedProducts() []Product {
	mk := func(pos, rank int, handle, title string, price int64, available bool, tags ...string) Product {
		return Product{
			Handle:     handle,
			Title:      title,
			Tags:       tags,
			PriceCents: price,
			Available:  available,
			Image:      "/images/" + handle + ".jpg",
			URL:        "/products/" + handle,
			SalesRank:  rank,
			Position:   pos,
		}
	}

	return []Product{
		mk(1, 3, "frog-birthday", "Hoppy Birthday", 450, true,
			"interest:frogs", "occasion:birthday", "style:cute", "recipient:friend"),
		mk(2, 1, "frog-party", "Ribbiting Party", 450, true,
			"interest:frogs", "occasion:birthday", "humour:pun"),
		mk(3, 5, "dog-birthday", "Pawsome Birthday", 450, true,
			"interest:dogs", "occasion:birthday", "recipient:friend"),
		mk(4, 8, "frog-bold", "Bold Frog", 500, true,
			"interest:frogs", "style:bold"),
		mk(5, 2, "cat-anniversary", "Purrfect Pair", 500, true,
			"interest:cats", "occasion:anniversary", "recipient:partner", "style:cute"),
		mk(6, 9, "frog-retired", "Old Toad", 450, false,
			"interest:frogs", "occasion:birthday", "style:cute"),
		mk(7, 4, "dog-thanks", "Thanks a Woof", 400, true,
			"interest:dogs", "occasion:thank-you", "style:cute", "humour:pun"),
		mk(8, 6, "cactus-sorry", "Sorry I Was a Prick", 400, true,
			"interest:plants", "occasion:sorry", "humour:rude", "style:bold"),
		mk(9, 7, "frog-wedding", "Toadally Married", 550, true,
			"interest:frogs", "occasion:wedding", "recipient:couple", "style:elegant"),
		mk(10, 10, "plain-blank", "Blank Card", 300, true),
	}
}
