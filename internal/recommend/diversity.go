package recommend

import "slices"

type scored struct {
	item  Item
	score float64
}

// diversify walks ranked candidates in order and skips one only when every
// interest value AND every style value it carries has already been used
// limit times. A facet the item has no values for defers to the other one;
// an item with neither facet is never skipped. Accepted items bump the
// counters of all their values.
func diversify(ranked []scored, limit int) []scored {
	interests := make(map[string]int)
	styles := make(map[string]int)

	out := make([]scored, 0, len(ranked))
	for _, c := range ranked {
		iv := c.item.ParsedTags[Interest]
		sv := c.item.ParsedTags[Style]

		if len(iv)+len(sv) > 0 && saturated(interests, iv, limit) && saturated(styles, sv, limit) {
			continue
		}

		bump(interests, iv)
		bump(styles, sv)
		out = append(out, c)
	}
	return out
}

// saturated reports whether every value has reached limit. It is vacuously
// true for no values.
func saturated(counts map[string]int, values []string, limit int) bool {
	for _, v := range values {
		if counts[v] < limit {
			return false
		}
	}
	return true
}

// bump counts each distinct value once per item.
func bump(counts map[string]int, values []string) {
	for i, v := range values {
		if slices.Contains(values[:i], v) {
			continue
		}
		counts[v]++
	}
}

