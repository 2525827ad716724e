package recommend

import "strings"

// Category is one of the fixed tag facets items are classified by.
type Category string

const (
	Interest  Category = "interest"
	Occasion  Category = "occasion"
	Recipient Category = "recipient"
	Style     Category = "style"
	Humour    Category = "humour"
)

// Categories lists every facet in scoring order.
var Categories = [...]Category{Interest, Occasion, Recipient, Style, Humour}

func (c Category) known() bool {
	switch c {
	case Interest, Occasion, Recipient, Style, Humour:
		return true
	}
	return false
}

// Tags maps a facet to its values. Values keep source order and are not
// deduplicated.
type Tags map[Category][]string

// ParseTags turns raw "category:value" strings into Tags. Unknown categories,
// strings without a colon, and empty values are dropped.
func ParseTags(raw []string) Tags {
	out := make(Tags, len(Categories))
	for _, t := range raw {
		cat, val, ok := strings.Cut(t, ":")
		if !ok {
			continue
		}
		c := Category(strings.ToLower(strings.TrimSpace(cat)))
		val = strings.ToLower(strings.TrimSpace(val))
		if !c.known() || val == "" {
			continue
		}
		out[c] = append(out[c], val)
	}
	return out
}
