package recommend

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how candidates are ranked against the anchor.
type Mode string

const (
	ModeSimilar  Mode = "similar"
	ModeInterest Mode = "interest"
	ModeOccasion Mode = "occasion"
)

var ErrInvalidMode = errors.New("invalid recommendation mode")

// ParseMode accepts the empty string as ModeSimilar.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSimilar, nil
	case ModeSimilar, ModeInterest, ModeOccasion:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// baseWeights are the per-facet weights of ModeSimilar.
var baseWeights = map[Category]float64{
	Interest:  3,
	Occasion:  2,
	Recipient: 2,
	Style:     1,
	Humour:    0.5,
}

// pivotBoost multiplies the single facet a pivot mode scores on, so pivot
// rankings differ visibly from ModeSimilar.
const pivotBoost = 3

type facetWeight struct {
	cat Category
	w   float64
}

var profiles = map[Mode][]facetWeight{
	ModeSimilar: {
		{Interest, baseWeights[Interest]},
		{Occasion, baseWeights[Occasion]},
		{Recipient, baseWeights[Recipient]},
		{Style, baseWeights[Style]},
		{Humour, baseWeights[Humour]},
	},
	ModeInterest: {{Interest, baseWeights[Interest] * pivotBoost}},
	ModeOccasion: {{Occasion, baseWeights[Occasion] * pivotBoost}},
}

// Score sums weighted per-facet Jaccard similarity between anchor and
// candidate. Facets are visited in a fixed order so float sums are stable.
// An unknown mode scores 0.
func Score(anchor, cand Tags, mode Mode) float64 {
	var total float64
	for _, fw := range profiles[mode] {
		total += jaccard(anchor[fw.cat], cand[fw.cat]) * fw.w
	}
	return total
}

// jaccard treats a and b as sets; it is 0 when either is empty.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}

	union := len(set)
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
