// Package fuzzy ranks candidate columns and values by string similarity
// when exact lookup fails.
//
// Scores are 0-100. Ties are broken by the shorter candidate, then by the
// order candidates were supplied in, so results are deterministic.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/mapping"
)

// Default result caps.
const (
	DefaultColumnTopN = 5
	DefaultValueTopN  = 10
)

// Candidate is a scored suggestion.
type Candidate = apperrors.Candidate

// Ratio is the normalized edit-distance similarity of two folded strings.
func Ratio(a, b string) int {
	return ratio(mapping.Normalize(a), mapping.Normalize(b))
}

func ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * float64(la+lb-dist) / float64(la+lb)))
}

// TokenSortRatio compares the strings with their words sorted, so word
// order does not matter.
func TokenSortRatio(a, b string) int {
	return ratio(sortedTokens(mapping.Normalize(a)), sortedTokens(mapping.Normalize(b)))
}

func sortedTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

// PartialRatio is the best ratio of the shorter string against every
// equally long window of the longer one.
func PartialRatio(a, b string) int {
	return partial(mapping.Normalize(a), mapping.Normalize(b))
}

func partial(a, b string) int {
	s, l := []rune(a), []rune(b)
	if len(s) > len(l) {
		s, l = l, s
	}
	if len(s) == 0 {
		if len(l) == 0 {
			return 100
		}
		return 0
	}
	best := 0
	short := string(s)
	for i := 0; i+len(s) <= len(l); i++ {
		if r := ratio(short, string(l[i:i+len(s)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// WRatio blends plain, token-sort and partial scores the way a weighted
// ratio does: partial matching only counts when lengths differ a lot.
func WRatio(a, b string) int {
	na, nb := mapping.Normalize(a), mapping.Normalize(b)
	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	if la == 0 || lb == 0 {
		if la == lb {
			return 100
		}
		return 0
	}
	best := float64(ratio(na, nb))
	best = math.Max(best, 0.95*float64(ratio(sortedTokens(na), sortedTokens(nb))))

	lenRatio := float64(max(la, lb)) / float64(min(la, lb))
	if lenRatio >= 1.5 {
		scale := 0.9
		if lenRatio > 8 {
			scale = 0.6
		}
		best = math.Max(best, scale*float64(partial(na, nb)))
	}
	return int(math.Round(best))
}

// SuggestColumns ranks dataset columns against a field phrase. Surrogate
// key columns are never returned.
func SuggestColumns(columns []string, field string, topN int) []Candidate {
	if topN <= 0 {
		topN = DefaultColumnTopN
	}
	return rank(columns, field, topN, mapping.IsSurrogateKey)
}

// SuggestValues ranks the distinct values of a column against the asked
// value. Blank and UUID-shaped values are skipped.
func SuggestValues(values []string, asked string, topN int) []Candidate {
	if topN <= 0 {
		topN = DefaultValueTopN
	}
	return rank(values, asked, topN, func(v string) bool {
		if strings.TrimSpace(v) == "" {
			return true
		}
		_, err := uuid.Parse(strings.TrimSpace(v))
		return err == nil
	})
}

func rank(candidates []string, query string, topN int, skip func(string) bool) []Candidate {
	type scored struct {
		Candidate
		runes int
	}
	seen := make(map[string]bool, len(candidates))
	list := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if skip(c) {
			continue
		}
		key := mapping.Normalize(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, scored{
			Candidate: Candidate{Label: c, Score: WRatio(query, c)},
			runes:     utf8.RuneCountInString(c),
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].runes < list[j].runes
	})
	if len(list) > topN {
		list = list[:topN]
	}
	out := make([]Candidate, len(list))
	for i, s := range list {
		out[i] = s.Candidate
	}
	return out
}
