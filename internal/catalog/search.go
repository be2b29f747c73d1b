package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

type match struct {
	entry models.CatalogEntry
	rank  int
	score int
}

// Search ranks merged entries against query. Code matches come first,
// then name substrings, then names within a small edit distance.
func (c *Catalog) Search(query string, limit int) []models.CatalogEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []match
	for code, e := range c.Merged() {
		name := strings.ToLower(e.Name)
		switch {
		case code == q:
			matches = append(matches, match{entry: e, rank: 0})
		case strings.HasPrefix(code, q):
			matches = append(matches, match{entry: e, rank: 1, score: len(code)})
		case strings.Contains(name, q):
			matches = append(matches, match{entry: e, rank: 2, score: strings.Index(name, q)})
		default:
			d := levenshtein.ComputeDistance(q, name)
			if d <= max(1, len(q)/3) {
				matches = append(matches, match{entry: e, rank: 3, score: d})
			}
		}
	}

	slices.SortFunc(matches, func(a, b match) int {
		return cmp.Or(
			cmp.Compare(a.rank, b.rank),
			cmp.Compare(a.score, b.score),
			cmp.Compare(a.entry.Name, b.entry.Name),
			cmp.Compare(a.entry.Code, b.entry.Code),
		)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.CatalogEntry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out
}
